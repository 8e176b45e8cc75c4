// Package codec implements the binary encodings used throughout NoctHub
// proof documents: unpadded base64url and strict-lowercase hex. Both
// encoders/decoders enforce an expected decoded length where the caller
// knows one, since every fixed-size field in a proof (hashes, keys,
// signatures) is a forgery surface if its length is left unchecked.
package codec

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrLength is returned when a decoded value's length does not match
	// the caller-supplied expectation.
	ErrLength = errors.New("codec: decoded length mismatch")
	// ErrHexCase is returned when a hex string contains any byte outside
	// [0-9a-f], uppercase hex digits included. Producers in this protocol always emit lowercase hex;
	// accepting uppercase here would let two byte-different proofs decode
	// to the same value, breaking the canonical-bijection guarantee.
	ErrHexCase = errors.New("codec: hex string must be lowercase")
)

// B64URLDecode decodes s as URL-safe base64, accepting input with or
// without '=' padding. If expectedLen is non-negative, the decoded
// length must equal it exactly.
func B64URLDecode(s string, expectedLen int) ([]byte, error) {
	enc := base64.RawURLEncoding
	if len(s)%4 == 0 && len(s) > 0 && s[len(s)-1] == '=' {
		enc = base64.URLEncoding
	}
	b, err := enc.DecodeString(s)
	if err != nil {
		// Retry with the other padding convention before giving up —
		// some producers pad, some don't, and both are valid base64url.
		if enc == base64.RawURLEncoding {
			b, err = base64.URLEncoding.DecodeString(s)
		} else {
			b, err = base64.RawURLEncoding.DecodeString(s)
		}
		if err != nil {
			return nil, fmt.Errorf("codec: invalid base64url: %w", err)
		}
	}
	if expectedLen >= 0 && len(b) != expectedLen {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrLength, len(b), expectedLen)
	}
	return b, nil
}

// B64URLEncode encodes b as unpadded URL-safe base64, the canonical form
// for every binary field emitted by this protocol's producers.
func B64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// HexDecodeLower decodes s as lowercase hexadecimal. Any uppercase
// character or non-hex rune is a validation failure. expectedLen is the
// required decoded byte length.
func HexDecodeLower(s string, expectedLen int) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		isLowerHexDigit := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isLowerHexDigit {
			return nil, fmt.Errorf("%w: offending byte 0x%02x at index %d", ErrHexCase, c, i)
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("codec: invalid hex: %w", err)
	}
	if expectedLen >= 0 && len(b) != expectedLen {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrLength, len(b), expectedLen)
	}
	return b, nil
}

// HexEncodeLower encodes b as lowercase hexadecimal.
func HexEncodeLower(b []byte) string {
	return hex.EncodeToString(b)
}
