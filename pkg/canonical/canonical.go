// Package canonical implements RFC 8785 JSON Canonicalisation (JCS) for
// NoctHub proof documents: object keys sorted by UTF-16 code unit, no
// insignificant whitespace, canonical number form, minimal string
// escaping. Canonicalisation is delegated to github.com/gowebpki/jcs,
// which operates on already-marshaled JSON bytes rather than Go values —
// Encode is the adapter that bridges the two.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Encode marshals v to JSON and reduces it to RFC 8785 canonical bytes.
func Encode(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return canon, nil
}

// EncodeMap canonicalises a parsed map[string]interface{} value, the
// shape produced by decoding a proof document with json.Unmarshal into
// an untyped interface.
func EncodeMap(m map[string]interface{}) ([]byte, error) {
	return Encode(m)
}

// Mismatch describes where a byte string first diverges from its
// canonical form, for diagnostic reporting.
type Mismatch struct {
	Offset  int
	Context string
}

// IsCanonical reports whether raw is already in RFC 8785 canonical form:
// parsing it and re-encoding it must reproduce raw exactly, modulo a
// single optional trailing newline. On mismatch it also returns the
// first differing byte offset and a ±10-byte context window for
// diagnostics.
func IsCanonical(raw []byte) (bool, *Mismatch, error) {
	trimmed := bytes.TrimSuffix(raw, []byte("\n"))

	var v interface{}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return false, nil, fmt.Errorf("canonical: parse: %w", err)
	}

	canon, err := Encode(v)
	if err != nil {
		return false, nil, err
	}

	if bytes.Equal(canon, trimmed) {
		return true, nil, nil
	}

	offset := firstDiff(trimmed, canon)
	return false, &Mismatch{Offset: offset, Context: contextWindow(trimmed, offset)}, nil
}

func firstDiff(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func contextWindow(b []byte, offset int) string {
	const radius = 10
	start := offset - radius
	if start < 0 {
		start = 0
	}
	end := offset + radius
	if end > len(b) {
		end = len(b)
	}
	return string(b[start:end])
}

// StripAndCanonicalize removes the field named key from a parsed proof
// document and returns the canonical bytes of what remains, re-inserting
// nothing. This is the producer- and verifier-side "strip-sign-reinsert"
// operation: signers sign the canonical bytes of the document with `pog`
// removed, and the verifier must re-derive exactly those bytes from the
// document it received rather than trust any embedded claim about what
// was signed.
func StripAndCanonicalize(doc map[string]interface{}, key string) ([]byte, error) {
	stripped := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == key {
			continue
		}
		stripped[k] = v
	}
	return Encode(stripped)
}

// Hash returns the SHA-256 digest of b.
func Hash(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// HashHex returns the lowercase-hex SHA-256 digest of b.
func HashHex(b []byte) string {
	h := Hash(b)
	return hex.EncodeToString(h[:])
}
