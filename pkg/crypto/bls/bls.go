// Copyright 2025 NoctHub Authors
//
// BLS12-381 signatures, min-pubkey-size variant: public keys are 48-byte
// compressed G1 points, signatures are 96-byte compressed G2 points.
// Messages are signed and verified exactly as given under
// DomainSeparationTag; the signer's public key is not prepended to the
// message, so this is not the Augmented (Aug) scheme. Backed by
// github.com/supranational/blst.
package bls

import (
	"errors"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

// PublicKeySize and SignatureSize are fixed by the constitution and must
// match bit-for-bit across implementations.
const (
	PublicKeySize = 48
	SignatureSize = 96
)

// DomainSeparationTag is the constitution-mandated DST mixed into
// hash-to-curve so NoctHub signatures cannot be replayed as signatures
// from any other BLS-based protocol.
var DomainSeparationTag = []byte("NOCTHUB_BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_")

var (
	ErrInvalidPublicKeyLength = errors.New("bls: public key must be 48 bytes")
	ErrInvalidSignatureLength = errors.New("bls: signature must be 96 bytes")
	ErrPointDecode            = errors.New("bls: failed to decompress point")
	ErrNoSigners              = errors.New("bls: at least one public key is required")
)

// PrivateKey wraps a blst secret key, used only by the golden-vector
// generator (producers), never by the verifier itself.
type PrivateKey struct {
	sk *blst.SecretKey
}

// PublicKey wraps a 48-byte compressed BLS12-381 G1 point.
type PublicKey struct {
	p *blst.P1Affine
}

var initErr error

// Initialize probes the BLS backend once at process startup. Per the
// ambient-state design requirement, the verifier must fail fast with
// ERROR if the cryptography library cannot be reached at all, rather
// than silently misreporting every proof as INVALID. blst is a
// statically linked library, so in practice this only ever fails if the
// domain separation tag itself is malformed.
func Initialize() error {
	if len(DomainSeparationTag) == 0 {
		initErr = errors.New("bls: domain separation tag is empty")
	}
	return initErr
}

// GenerateKeyPairFromSeed deterministically derives a key pair from a
// seed of at least 32 bytes. Used exclusively by the golden-vector
// generator to produce reproducible fixtures.
func GenerateKeyPairFromSeed(seed []byte) (*PrivateKey, *PublicKey, error) {
	if len(seed) < 32 {
		return nil, nil, fmt.Errorf("bls: seed must be at least 32 bytes, got %d", len(seed))
	}
	sk := new(blst.SecretKey)
	sk.KeyGen(seed)
	pk := new(blst.P1Affine).From(sk)
	return &PrivateKey{sk: sk}, &PublicKey{p: pk}, nil
}

// Bytes returns the 48-byte compressed G1 encoding of pk.
func (pk *PublicKey) Bytes() []byte {
	return pk.p.Compress()
}

// PublicKeyFromBytes decompresses and validates a 48-byte public key.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, ErrInvalidPublicKeyLength
	}
	p := new(blst.P1Affine).Uncompress(b)
	if p == nil {
		return nil, ErrPointDecode
	}
	if !p.KeyValidate() {
		return nil, fmt.Errorf("%w: subgroup check failed", ErrPointDecode)
	}
	return &PublicKey{p: p}, nil
}

// Sign produces a 96-byte compressed G2 signature over msg under the
// protocol domain separation tag.
func (sk *PrivateKey) Sign(msg []byte) []byte {
	sig := new(blst.P2Affine).Sign(sk.sk, msg, DomainSeparationTag)
	return sig.Compress()
}

// AggregateSignatures combines N compressed signatures into a single
// aggregate compressed signature, for use with VerifyAggregate.
func AggregateSignatures(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, ErrNoSigners
	}
	points := make([]*blst.P2Affine, 0, len(sigs))
	for i, s := range sigs {
		if len(s) != SignatureSize {
			return nil, fmt.Errorf("%w: signature %d", ErrInvalidSignatureLength, i)
		}
		p := new(blst.P2Affine).Uncompress(s)
		if p == nil {
			return nil, fmt.Errorf("%w: signature %d", ErrPointDecode, i)
		}
		points = append(points, p)
	}
	var agg blst.P2Aggregate
	if !agg.Aggregate(points, true) {
		return nil, errors.New("bls: aggregation failed")
	}
	return agg.ToAffine().Compress(), nil
}

// VerifySingle checks a single BLS signature over msg, with no public-key
// augmentation: pubkey is 48 bytes compressed G1, sig is 96 bytes compressed G2.
// Malformed points, wrong subgroup membership, and length mismatches
// all return false rather than panicking — the caller (pkg/verification)
// is responsible for collapsing any false result to the single
// BLS_VERDICT_MISMATCH reason code the constitution requires.
func VerifySingle(pubkey, msg, sig []byte) bool {
	if len(pubkey) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	pk := new(blst.P1Affine).Uncompress(pubkey)
	if pk == nil {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}
	return s.Verify(true, pk, true, msg, DomainSeparationTag)
}

// VerifyAggregate checks that every public key in pubkeys signed the
// same message msg, aggregated into aggSig. This is NOT general
// AggregateVerify (distinct per-signer messages) — the constitution's
// aggregate signatures always cover one shared message, which is
// exactly blst's FastAggregateVerify.
func VerifyAggregate(pubkeys [][]byte, msg, aggSig []byte) bool {
	if len(pubkeys) == 0 || len(aggSig) != SignatureSize {
		return false
	}
	s := new(blst.P2Affine).Uncompress(aggSig)
	if s == nil {
		return false
	}
	pks := make([]*blst.P1Affine, len(pubkeys))
	for i, pk := range pubkeys {
		if len(pk) != PublicKeySize {
			return false
		}
		pks[i] = new(blst.P1Affine).Uncompress(pk)
		if pks[i] == nil {
			return false
		}
	}
	return s.FastAggregateVerify(true, pks, msg, DomainSeparationTag)
}
