// Package proof defines the SecretRemovalProof data model (spec §3):
// the document type the verification pipeline judges and the
// golden-vector generator produces.
package proof

import "github.com/nocthub/offline-verifier/pkg/codec"

// SignatureField is the tagged variant carried inside a
// ProofOfGovernance. Variant names which of the three shapes Bytes
// holds; on the wire it becomes a one-key object keyed by Variant.
type SignatureField struct {
	Variant SignatureVariant
	Bytes   []byte
}

// SignatureVariant is the closed set of signature shapes a proof may
// carry.
type SignatureVariant string

const (
	// SignatureSingle is one signature over one message under one
	// public key.
	SignatureSingle SignatureVariant = "single"
	// SignatureAggregate is one aggregated signature over the same
	// message under N public keys.
	SignatureAggregate SignatureVariant = "aggregate"
	// SignatureCorrupted has the same shape as single but with
	// deliberately damaged bytes; it exists only in negative test
	// vectors and must be rejected as INVALID, never as a parse error.
	SignatureCorrupted SignatureVariant = "corrupted"
)

// ProofOfGovernance is the multi-signature bundle attesting the
// policy-authorised nature of a removal.
type ProofOfGovernance struct {
	PublicKeys [][]byte
	Signature  SignatureField
	PolicyID   string
}

// MerklePathNode mirrors pkg/merkle.MerklePathNode at the document
// boundary, before bytes have been validated and decoded.
type MerklePathNode struct {
	SiblingHash []byte
	IsLeft      bool
}

// MerkleProof is the leaf hash and ordered sibling path carried in the
// wire document.
type MerkleProof struct {
	LeafHash []byte
	Path     []MerklePathNode
}

// RemovalMetadata is carried end-to-end, opaque to the verifier.
type RemovalMetadata struct {
	RepoID       string
	Branch       string
	CommitBefore string
	CommitAfter  string
}

// SecretRemovalProof is the full document the verifier judges.
type SecretRemovalProof struct {
	Version          string
	SecretScopeHash  []byte
	SecretHash       []byte
	RootBefore       []byte
	RootAfter        []byte
	MerkleProof      MerkleProof
	RemovalTimestamp int64
	POG              ProofOfGovernance
	Metadata         RemovalMetadata
	// Message is the base64url-decoded ConstitutionalMessage embedded
	// in the wire document. The verifier does not trust this field for
	// signature verification — it re-derives the signed bytes itself
	// (see pkg/verification) and uses this field to cross-check it
	// against the document's own secret_scope_hash and removal_timestamp.
	Message []byte
}

// ToDocument renders p as the untyped map the wire schema describes:
// the same shape json.Marshal produces when fed a raw proof document,
// so the result can be canonicalised and signed (or validated) exactly
// like one. This is the golden-vector generator's bridge from typed
// construction to wire bytes.
func (p SecretRemovalProof) ToDocument() map[string]interface{} {
	path := make([]interface{}, len(p.MerkleProof.Path))
	for i, node := range p.MerkleProof.Path {
		path[i] = map[string]interface{}{
			"sibling_hash": codec.HexEncodeLower(node.SiblingHash),
			"is_left":      node.IsLeft,
		}
	}

	pubkeys := make([]interface{}, len(p.POG.PublicKeys))
	for i, pk := range p.POG.PublicKeys {
		pubkeys[i] = codec.B64URLEncode(pk)
	}

	return map[string]interface{}{
		"version":           p.Version,
		"secret_scope_hash": codec.HexEncodeLower(p.SecretScopeHash),
		"secret_hash":       codec.HexEncodeLower(p.SecretHash),
		"root_before":       codec.HexEncodeLower(p.RootBefore),
		"root_after":        codec.HexEncodeLower(p.RootAfter),
		"removal_timestamp": float64(p.RemovalTimestamp),
		"message":           codec.B64URLEncode(p.Message),
		"merkle_proof": map[string]interface{}{
			"leaf_hash": codec.HexEncodeLower(p.MerkleProof.LeafHash),
			"path":      path,
		},
		"pog": map[string]interface{}{
			"public_keys": pubkeys,
			"policy_id":   p.POG.PolicyID,
			"signature":   map[string]interface{}{string(p.POG.Signature.Variant): codec.B64URLEncode(p.POG.Signature.Bytes)},
		},
		"metadata": map[string]interface{}{
			"repo_id":       p.Metadata.RepoID,
			"branch":        p.Metadata.Branch,
			"commit_before": p.Metadata.CommitBefore,
			"commit_after":  p.Metadata.CommitAfter,
		},
	}
}
