package verification

import (
	"encoding/json"
	"testing"

	"github.com/nocthub/offline-verifier/pkg/canonical"
	"github.com/nocthub/offline-verifier/pkg/codec"
	"github.com/nocthub/offline-verifier/pkg/config"
	"github.com/nocthub/offline-verifier/pkg/constitutional"
	"github.com/nocthub/offline-verifier/pkg/crypto/bls"
	"github.com/nocthub/offline-verifier/pkg/merkle"
)

func seed(b byte) []byte {
	s := make([]byte, 32)
	s[31] = b
	return s
}

type fixture struct {
	doc   map[string]interface{}
	raw   []byte
	leaf  [32]byte
	root  [32]byte
}

// buildDocument assembles a complete proof document signed by two
// FORGET signers, the minimum required by C3-Forget. The signature
// covers the whole document canonicalised with pog removed (the
// strip-sign-reinsert pattern), so mutateBeforeSigning lets a caller
// bake an inconsistency into the document that will still carry a
// genuinely valid signature — the only way to isolate a single
// non-canonical layer's failure once BLS covers the full document.
// mutateBeforeSigning may be nil.
func buildDocument(t *testing.T, mutateBeforeSigning func(doc map[string]interface{})) fixture {
	t.Helper()

	scope := "api-key-7f3a"
	timestamp := int64(1700000000)
	message, err := constitutional.Build(constitutional.ActionForget, scope, timestamp)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	scopeHashHex, _, err := constitutional.Parse(message)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sk1, pk1, err := bls.GenerateKeyPairFromSeed(seed(1))
	if err != nil {
		t.Fatalf("GenerateKeyPairFromSeed: %v", err)
	}
	sk2, pk2, err := bls.GenerateKeyPairFromSeed(seed(2))
	if err != nil {
		t.Fatalf("GenerateKeyPairFromSeed: %v", err)
	}

	leaf := merkle.HashData([]byte("removed-secret-record"))
	sibling := merkle.HashData([]byte("sibling-record"))
	var leafArr, siblingArr [32]byte
	copy(leafArr[:], leaf)
	copy(siblingArr[:], sibling)
	root := merkle.ReconstructRoot(leafArr, []merkle.MerklePathNode{{SiblingHash: siblingArr, IsLeft: true}})

	doc := map[string]interface{}{
		"version":           constitutional.VersionOne,
		"secret_scope_hash": scopeHashHex,
		"secret_hash":       codec.HexEncodeLower(merkle.HashData([]byte("secret-value"))),
		"root_before":       codec.HexEncodeLower(root[:]),
		"root_after":        codec.HexEncodeLower(merkle.HashData([]byte("root-after-removal"))),
		"removal_timestamp": float64(timestamp),
		"message":           codec.B64URLEncode(message),
		"merkle_proof": map[string]interface{}{
			"leaf_hash": codec.HexEncodeLower(leafArr[:]),
			"path": []interface{}{
				map[string]interface{}{
					"sibling_hash": codec.HexEncodeLower(siblingArr[:]),
					"is_left":      true,
				},
			},
		},
		"pog": map[string]interface{}{},
		"metadata": map[string]interface{}{
			"repo_id":       "repo-42",
			"branch":        "main",
			"commit_before": "abc123",
			"commit_after":  "def456",
		},
	}

	if mutateBeforeSigning != nil {
		mutateBeforeSigning(doc)
	}

	signedBytes, err := canonical.StripAndCanonicalize(doc, "pog")
	if err != nil {
		t.Fatalf("StripAndCanonicalize: %v", err)
	}
	sig1 := sk1.Sign(signedBytes)
	sig2 := sk2.Sign(signedBytes)
	aggSig, err := bls.AggregateSignatures([][]byte{sig1, sig2})
	if err != nil {
		t.Fatalf("AggregateSignatures: %v", err)
	}

	doc["pog"] = map[string]interface{}{
		"public_keys": []interface{}{
			codec.B64URLEncode(pk1.Bytes()),
			codec.B64URLEncode(pk2.Bytes()),
		},
		"policy_id": "policy-core-v1",
		"signature": map[string]interface{}{"aggregate": codec.B64URLEncode(aggSig)},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return fixture{doc: doc, raw: raw, leaf: leafArr, root: root}
}

// buildValidDocument is buildDocument with no pre-signing mutation.
func buildValidDocument(t *testing.T) fixture {
	t.Helper()
	return buildDocument(t, nil)
}

func TestVerifyValidDocument(t *testing.T) {
	f := buildValidDocument(t)
	result := Verify(f.raw, "2026-01-01T00:00:00Z")
	if result.Status != Valid {
		t.Fatalf("expected VALID, got %s (steps: %+v)", result.Status, result.Steps)
	}
	wantOrder := []string{StepSchema, StepCanonical, StepBLS, StepMerkle, StepConstitutional}
	if len(result.Steps) != len(wantOrder) {
		t.Fatalf("expected %d steps, got %d: %+v", len(wantOrder), len(result.Steps), result.Steps)
	}
	for i, name := range wantOrder {
		if result.Steps[i].Name != name {
			t.Fatalf("step %d: expected %s, got %s", i, name, result.Steps[i].Name)
		}
		if result.Steps[i].Status != Valid {
			t.Fatalf("step %d (%s): expected VALID, got %s", i, name, result.Steps[i].Status)
		}
	}
}

// Determinism property: identical input bytes must produce
// byte-identical results in every field except Timestamp.
func TestVerifyDeterministic(t *testing.T) {
	f := buildValidDocument(t)
	r1 := Verify(f.raw, "2026-01-01T00:00:00Z")
	r2 := Verify(f.raw, "2099-12-31T23:59:59Z")
	r1.Timestamp, r2.Timestamp = "", ""
	b1, _ := json.Marshal(r1)
	b2, _ := json.Marshal(r2)
	if string(b1) != string(b2) {
		t.Fatalf("expected deterministic results excluding timestamp:\n%s\nvs\n%s", b1, b2)
	}
}

func TestVerifyRejectsSchemaViolationBeforeCrypto(t *testing.T) {
	f := buildValidDocument(t)
	f.doc["unexpected_field"] = "tampering"
	raw, _ := json.Marshal(f.doc)
	result := Verify(raw, "2026-01-01T00:00:00Z")
	if result.Status != Invalid {
		t.Fatalf("expected INVALID, got %s", result.Status)
	}
	if len(result.Steps) != 1 || result.Steps[0].Name != StepSchema {
		t.Fatalf("expected short-circuit at schema layer, got %+v", result.Steps)
	}
}

func TestVerifyRejectsScopeHashTampering(t *testing.T) {
	f := buildValidDocument(t)
	// Tamper with the declared scope hash after signing. Under
	// strip-sign-reinsert this would also break BLS (secret_scope_hash
	// is part of the signed bytes), but the canonical layer's
	// message/scope cross-check runs first in pipeline order and must
	// be what actually reports the rejection.
	f.doc["secret_scope_hash"] = constitutional.ScopeHash("a-different-scope")
	raw, _ := json.Marshal(f.doc)
	result := Verify(raw, "2026-01-01T00:00:00Z")
	if result.Status != Invalid {
		t.Fatalf("expected INVALID, got %s", result.Status)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Name != StepCanonical {
		t.Fatalf("expected tampering to be caught at the canonical layer, got %s", last.Name)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	f := buildValidDocument(t)
	pog := f.doc["pog"].(map[string]interface{})
	sig := pog["signature"].(map[string]interface{})
	good, err := codec.B64URLDecode(sig["aggregate"].(string), bls.SignatureSize)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	corrupted := append([]byte(nil), good...)
	corrupted[0] ^= 0xff
	sig["aggregate"] = codec.B64URLEncode(corrupted)

	raw, _ := json.Marshal(f.doc)
	result := Verify(raw, "2026-01-01T00:00:00Z")
	if result.Status != Invalid {
		t.Fatalf("expected INVALID, got %s", result.Status)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Name != StepBLS {
		t.Fatalf("expected corrupted signature to be caught at the bls layer, got %s", last.Name)
	}
}

func TestVerifyRejectsInsufficientSigners(t *testing.T) {
	scope := "single-signer-scope"
	timestamp := int64(1700000001)
	message, err := constitutional.Build(constitutional.ActionForget, scope, timestamp)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	scopeHashHex, _, _ := constitutional.Parse(message)

	sk, pk, err := bls.GenerateKeyPairFromSeed(seed(9))
	if err != nil {
		t.Fatalf("GenerateKeyPairFromSeed: %v", err)
	}

	leaf := merkle.HashData([]byte("solo-record"))
	var leafArr [32]byte
	copy(leafArr[:], leaf)
	root := merkle.ReconstructRoot(leafArr, nil)

	doc := map[string]interface{}{
		"version":           constitutional.VersionOne,
		"secret_scope_hash": scopeHashHex,
		"secret_hash":       codec.HexEncodeLower(merkle.HashData([]byte("secret"))),
		"root_before":       codec.HexEncodeLower(leafArr[:]),
		"root_after":        codec.HexEncodeLower(root[:]),
		"removal_timestamp": float64(timestamp),
		"message":           codec.B64URLEncode(message),
		"merkle_proof": map[string]interface{}{
			"leaf_hash": codec.HexEncodeLower(leafArr[:]),
			"path":      []interface{}{},
		},
		"pog": map[string]interface{}{},
		"metadata": map[string]interface{}{
			"repo_id":       "repo-1",
			"branch":        "main",
			"commit_before": "a",
			"commit_after":  "b",
		},
	}

	signedBytes, err := canonical.StripAndCanonicalize(doc, "pog")
	if err != nil {
		t.Fatalf("StripAndCanonicalize: %v", err)
	}
	sig := sk.Sign(signedBytes)
	doc["pog"] = map[string]interface{}{
		"public_keys": []interface{}{codec.B64URLEncode(pk.Bytes())},
		"policy_id":   "policy-core-v1",
		"signature":   map[string]interface{}{"single": codec.B64URLEncode(sig)},
	}

	raw, _ := json.Marshal(doc)
	result := Verify(raw, "2026-01-01T00:00:00Z")
	if result.Status != Invalid {
		t.Fatalf("expected INVALID, got %s", result.Status)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Name != StepConstitutional {
		t.Fatalf("expected insufficient-signer rejection at the constitutional layer, got %s", last.Name)
	}
}

func TestVerifyRejectsBadMerkleProof(t *testing.T) {
	// The bad path must be baked in before signing: since BLS now covers
	// the whole document, a post-signing edit to merkle_proof would be
	// caught at the bls layer instead, not merkle.
	f := buildDocument(t, func(doc map[string]interface{}) {
		mp := doc["merkle_proof"].(map[string]interface{})
		path := mp["path"].([]interface{})
		node := path[0].(map[string]interface{})
		node["is_left"] = false // flips the reconstructed root
	})

	result := Verify(f.raw, "2026-01-01T00:00:00Z")
	if result.Status != Invalid {
		t.Fatalf("expected INVALID, got %s", result.Status)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Name != StepMerkle {
		t.Fatalf("expected bad merkle proof to be caught at the merkle layer, got %s", last.Name)
	}
}

// TestVerifyRejectsTamperedRootAfterSigning demonstrates the
// strip-sign-reinsert binding itself: root_after is never independently
// checked by the merkle layer (only root_before is), so before this
// binding existed a post-signing edit to root_after passed every layer.
// It is now part of the signed bytes and caught at the bls layer.
func TestVerifyRejectsTamperedRootAfterSigning(t *testing.T) {
	f := buildValidDocument(t)
	f.doc["root_after"] = codec.HexEncodeLower(merkle.HashData([]byte("swapped-after-signing")))

	raw, _ := json.Marshal(f.doc)
	result := Verify(raw, "2026-01-01T00:00:00Z")
	if result.Status != Invalid {
		t.Fatalf("expected INVALID, got %s", result.Status)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Name != StepBLS {
		t.Fatalf("expected a post-signing root_after edit to be caught at the bls layer, got %s", last.Name)
	}
}

func TestPipelineRejectsUntrustedPolicyID(t *testing.T) {
	f := buildValidDocument(t)
	p := Pipeline{Policy: &config.VerifierPolicy{TrustedPolicyIDs: []string{"some-other-policy"}}}
	result := p.Verify(f.raw, "2026-01-01T00:00:00Z")
	if result.Status != Invalid {
		t.Fatalf("expected INVALID, got %s", result.Status)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Name != StepConstitutional {
		t.Fatalf("expected untrusted policy_id to be caught at the constitutional layer, got %s", last.Name)
	}
}

func TestPipelineAllowsTrustedPolicyID(t *testing.T) {
	f := buildValidDocument(t)
	p := Pipeline{Policy: &config.VerifierPolicy{TrustedPolicyIDs: []string{"policy-core-v1"}}}
	result := p.Verify(f.raw, "2026-01-01T00:00:00Z")
	if result.Status != Valid {
		t.Fatalf("expected VALID, got %s (steps: %+v)", result.Status, result.Steps)
	}
}

func TestInitialize(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}
