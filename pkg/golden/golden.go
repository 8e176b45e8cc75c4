// Package golden implements the golden-vector generator (C9): the
// producer side of the three fixture categories — canonical, bls, and
// integration — plus the content-hash manifest that pins every vector
// byte-for-byte.
//
// Every vector file is itself canonicalised before it is written, so
// that hashing a file on disk and re-canonicalising its parsed contents
// produce identical bytes; this is what lets a reader hash-verify a
// fixture without re-running the generator.
package golden

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/nocthub/offline-verifier/pkg/canonical"
	"github.com/nocthub/offline-verifier/pkg/codec"
	"github.com/nocthub/offline-verifier/pkg/constitutional"
	"github.com/nocthub/offline-verifier/pkg/crypto/bls"
	"github.com/nocthub/offline-verifier/pkg/merkle"
	"github.com/nocthub/offline-verifier/pkg/proof"
)

var logger = log.New(os.Stderr, "[golden] ", log.LstdFlags)

// Categories, in the order the generator emits them.
const (
	CategoryCanonical   = "canonical"
	CategoryBLS         = "bls"
	CategoryIntegration = "integration"
)

func seedFor(b byte) []byte {
	s := make([]byte, 32)
	s[31] = b
	return s
}

// canonicalVectors returns the fixed set of canonical-JSON fixtures:
// five VALID cases covering simple, nested, array, empty and Unicode
// input, and three INVALID cases covering whitespace, key order, and
// an unnecessary unicode escape — the same categories and names a
// compliant implementation in any language is expected to reproduce.
func canonicalVectors() []map[string]interface{} {
	mustCanon := func(v interface{}) string {
		b, err := canonical.Encode(v)
		if err != nil {
			panic(fmt.Sprintf("golden: canonical vector failed to encode: %v", err))
		}
		return string(b)
	}

	return []map[string]interface{}{
		{
			"name": "valid_001_simple", "input": map[string]interface{}{"a": 1, "z": 2},
			"canonical": mustCanon(map[string]interface{}{"a": 1, "z": 2}), "expected_verdict": "VALID",
		},
		{
			"name": "valid_002_nested", "input": map[string]interface{}{"outer": map[string]interface{}{"a": 1, "z": 2}},
			"canonical": mustCanon(map[string]interface{}{"outer": map[string]interface{}{"a": 1, "z": 2}}), "expected_verdict": "VALID",
		},
		{
			"name": "valid_003_array", "input": map[string]interface{}{"items": []interface{}{3, 1, 2}},
			"canonical": mustCanon(map[string]interface{}{"items": []interface{}{3, 1, 2}}), "expected_verdict": "VALID",
		},
		{
			"name": "valid_004_empty", "input": map[string]interface{}{},
			"canonical": mustCanon(map[string]interface{}{}), "expected_verdict": "VALID",
		},
		{
			"name": "valid_005_unicode", "input": map[string]interface{}{"emoji": "🔐", "text": "NoctHub"},
			"canonical": mustCanon(map[string]interface{}{"emoji": "🔐", "text": "NoctHub"}), "expected_verdict": "VALID",
		},
		{
			"name": "invalid_001_whitespace", "input_non_canonical": `{ "a": 1 }`,
			"canonical": mustCanon(map[string]interface{}{"a": 1}), "expected_verdict": "INVALID", "reason": "Contains whitespace",
		},
		{
			"name": "invalid_002_wrong_order", "input_non_canonical": `{"z":1,"a":2}`,
			"canonical": mustCanon(map[string]interface{}{"z": 1, "a": 2}), "expected_verdict": "INVALID", "reason": "Wrong key order",
		},
		{
			"name": "invalid_003_escaped", "input_non_canonical": "{\"key\":\"value\\u0041\"}",
			"canonical": mustCanon(map[string]interface{}{"key": "valueA"}), "expected_verdict": "INVALID", "reason": "Unnecessary escape",
		},
	}
}

// blsVectors returns the fixed set of BLS fixtures: one signer, an
// aggregate of two, an aggregate of three, and three negative cases —
// wrong message, wrong public key, and corrupted signature bytes.
func blsVectors() ([]map[string]interface{}, error) {
	sk1, pk1, err := bls.GenerateKeyPairFromSeed(seedFor(1))
	if err != nil {
		return nil, err
	}
	sk2, pk2, err := bls.GenerateKeyPairFromSeed(seedFor(2))
	if err != nil {
		return nil, err
	}
	sk3, pk3, err := bls.GenerateKeyPairFromSeed(seedFor(3))
	if err != nil {
		return nil, err
	}
	_, pkWrong, err := bls.GenerateKeyPairFromSeed(seedFor(0x99))
	if err != nil {
		return nil, err
	}

	msgFor := func(scope string, ts int64) []byte {
		m, err := constitutional.Build(constitutional.ActionForget, scope, ts)
		if err != nil {
			panic(fmt.Sprintf("golden: bls vector failed to build message: %v", err))
		}
		return m
	}

	vectors := []map[string]interface{}{}

	msg1 := msgFor("test-scope-1", 1700000000)
	sig1 := sk1.Sign(msg1)
	vectors = append(vectors, map[string]interface{}{
		"name": "valid_001_single", "message": codec.B64URLEncode(msg1),
		"message_text": string(msg1), "public_keys": []interface{}{codec.B64URLEncode(pk1.Bytes())},
		"signature": map[string]interface{}{"single": codec.B64URLEncode(sig1)}, "expected_verdict": "VALID",
	})

	msg2 := msgFor("test-scope-2", 1700000001)
	sig2a := sk1.Sign(msg2)
	sig2b := sk2.Sign(msg2)
	agg2, err := bls.AggregateSignatures([][]byte{sig2a, sig2b})
	if err != nil {
		return nil, err
	}
	vectors = append(vectors, map[string]interface{}{
		"name": "valid_002_aggregate_2", "message": codec.B64URLEncode(msg2),
		"message_text": string(msg2),
		"public_keys":  []interface{}{codec.B64URLEncode(pk1.Bytes()), codec.B64URLEncode(pk2.Bytes())},
		"signature":    map[string]interface{}{"aggregate": codec.B64URLEncode(agg2)}, "expected_verdict": "VALID",
	})

	msg3 := msgFor("test-scope-3", 1700000002)
	sig3a := sk1.Sign(msg3)
	sig3b := sk2.Sign(msg3)
	sig3c := sk3.Sign(msg3)
	agg3, err := bls.AggregateSignatures([][]byte{sig3a, sig3b, sig3c})
	if err != nil {
		return nil, err
	}
	vectors = append(vectors, map[string]interface{}{
		"name": "valid_003_aggregate_3", "message": codec.B64URLEncode(msg3),
		"message_text": string(msg3),
		"public_keys": []interface{}{
			codec.B64URLEncode(pk1.Bytes()), codec.B64URLEncode(pk2.Bytes()), codec.B64URLEncode(pk3.Bytes()),
		},
		"signature": map[string]interface{}{"aggregate": codec.B64URLEncode(agg3)}, "expected_verdict": "VALID",
	})

	// invalid_001_wrong_message: signer signed a different scope than
	// the message the verifier is asked to check.
	wrongMsg := msgFor("a-different-scope", 1700000000)
	sigWrongMsg := sk1.Sign(wrongMsg)
	vectors = append(vectors, map[string]interface{}{
		"name": "invalid_001_wrong_message", "message": codec.B64URLEncode(msg1),
		"message_text": string(msg1), "public_keys": []interface{}{codec.B64URLEncode(pk1.Bytes())},
		"signature": map[string]interface{}{"single": codec.B64URLEncode(sigWrongMsg)}, "expected_verdict": "INVALID",
	})

	// invalid_002_wrong_pubkey: vector claims pkWrong signed, but sk1
	// actually produced the signature.
	vectors = append(vectors, map[string]interface{}{
		"name": "invalid_002_wrong_pubkey", "message": codec.B64URLEncode(msg1),
		"message_text": string(msg1), "public_keys": []interface{}{codec.B64URLEncode(pkWrong.Bytes())},
		"signature": map[string]interface{}{"single": codec.B64URLEncode(sig1)}, "expected_verdict": "INVALID",
	})

	// invalid_003_corrupted: first byte of a genuine signature flipped.
	corrupted := append([]byte(nil), sig1...)
	corrupted[0] ^= 0xFF
	vectors = append(vectors, map[string]interface{}{
		"name": "invalid_003_corrupted", "message": codec.B64URLEncode(msg1),
		"message_text": string(msg1), "public_keys": []interface{}{codec.B64URLEncode(pk1.Bytes())},
		"signature": map[string]interface{}{"corrupted": codec.B64URLEncode(corrupted)}, "expected_verdict": "INVALID",
	})

	return vectors, nil
}

// integrationVectors returns full SecretRemovalProof documents: one
// fully valid, and three invalid ones, each built to be rejected by one
// non-schema check (scope cross-check, minimum signers, Merkle coupling).
//
// Every pog in these documents is produced by the "strip-sign-reinsert"
// pattern: build the document, canonicalise it with pog removed, sign
// those bytes, then attach the resulting pog. signDocument below is the
// producer-side half of what pkg/verification.checkCanonical re-derives
// on the verifier side.
func integrationVectors() ([]map[string]interface{}, error) {
	sk1, pk1, err := bls.GenerateKeyPairFromSeed(seedFor(1))
	if err != nil {
		return nil, err
	}
	sk2, pk2, err := bls.GenerateKeyPairFromSeed(seedFor(2))
	if err != nil {
		return nil, err
	}

	scope := "repo-secret-42"
	timestamp := int64(1700000000)
	message, err := constitutional.Build(constitutional.ActionForget, scope, timestamp)
	if err != nil {
		return nil, err
	}
	scopeHashHex, _, err := constitutional.Parse(message)
	if err != nil {
		return nil, err
	}

	// A genuine four-leaf tree, not a single hand-spliced sibling: build
	// it, then take leaf 0's real inclusion proof as the removed
	// record's Merkle coupling.
	leaves := [][]byte{
		merkle.HashData([]byte("removed-secret-record")),
		merkle.HashData([]byte("sibling-record-1")),
		merkle.HashData([]byte("sibling-record-2")),
		merkle.HashData([]byte("sibling-record-3")),
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, err
	}
	inclusion, err := tree.GenerateProof(0)
	if err != nil {
		return nil, err
	}
	wireProof, err := inclusion.ToMerkleProof()
	if err != nil {
		return nil, err
	}
	merklePath := make([]proof.MerklePathNode, len(wireProof.Path))
	for i, node := range wireProof.Path {
		sibling := append([]byte(nil), node.SiblingHash[:]...)
		merklePath[i] = proof.MerklePathNode{SiblingHash: sibling, IsLeft: node.IsLeft}
	}
	leafHash := append([]byte(nil), wireProof.LeafHash[:]...)

	base := func() proof.SecretRemovalProof {
		return proof.SecretRemovalProof{
			Version:         constitutional.VersionOne,
			SecretScopeHash: mustHex(scopeHashHex),
			SecretHash:      merkle.HashData([]byte("secret-value")),
			RootBefore:      tree.Root(),
			RootAfter:       merkle.HashData([]byte("root-after-removal")),
			MerkleProof: proof.MerkleProof{
				LeafHash: leafHash,
				Path:     merklePath,
			},
			RemovalTimestamp: timestamp,
			Message:          message,
			Metadata: proof.RemovalMetadata{
				RepoID: "repo-42", Branch: "main", CommitBefore: "abc123", CommitAfter: "def456",
			},
		}
	}

	// signDocument strips pog (whatever p.POG currently holds — it is
	// discarded, not inspected) and returns the canonical bytes a signer
	// signs. p.POG need not be set beforehand.
	signDocument := func(p proof.SecretRemovalProof) ([]byte, error) {
		return canonical.StripAndCanonicalize(p.ToDocument(), "pog")
	}

	signedBytes, err := signDocument(base())
	if err != nil {
		return nil, err
	}
	sig1 := sk1.Sign(signedBytes)
	sig2 := sk2.Sign(signedBytes)
	aggSig, err := bls.AggregateSignatures([][]byte{sig1, sig2})
	if err != nil {
		return nil, err
	}

	valid := base()
	valid.POG = proof.ProofOfGovernance{
		PublicKeys: [][]byte{pk1.Bytes(), pk2.Bytes()},
		PolicyID:   "policy-core-v1",
		Signature:  proof.SignatureField{Variant: proof.SignatureAggregate, Bytes: aggSig},
	}

	// invalid_001_scope: signed correctly, then secret_scope_hash is
	// overwritten post-signing. The canonical layer's message/scope
	// cross-check catches this before BLS ever runs (it executes first
	// in pipeline order); under strip-sign-reinsert BLS would reject it
	// too, since secret_scope_hash is itself part of the signed bytes.
	invalidScope := base()
	invalidScope.POG = valid.POG
	invalidScope.SecretScopeHash = mustHex(constitutional.ScopeHash("a-tampered-scope"))

	// invalid_002_insufficient_sigs: one signer only, a genuinely valid
	// signature over the genuinely valid document — BLS passes, the
	// constitutional layer's minimum-signer rule is what fails.
	insufficientSigs := base()
	insufficientSigs.POG = proof.ProofOfGovernance{
		PublicKeys: [][]byte{pk1.Bytes()},
		PolicyID:   "policy-core-v1",
		Signature:  proof.SignatureField{Variant: proof.SignatureSingle, Bytes: sig1},
	}

	// invalid_003_merkle: the document is inconsistent from
	// construction — root_before does not match what merkle_proof
	// actually reconstructs — and is signed as-is. Strip-sign-reinsert
	// signs whatever document it is given; it has no opinion on whether
	// the Merkle arithmetic inside is self-consistent, so BLS passes
	// and only the Merkle layer catches this.
	merkleMismatch := base()
	merkleMismatch.RootBefore = merkle.HashData([]byte("unrelated-root"))
	mmSignedBytes, err := signDocument(merkleMismatch)
	if err != nil {
		return nil, err
	}
	mmSig1 := sk1.Sign(mmSignedBytes)
	mmSig2 := sk2.Sign(mmSignedBytes)
	mmAggSig, err := bls.AggregateSignatures([][]byte{mmSig1, mmSig2})
	if err != nil {
		return nil, err
	}
	merkleMismatch.POG = proof.ProofOfGovernance{
		PublicKeys: [][]byte{pk1.Bytes(), pk2.Bytes()},
		PolicyID:   "policy-core-v1",
		Signature:  proof.SignatureField{Variant: proof.SignatureAggregate, Bytes: mmAggSig},
	}

	return []map[string]interface{}{
		{"name": "valid_001_complete", "proof": valid.ToDocument(), "expected_verdict": "VALID"},
		{"name": "invalid_001_scope", "proof": invalidScope.ToDocument(), "expected_verdict": "INVALID"},
		{"name": "invalid_002_insufficient_sigs", "proof": insufficientSigs.ToDocument(), "expected_verdict": "INVALID"},
		{"name": "invalid_003_merkle", "proof": merkleMismatch.ToDocument(), "expected_verdict": "INVALID"},
	}, nil
}

// mustHex decodes a trusted-internal lowercase-hex string (produced a
// few lines above via pkg/constitutional, never external input) into raw
// bytes for a proof.SecretRemovalProof field.
func mustHex(s string) []byte {
	b, err := codec.HexDecodeLower(s, -1)
	if err != nil {
		panic(fmt.Sprintf("golden: internal hex value is malformed: %v", err))
	}
	return b
}

// Manifest is the emitted golden_vectors/MANIFEST.json shape: the root
// of test-vector integrity.
type Manifest struct {
	Version               string                           `json:"version"`
	ConstitutionalArticle string                           `json:"constitutional_article"`
	GeneratedBy           string                           `json:"generated_by"`
	Purpose               string                           `json:"purpose"`
	Vectors               map[string]map[string]FileDigest `json:"vectors"`
}

// FileDigest records a vector file's integrity metadata.
type FileDigest struct {
	SHA256    string `json:"sha256"`
	SizeBytes int    `json:"size_bytes"`
}

// WriteAll generates every vector category and the manifest into dir,
// as dir/{canonical,bls,integration}/*.json and dir/MANIFEST.json.
func WriteAll(dir string) error {
	manifest := Manifest{
		Version:               "1.0",
		ConstitutionalArticle: "Article 10 (Canonical Message)",
		GeneratedBy:           "nocthub-golden",
		Purpose:               "Ground truth fixtures for conforming verifier implementations",
		Vectors:               map[string]map[string]FileDigest{},
	}

	canonVecs := canonicalVectors()
	if err := writeCategory(dir, CategoryCanonical, canonVecs, manifest.Vectors); err != nil {
		return err
	}

	blsVecs, err := blsVectors()
	if err != nil {
		return fmt.Errorf("golden: generating bls vectors: %w", err)
	}
	if err := writeCategory(dir, CategoryBLS, blsVecs, manifest.Vectors); err != nil {
		return err
	}

	integrationVecs, err := integrationVectors()
	if err != nil {
		return fmt.Errorf("golden: generating integration vectors: %w", err)
	}
	if err := writeCategory(dir, CategoryIntegration, integrationVecs, manifest.Vectors); err != nil {
		return err
	}

	manifestBytes, err := canonical.Encode(manifest)
	if err != nil {
		return fmt.Errorf("golden: canonicalising manifest: %w", err)
	}
	manifestPath := filepath.Join(dir, "MANIFEST.json")
	if err := os.WriteFile(manifestPath, manifestBytes, 0o644); err != nil {
		return fmt.Errorf("golden: writing manifest: %w", err)
	}
	logger.Printf("wrote manifest covering %d categories", len(manifest.Vectors))
	return nil
}

func writeCategory(dir, category string, vectors []map[string]interface{}, digests map[string]map[string]FileDigest) error {
	categoryDir := filepath.Join(dir, category)
	if err := os.MkdirAll(categoryDir, 0o755); err != nil {
		return fmt.Errorf("golden: creating %s: %w", categoryDir, err)
	}
	digests[category] = map[string]FileDigest{}

	names := make([]string, 0, len(vectors))
	byName := make(map[string]map[string]interface{}, len(vectors))
	for _, v := range vectors {
		name, _ := v["name"].(string)
		names = append(names, name)
		byName[name] = v
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := canonical.Encode(byName[name])
		if err != nil {
			return fmt.Errorf("golden: canonicalising %s/%s: %w", category, name, err)
		}
		filename := name + ".json"
		path := filepath.Join(categoryDir, filename)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("golden: writing %s: %w", path, err)
		}
		sum := sha256.Sum256(content)
		digests[category][filename] = FileDigest{SHA256: hex.EncodeToString(sum[:]), SizeBytes: len(content)}
		logger.Printf("wrote %s/%s", category, filename)
	}
	return nil
}

// CanonicalVectors, BLSVectors, and IntegrationVectors expose the
// generated fixtures without writing them to disk, for tests and for
// callers that want to feed a vector straight into the verification
// pipeline.
func CanonicalVectors() []map[string]interface{} { return canonicalVectors() }

func BLSVectors() ([]map[string]interface{}, error) { return blsVectors() }

func IntegrationVectors() ([]map[string]interface{}, error) { return integrationVectors() }

// MarshalVector renders a single vector map as JSON bytes (not
// necessarily canonical — callers that need canonical bytes should use
// canonical.Encode directly).
func MarshalVector(v map[string]interface{}) ([]byte, error) {
	return json.Marshal(v)
}
