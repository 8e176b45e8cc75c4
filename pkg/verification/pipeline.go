// Package verification implements the pipeline orchestrator (C8): the
// fixed five-layer sequence — schema, canonical, BLS, Merkle,
// constitutional — that judges a SecretRemovalProof document and
// produces a three-valued verdict: VALID, INVALID, or ERROR.
//
// The layers run in strict order and short-circuit on the first
// non-VALID step: a malformed document never reaches cryptography, and
// a cryptographically unverifiable document never reaches policy
// checks. This ordering is itself a testable property, not an
// implementation detail — reordering it would let a structurally
// invalid document report a misleading BLS failure instead of a schema
// failure.
package verification

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/nocthub/offline-verifier/pkg/canonical"
	"github.com/nocthub/offline-verifier/pkg/codec"
	"github.com/nocthub/offline-verifier/pkg/config"
	"github.com/nocthub/offline-verifier/pkg/constitutional"
	"github.com/nocthub/offline-verifier/pkg/crypto/bls"
	"github.com/nocthub/offline-verifier/pkg/merkle"
	"github.com/nocthub/offline-verifier/pkg/schema"
)

var logger = log.New(os.Stderr, "[verify] ", log.LstdFlags)

// Verdict is the three-valued outcome of running the pipeline.
type Verdict string

const (
	Valid   Verdict = "VALID"
	Invalid Verdict = "INVALID"
	Error   Verdict = "ERROR"
)

// Step names, in pipeline order.
const (
	StepSchema         = "schema"
	StepCanonical      = "canonical"
	StepBLS            = "bls"
	StepMerkle         = "merkle"
	StepConstitutional = "constitutional"
)

// VerificationStep records the outcome of a single pipeline layer.
type VerificationStep struct {
	Name    string                 `json:"name"`
	Status  Verdict                `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// VerificationResult is the full output of running the pipeline against
// one document. Timestamp is excluded from the determinism guarantee:
// identical input bytes must produce byte-identical results in every
// other field.
type VerificationResult struct {
	Status    Verdict             `json:"status"`
	Steps     []VerificationStep  `json:"steps"`
	ProofHash string              `json:"proof_hash"`
	Timestamp string              `json:"timestamp"`
}

// Initialize probes every ambient dependency the pipeline needs at
// startup. A verifier that cannot reach its own cryptography or schema
// libraries must fail fast with ERROR rather than silently report every
// proof it is handed as INVALID.
func Initialize() error {
	if err := bls.Initialize(); err != nil {
		return fmt.Errorf("verification: bls backend unavailable: %w", err)
	}
	if err := schema.Probe(); err != nil {
		return fmt.Errorf("verification: schema compiler unavailable: %w", err)
	}
	return nil
}

// Pipeline runs the five-layer sequence with an optional deployment
// policy. A zero-value Pipeline trusts every policy_id, deferring
// entirely to the hard constitutional rules.
type Pipeline struct {
	Policy *config.VerifierPolicy
}

// Verify runs the full five-layer pipeline against raw document bytes,
// using the default Pipeline (no policy_id allowlist). now supplies the
// result's Timestamp field; callers pass a fixed clock in tests to keep
// results comparable.
func Verify(raw []byte, now string) VerificationResult {
	return Pipeline{}.Verify(raw, now)
}

// Verify runs the full five-layer pipeline against raw document bytes.
func (p Pipeline) Verify(raw []byte, now string) VerificationResult {
	result := VerificationResult{ProofHash: proofHash(raw), Timestamp: now}

	ok, violations, err := schema.ValidateBytes(raw)
	if err != nil {
		return fail(result, StepSchema, Error, fmt.Sprintf("schema layer unreachable: %v", err), nil)
	}
	if !ok {
		details := map[string]interface{}{"violations": violations}
		return fail(result, StepSchema, Invalid, "document does not conform to the proof schema", details)
	}
	result.Steps = append(result.Steps, VerificationStep{Name: StepSchema, Status: Valid})

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Printf("unexpected unmarshal failure after schema pass: %v", err)
		return fail(result, StepSchema, Error, "document passed schema but failed to parse", nil)
	}

	signedDocument, scopeHashHex, timestamp, step, ok := checkCanonical(raw, doc)
	if !ok {
		return fail(result, StepCanonical, step.Status, step.Message, step.Details)
	}
	result.Steps = append(result.Steps, *step)

	pubkeys, sigVariant, sigBytes, step, ok := checkBLS(doc, signedDocument)
	if !ok {
		return fail(result, StepBLS, step.Status, step.Message, step.Details)
	}
	result.Steps = append(result.Steps, *step)

	step, ok = checkMerkle(doc)
	if !ok {
		return fail(result, StepMerkle, step.Status, step.Message, step.Details)
	}
	result.Steps = append(result.Steps, *step)

	step, ok = checkConstitutional(doc, scopeHashHex, timestamp, len(pubkeys), p.Policy)
	if !ok {
		return fail(result, StepConstitutional, step.Status, step.Message, step.Details)
	}
	result.Steps = append(result.Steps, *step)

	_ = sigVariant
	_ = sigBytes
	result.Status = Valid
	return result
}

func fail(result VerificationResult, name string, status Verdict, message string, details map[string]interface{}) VerificationResult {
	result.Steps = append(result.Steps, VerificationStep{Name: name, Status: status, Message: message, Details: details})
	result.Status = status
	return result
}

func proofHash(raw []byte) string {
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])[:16]
}

func asString(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// checkCanonical enforces invariant 5 (the document as received must
// already be in RFC-8785 canonical form), invariant 3 (the embedded
// constitutional message must agree with the document's own scope hash
// and timestamp fields), and derives the bytes BLS actually verifies
// against.
//
// The signed surface is not the small embedded message field — it is
// the whole document canonicalised with pog stripped out, the
// "strip-sign-reinsert" pattern: a signer builds the message-to-sign by
// removing pog, canonicalising what remains, and signs that. The
// verifier must re-derive the identical bytes from the document it
// received rather than trust any field's own claim about what was
// signed, so this step returns canonical.StripAndCanonicalize(doc,
// "pog") as the value checkBLS verifies against. A post-signing edit to
// any field outside pog — including secret_scope_hash, root_before,
// root_after, or the merkle_proof — changes these bytes and is
// therefore caught by BLS even if nothing else inspects that field.
//
// The message/scope-hash/timestamp cross-check below is a separate,
// additional requirement (invariant 3): it rejects invalid_001_scope
// before BLS ever runs, because the canonical layer executes first in
// pipeline order, not because BLS is blind to the tampered field.
func checkCanonical(raw []byte, doc map[string]interface{}) ([]byte, string, int64, *VerificationStep, bool) {
	canonicalOK, mismatch, err := canonical.IsCanonical(raw)
	if err != nil {
		return nil, "", 0, &VerificationStep{Status: Error, Message: fmt.Sprintf("canonical check failed: %v", err)}, false
	}
	if !canonicalOK {
		details := map[string]interface{}{"offset": mismatch.Offset, "context": mismatch.Context}
		return nil, "", 0, &VerificationStep{Status: Invalid, Message: "document is not in RFC-8785 canonical form", Details: details}, false
	}

	msgField, ok := asString(doc, "message")
	if !ok {
		return nil, "", 0, &VerificationStep{Status: Invalid, Message: "message field is missing or not a string"}, false
	}
	msgBytes, err := codec.B64URLDecode(msgField, -1)
	if err != nil {
		return nil, "", 0, &VerificationStep{Status: Invalid, Message: fmt.Sprintf("message field is not valid base64url: %v", err)}, false
	}
	scopeHashHex, timestamp, err := constitutional.Parse(msgBytes)
	if err != nil {
		return nil, "", 0, &VerificationStep{Status: Invalid, Message: fmt.Sprintf("constitutional message is malformed: %v", err)}, false
	}

	declaredScopeHash, ok := asString(doc, "secret_scope_hash")
	if !ok {
		return nil, "", 0, &VerificationStep{Status: Invalid, Message: "secret_scope_hash field is missing or not a string"}, false
	}
	if declaredScopeHash != scopeHashHex {
		return nil, "", 0, &VerificationStep{
			Status:  Invalid,
			Message: "secret_scope_hash does not match the scope hash signed in the constitutional message",
			Details: map[string]interface{}{"declared": declaredScopeHash, "signed": scopeHashHex},
		}, false
	}

	declaredTimestamp, ok := doc["removal_timestamp"].(float64)
	if !ok {
		return nil, "", 0, &VerificationStep{Status: Invalid, Message: "removal_timestamp field is missing or not a number"}, false
	}
	if int64(declaredTimestamp) != timestamp {
		return nil, "", 0, &VerificationStep{
			Status:  Invalid,
			Message: "removal_timestamp does not match the timestamp signed in the constitutional message",
			Details: map[string]interface{}{"declared": int64(declaredTimestamp), "signed": timestamp},
		}, false
	}

	signedDocument, err := canonical.StripAndCanonicalize(doc, "pog")
	if err != nil {
		return nil, "", 0, &VerificationStep{Status: Error, Message: fmt.Sprintf("failed to derive signed document bytes: %v", err)}, false
	}

	return signedDocument, scopeHashHex, timestamp, &VerificationStep{Name: StepCanonical, Status: Valid}, true
}

// checkBLS verifies the signature bound in pog against signedDocument,
// the strip-sign-reinsert bytes checkCanonical derived — never against
// the small embedded message field directly.
func checkBLS(doc map[string]interface{}, signedDocument []byte) ([][]byte, string, []byte, *VerificationStep, bool) {
	pogRaw, ok := doc["pog"].(map[string]interface{})
	if !ok {
		return nil, "", nil, &VerificationStep{Status: Invalid, Message: "pog field is missing or malformed"}, false
	}

	rawKeys, ok := pogRaw["public_keys"].([]interface{})
	if !ok || len(rawKeys) == 0 {
		return nil, "", nil, &VerificationStep{Status: Invalid, Message: "pog.public_keys is missing or empty"}, false
	}
	pubkeys := make([][]byte, 0, len(rawKeys))
	for i, rk := range rawKeys {
		s, ok := rk.(string)
		if !ok {
			return nil, "", nil, &VerificationStep{Status: Invalid, Message: fmt.Sprintf("pog.public_keys[%d] is not a string", i)}, false
		}
		pk, err := codec.B64URLDecode(s, bls.PublicKeySize)
		if err != nil {
			return nil, "", nil, &VerificationStep{Status: Invalid, Message: fmt.Sprintf("pog.public_keys[%d] is invalid: %v", i, err), Details: map[string]interface{}{"reason_code": "BLS_VERDICT_MISMATCH", "error": err.Error()}}, false
		}
		if _, err := bls.PublicKeyFromBytes(pk); err != nil {
			return nil, "", nil, &VerificationStep{Status: Invalid, Message: fmt.Sprintf("pog.public_keys[%d] does not decode to a valid curve point: %v", i, err), Details: map[string]interface{}{"reason_code": "BLS_VERDICT_MISMATCH", "error": err.Error()}}, false
		}
		pubkeys = append(pubkeys, pk)
	}

	sigField, ok := pogRaw["signature"].(map[string]interface{})
	if !ok || len(sigField) != 1 {
		return nil, "", nil, &VerificationStep{Status: Invalid, Message: "pog.signature must have exactly one of single, aggregate, corrupted"}, false
	}

	var variant string
	var sigStr string
	for k, v := range sigField {
		variant = k
		sigStr, _ = v.(string)
	}

	sigBytes, err := codec.B64URLDecode(sigStr, -1)
	if err != nil {
		return pubkeys, variant, nil, &VerificationStep{Status: Invalid, Message: fmt.Sprintf("pog.signature.%s is not valid base64url: %v", variant, err), Details: map[string]interface{}{"reason_code": "BLS_VERDICT_MISMATCH", "error": err.Error()}}, false
	}

	var verified bool
	switch variant {
	case "single":
		if len(pubkeys) != 1 {
			return pubkeys, variant, sigBytes, &VerificationStep{Status: Invalid, Message: "pog.signature.single requires exactly one public key"}, false
		}
		verified = bls.VerifySingle(pubkeys[0], signedDocument, sigBytes)
	case "aggregate":
		if len(pubkeys) < 2 {
			return pubkeys, variant, sigBytes, &VerificationStep{Status: Invalid, Message: "pog.signature.aggregate requires at least two public keys"}, false
		}
		verified = bls.VerifyAggregate(pubkeys, signedDocument, sigBytes)
	case "corrupted":
		if len(pubkeys) != 1 {
			verified = false
		} else {
			verified = bls.VerifySingle(pubkeys[0], signedDocument, sigBytes)
		}
	default:
		return pubkeys, variant, sigBytes, &VerificationStep{Status: Invalid, Message: fmt.Sprintf("unrecognised signature variant %q", variant)}, false
	}

	if !verified {
		return pubkeys, variant, sigBytes, &VerificationStep{Status: Invalid, Message: "BLS signature verification failed", Details: map[string]interface{}{"reason_code": "BLS_VERDICT_MISMATCH"}}, false
	}

	return pubkeys, variant, sigBytes, &VerificationStep{Name: StepBLS, Status: Valid, Details: map[string]interface{}{"signer_count": len(pubkeys)}}, true
}

func checkMerkle(doc map[string]interface{}) (*VerificationStep, bool) {
	mp, ok := doc["merkle_proof"].(map[string]interface{})
	if !ok {
		return &VerificationStep{Status: Invalid, Message: "merkle_proof field is missing or malformed"}, false
	}
	leafHashStr, ok := asString(mp, "leaf_hash")
	if !ok {
		return &VerificationStep{Status: Invalid, Message: "merkle_proof.leaf_hash is missing or not a string"}, false
	}
	leafHashBytes, err := codec.HexDecodeLower(leafHashStr, 32)
	if err != nil {
		return &VerificationStep{Status: Invalid, Message: fmt.Sprintf("merkle_proof.leaf_hash is invalid: %v", err)}, false
	}
	var leafHash [32]byte
	copy(leafHash[:], leafHashBytes)

	pathRaw, ok := mp["path"].([]interface{})
	if !ok {
		return &VerificationStep{Status: Invalid, Message: "merkle_proof.path is missing or not an array"}, false
	}
	path := make([]merkle.MerklePathNode, 0, len(pathRaw))
	for i, pr := range pathRaw {
		node, ok := pr.(map[string]interface{})
		if !ok {
			return &VerificationStep{Status: Invalid, Message: fmt.Sprintf("merkle_proof.path[%d] is malformed", i)}, false
		}
		siblingStr, ok := asString(node, "sibling_hash")
		if !ok {
			return &VerificationStep{Status: Invalid, Message: fmt.Sprintf("merkle_proof.path[%d].sibling_hash is missing", i)}, false
		}
		siblingBytes, err := codec.HexDecodeLower(siblingStr, 32)
		if err != nil {
			return &VerificationStep{Status: Invalid, Message: fmt.Sprintf("merkle_proof.path[%d].sibling_hash is invalid: %v", i, err)}, false
		}
		isLeft, ok := node["is_left"].(bool)
		if !ok {
			return &VerificationStep{Status: Invalid, Message: fmt.Sprintf("merkle_proof.path[%d].is_left is missing or not a boolean", i)}, false
		}
		var sibling [32]byte
		copy(sibling[:], siblingBytes)
		path = append(path, merkle.MerklePathNode{SiblingHash: sibling, IsLeft: isLeft})
	}

	rootBeforeStr, ok := asString(doc, "root_before")
	if !ok {
		return &VerificationStep{Status: Invalid, Message: "root_before field is missing or not a string"}, false
	}
	rootBeforeBytes, err := codec.HexDecodeLower(rootBeforeStr, 32)
	if err != nil {
		return &VerificationStep{Status: Invalid, Message: fmt.Sprintf("root_before is invalid: %v", err)}, false
	}
	var rootBefore [32]byte
	copy(rootBefore[:], rootBeforeBytes)

	proof := merkle.MerkleProof{LeafHash: leafHash, Path: path}
	if !merkle.Verify(proof, rootBefore) {
		return &VerificationStep{Status: Invalid, Message: "Merkle proof does not reconstruct root_before"}, false
	}
	return &VerificationStep{Name: StepMerkle, Status: Valid}, true
}

func checkConstitutional(doc map[string]interface{}, scopeHashHex string, timestamp int64, signerCount int, policy *config.VerifierPolicy) (*VerificationStep, bool) {
	version, _ := asString(doc, "version")
	policyID := ""
	if pogRaw, ok := doc["pog"].(map[string]interface{}); ok {
		policyID, _ = asString(pogRaw, "policy_id")
	}

	violation := constitutional.CheckPolicy(version, timestamp, constitutional.ProofOfGovernance{
		PublicKeyCount: signerCount,
		PolicyID:       policyID,
	})
	if violation != nil {
		return &VerificationStep{
			Status:  Invalid,
			Message: violation.Error(),
			Details: map[string]interface{}{"rule": violation.Rule},
		}, false
	}

	if policy != nil && !policy.IsTrustedPolicyID(policyID) {
		return &VerificationStep{
			Status:  Invalid,
			Message: fmt.Sprintf("policy_id %q is not on the deployment's trusted allowlist", policyID),
			Details: map[string]interface{}{"rule": "trusted_policy_ids"},
		}, false
	}

	return &VerificationStep{Name: StepConstitutional, Status: Valid}, true
}
