package constitutional

import "fmt"

// ProofOfGovernance is the minimal shape policy checks need: the number
// of public keys bound into the signature and the policy identifier.
// pkg/proof owns the full ProofOfGovernance type; this one carries only
// the two values the policy checks read.
type ProofOfGovernance struct {
	PublicKeyCount int
	PolicyID       string
}

// PolicyViolation describes a single failed constitutional rule.
type PolicyViolation struct {
	Rule    string
	Message string
}

func (v PolicyViolation) Error() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

// CheckPolicy runs the C7 constitutional validator: pure policy checks
// performed after cryptography succeeds, so that a bad signature is
// never masked by a policy rejection. Returns the first violation found,
// or nil if all rules pass.
func CheckPolicy(version string, removalTimestamp int64, pog ProofOfGovernance) *PolicyViolation {
	if version != VersionOne {
		return &PolicyViolation{Rule: "version", Message: fmt.Sprintf("expected %q, got %q", VersionOne, version)}
	}
	if removalTimestamp <= 0 {
		return &PolicyViolation{Rule: "removal_timestamp", Message: "must be greater than zero"}
	}
	if pog.PublicKeyCount < MinSignersForget {
		return &PolicyViolation{
			Rule:    "C3-Forget",
			Message: fmt.Sprintf("FORGET requires at least %d signers, got %d", MinSignersForget, pog.PublicKeyCount),
		}
	}
	if pog.PolicyID == "" {
		return &PolicyViolation{Rule: "policy_id", Message: "must be a non-empty string"}
	}
	return nil
}
