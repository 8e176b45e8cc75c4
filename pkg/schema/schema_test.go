package schema

import "testing"

func validDoc() map[string]interface{} {
	return map[string]interface{}{
		"version":           "1.0",
		"secret_scope_hash": "aaaa",
		"secret_hash":       "bbbb",
		"root_before":       "cccc",
		"root_after":        "dddd",
		"removal_timestamp": float64(1700000000),
		"message":           "ZGVhZGJlZWY",
		"merkle_proof": map[string]interface{}{
			"leaf_hash": "eeee",
			"path":      []interface{}{},
		},
		"pog": map[string]interface{}{
			"public_keys": []interface{}{"pk1", "pk2"},
			"policy_id":   "policy-123",
			"signature":   map[string]interface{}{"aggregate": "sig"},
		},
		"metadata": map[string]interface{}{
			"repo_id":       "repo",
			"branch":        "main",
			"commit_before": "c1",
			"commit_after":  "c2",
		},
	}
}

func TestProbe(t *testing.T) {
	if err := Probe(); err != nil {
		t.Fatalf("Probe: %v", err)
	}
}

func TestValidateValidDocument(t *testing.T) {
	ok, violations, err := Validate(validDoc())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid document, got violations: %+v", violations)
	}
}

func TestValidateRejectsAdditionalProperty(t *testing.T) {
	doc := validDoc()
	doc["unexpected_field"] = "x"
	ok, violations, err := Validate(doc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ok {
		t.Fatal("expected additional property to be rejected")
	}
	if len(violations) == 0 {
		t.Fatal("expected at least one violation")
	}
}

func TestValidateRejectsWrongVersion(t *testing.T) {
	doc := validDoc()
	doc["version"] = "2.0"
	ok, _, err := Validate(doc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ok {
		t.Fatal("expected unsupported version to be rejected")
	}
}

func TestValidateRejectsNegativeTimestamp(t *testing.T) {
	doc := validDoc()
	doc["removal_timestamp"] = float64(-1)
	ok, _, err := Validate(doc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ok {
		t.Fatal("expected negative timestamp to be rejected")
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	doc := validDoc()
	delete(doc, "pog")
	ok, violations, err := Validate(doc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ok {
		t.Fatal("expected missing pog to be rejected")
	}
	if len(violations) == 0 {
		t.Fatal("expected at least one violation")
	}
}
