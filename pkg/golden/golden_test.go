package golden

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nocthub/offline-verifier/pkg/canonical"
	"github.com/nocthub/offline-verifier/pkg/codec"
	"github.com/nocthub/offline-verifier/pkg/crypto/bls"
	"github.com/nocthub/offline-verifier/pkg/verification"
)

func TestCanonicalVectorsMatchExpectedVerdict(t *testing.T) {
	for _, v := range canonicalVectors() {
		name := v["name"].(string)
		var raw []byte
		if s, ok := v["input_non_canonical"].(string); ok {
			raw = []byte(s)
		} else {
			b, err := json.Marshal(v["input"])
			if err != nil {
				t.Fatalf("%s: marshal input: %v", name, err)
			}
			raw = b
		}

		ok, _, err := canonical.IsCanonical(raw)
		if err != nil {
			t.Fatalf("%s: IsCanonical: %v", name, err)
		}
		want := v["expected_verdict"].(string) == "VALID"
		if ok != want {
			t.Fatalf("%s: expected canonical=%v, got %v", name, want, ok)
		}
	}
}

func TestBLSVectorsMatchExpectedVerdict(t *testing.T) {
	vectors, err := blsVectors()
	if err != nil {
		t.Fatalf("blsVectors: %v", err)
	}
	for _, v := range vectors {
		name := v["name"].(string)
		message, err := codec.B64URLDecode(v["message"].(string), -1)
		if err != nil {
			t.Fatalf("%s: decode message: %v", name, err)
		}
		rawKeys := v["public_keys"].([]interface{})
		pubkeys := make([][]byte, len(rawKeys))
		for i, rk := range rawKeys {
			pk, err := codec.B64URLDecode(rk.(string), bls.PublicKeySize)
			if err != nil {
				t.Fatalf("%s: decode public_keys[%d]: %v", name, i, err)
			}
			pubkeys[i] = pk
		}
		sigField := v["signature"].(map[string]interface{})
		var variant, sigStr string
		for k, val := range sigField {
			variant, sigStr = k, val.(string)
		}
		sig, err := codec.B64URLDecode(sigStr, -1)
		if err != nil {
			t.Fatalf("%s: decode signature: %v", name, err)
		}

		var verified bool
		switch variant {
		case "single", "corrupted":
			verified = len(pubkeys) == 1 && bls.VerifySingle(pubkeys[0], message, sig)
		case "aggregate":
			verified = bls.VerifyAggregate(pubkeys, message, sig)
		}

		want := v["expected_verdict"].(string) == "VALID"
		if verified != want {
			t.Fatalf("%s: expected verified=%v, got %v", name, want, verified)
		}
	}
}

func TestIntegrationVectorsMatchExpectedVerdict(t *testing.T) {
	vectors, err := integrationVectors()
	if err != nil {
		t.Fatalf("integrationVectors: %v", err)
	}
	for _, v := range vectors {
		name := v["name"].(string)
		docRaw, err := canonical.Encode(v["proof"])
		if err != nil {
			t.Fatalf("%s: canonicalise: %v", name, err)
		}
		result := verification.Verify(docRaw, "2026-01-01T00:00:00Z")
		want := verification.Verdict(v["expected_verdict"].(string))
		if result.Status != want {
			t.Fatalf("%s: expected %s, got %s (steps: %+v)", name, want, result.Status, result.Steps)
		}
	}
}

func TestWriteAllProducesManifestCoveringEveryCategory(t *testing.T) {
	dir := t.TempDir()
	if err := WriteAll(dir); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	m := mustReadManifest(t, dir)
	for _, category := range []string{CategoryCanonical, CategoryBLS, CategoryIntegration} {
		if len(m.Vectors[category]) == 0 {
			t.Fatalf("expected manifest to cover category %s", category)
		}
	}
}

func mustReadManifest(t *testing.T, dir string) Manifest {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, "MANIFEST.json"))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}
	return m
}
