// Package schema implements the structural/type validator (C6) for
// SecretRemovalProof documents against a fixed JSON Schema (Draft
// 2020-12). Additional properties are forbidden everywhere in the tree,
// so an extra field anywhere is a rejection, not a silently-ignored
// extension point.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// Violation describes one failing location in the document, reported by
// its JSON pointer path.
type Violation struct {
	InstanceLocation string
	Messages         []string
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compile() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		compiled, compileErr = c.Compile([]byte(secretRemovalProofSchema))
	})
	return compiled, compileErr
}

// Probe compiles the fixed schema once and reports whether the schema
// compiler is reachable at all, for the ambient-state startup check: a
// verifier that cannot even compile its own schema must fail ERROR, not
// silently report every proof INVALID.
func Probe() error {
	_, err := compile()
	return err
}

// Validate checks raw (a parsed JSON document, as produced by
// json.Unmarshal into map[string]interface{} or a similar untyped
// value) against the fixed SecretRemovalProof schema. On failure it
// returns the violations sorted by instance location, the first of
// which is the "first offending node" the orchestrator reports.
func Validate(doc interface{}) (bool, []Violation, error) {
	s, err := compile()
	if err != nil {
		return false, nil, fmt.Errorf("schema: compile: %w", err)
	}

	result := s.Validate(doc)
	if result.IsValid() {
		return true, nil, nil
	}

	violations := make([]Violation, 0, len(result.Details))
	for _, d := range result.Details {
		if d.Valid {
			continue
		}
		msgs := make([]string, 0, len(d.Errors))
		for _, e := range d.Errors {
			msgs = append(msgs, e.Error())
		}
		violations = append(violations, Violation{InstanceLocation: d.InstanceLocation, Messages: msgs})
	}
	sort.Slice(violations, func(i, j int) bool {
		return violations[i].InstanceLocation < violations[j].InstanceLocation
	})
	return false, violations, nil
}

// ValidateBytes parses raw JSON bytes and validates them, for callers
// that have not already parsed the document into an untyped value.
func ValidateBytes(raw []byte) (bool, []Violation, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, nil, fmt.Errorf("schema: parse: %w", err)
	}
	return Validate(doc)
}
