package schema

// secretRemovalProofSchema is the fixed Draft 2020-12 JSON Schema for
// the SecretRemovalProof wire format (spec §3, §6). additionalProperties
// is false at every object level: an unknown field anywhere is a
// structural rejection.
const secretRemovalProofSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://nocthub.example/schemas/secret-removal-proof.json",
  "type": "object",
  "additionalProperties": false,
  "required": [
    "version",
    "secret_scope_hash",
    "secret_hash",
    "root_before",
    "root_after",
    "merkle_proof",
    "removal_timestamp",
    "pog",
    "metadata",
    "message"
  ],
  "properties": {
    "version": { "type": "string", "enum": ["1.0"] },
    "secret_scope_hash": { "type": "string" },
    "secret_hash": { "type": "string" },
    "root_before": { "type": "string" },
    "root_after": { "type": "string" },
    "removal_timestamp": { "type": "integer", "minimum": 0 },
    "message": { "type": "string" },
    "merkle_proof": {
      "type": "object",
      "additionalProperties": false,
      "required": ["leaf_hash", "path"],
      "properties": {
        "leaf_hash": { "type": "string" },
        "path": {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": false,
            "required": ["sibling_hash", "is_left"],
            "properties": {
              "sibling_hash": { "type": "string" },
              "is_left": { "type": "boolean" }
            }
          }
        }
      }
    },
    "pog": {
      "type": "object",
      "additionalProperties": false,
      "required": ["public_keys", "signature", "policy_id"],
      "properties": {
        "public_keys": {
          "type": "array",
          "minItems": 1,
          "items": { "type": "string" }
        },
        "policy_id": { "type": "string" },
        "signature": {
          "type": "object",
          "minProperties": 1,
          "maxProperties": 1,
          "properties": {
            "single": { "type": "string" },
            "aggregate": { "type": "string" },
            "corrupted": { "type": "string" }
          },
          "additionalProperties": false
        }
      }
    },
    "metadata": {
      "type": "object",
      "additionalProperties": false,
      "required": ["repo_id", "branch", "commit_before", "commit_after"],
      "properties": {
        "repo_id": { "type": "string" },
        "branch": { "type": "string" },
        "commit_before": { "type": "string" },
        "commit_after": { "type": "string" }
      }
    }
  }
}`
