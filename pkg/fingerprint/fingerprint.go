// Package fingerprint produces deterministic hashes for change detection and
// content-addressed graph keys.
package fingerprint

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Generate creates a deterministic fingerprint for record data. The
// fingerprint is a SHA256 hash of the canonicalized JSON, so key order and
// whitespace differences in the source payload do not register as changes.
func Generate(data map[string]any) string {
	canonical := canonicalize(data)
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}

// GenerateFromJSON creates a fingerprint from raw JSON.
func GenerateFromJSON(data json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", err
	}
	return Generate(m), nil
}

// Content hashes creative text for use as a content-addressed node key.
func Content(text string) string {
	hash := sha512.Sum512([]byte(text))
	return hex.EncodeToString(hash[:])
}

// canonicalize creates a deterministic string representation of a value by
// sorting map keys and recursively processing nested structures.
func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		return canonicalizeMap(v)
	case []any:
		return canonicalizeArray(v)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func canonicalizeMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := "{"
	for i, k := range keys {
		if i > 0 {
			result += ","
		}
		keyJSON, _ := json.Marshal(k)
		result += string(keyJSON) + ":" + canonicalize(m[k])
	}
	result += "}"
	return result
}

func canonicalizeArray(arr []any) string {
	result := "["
	for i, v := range arr {
		if i > 0 {
			result += ","
		}
		result += canonicalize(v)
	}
	result += "]"
	return result
}

// HasChanged compares two fingerprints.
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}
