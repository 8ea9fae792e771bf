package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint returns a stable hash of the normalized value. Two assertions
// with equal fingerprints for the same (entity, field) are treated as the
// same candidate value and their weights accumulate.
func Fingerprint(value any) string {
	canonical := canonicalize(value)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// canonicalize renders a value into a stable textual form: strings are
// case-folded with whitespace collapsed, maps are serialized with sorted
// keys, everything else goes through JSON.
func canonicalize(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return "s:" + NormalizeString(v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("m:{")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(canonicalize(v[k]))
		}
		b.WriteByte('}')
		return b.String()
	case []any:
		var b strings.Builder
		b.WriteString("a:[")
		for i, e := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(canonicalize(e))
		}
		b.WriteByte(']')
		return b.String()
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("v:%v", v)
		}
		return "j:" + string(raw)
	}
}

// NormalizeString lowercases and collapses runs of whitespace so trivially
// different renderings of the same value share a fingerprint.
func NormalizeString(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
