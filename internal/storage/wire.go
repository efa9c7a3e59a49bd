package storage

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// DecodeStringSet normalizes the loose wire shapes tags and blocked_by
// arrive in: a JSON array of strings, a JSON-encoded string containing such
// an array (double-encoded rows from older clients), or a bare
// comma-free string. Normalization happens once here at the store boundary;
// engine code only ever sees []string.
func DecodeStringSet(raw string) []string {
	if raw == "" {
		return nil
	}

	value := gjson.Parse(raw)

	// Double-encoded: a JSON string whose content is itself a JSON array.
	if value.Type == gjson.String {
		inner := gjson.Parse(value.String())
		if inner.IsArray() {
			value = inner
		} else {
			if s := value.String(); s != "" {
				return []string{s}
			}
			return nil
		}
	}

	if value.IsArray() {
		var out []string
		for _, item := range value.Array() {
			if s := item.String(); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	// Not JSON at all: treat the raw text as a single entry.
	if !gjson.Valid(raw) {
		return []string{raw}
	}
	return nil
}

// EncodeStringSet serializes a string set as a JSON array for storage.
// A nil or empty set encodes as "[]" so reads never see SQL NULL.
func EncodeStringSet(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}
