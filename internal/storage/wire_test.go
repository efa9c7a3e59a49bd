package storage

import (
	"reflect"
	"testing"
)

func TestDecodeStringSet(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"json array", `["api","backend"]`, []string{"api", "backend"}},
		{"empty array", `[]`, nil},
		{"double-encoded array", `"[\"api\",\"backend\"]"`, []string{"api", "backend"}},
		{"json string", `"urgent"`, []string{"urgent"}},
		{"bare string", `not-json`, []string{"not-json"}},
		{"array with empty entries", `["api","",""]`, []string{"api"}},
		{"json number", `42`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeStringSet(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeStringSet(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEncodeStringSet(t *testing.T) {
	if got := EncodeStringSet(nil); got != "[]" {
		t.Errorf("nil set must encode as empty array, got %q", got)
	}
	if got := EncodeStringSet([]string{}); got != "[]" {
		t.Errorf("empty set must encode as empty array, got %q", got)
	}
	if got := EncodeStringSet([]string{"api", "backend"}); got != `["api","backend"]` {
		t.Errorf("unexpected encoding: %q", got)
	}
}

func TestStringSetRoundTrip(t *testing.T) {
	values := []string{"api", "backend", "v2"}
	if got := DecodeStringSet(EncodeStringSet(values)); !reflect.DeepEqual(got, values) {
		t.Errorf("round trip lost data: %v", got)
	}
}
