package node

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/af-corp/medullar-gateway/internal/medullar"
	"github.com/google/go-cmp/cmp"
)

func TestReturnJSONArray(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want []string
	}{
		{"object", json.RawMessage(`{"a":1}`), []string{`{"a":1}`}},
		{"array", json.RawMessage(`[{"a":1},{"b":2}]`), []string{`{"a":1}`, `{"b":2}`}},
		{"empty array", json.RawMessage(`[]`), []string{}},
		{"empty body", json.RawMessage(``), []string{`{}`}},
		{"null", json.RawMessage(`null`), []string{`{}`}},
		{"scalar", json.RawMessage(`"ok"`), []string{`{"value":"ok"}`}},
		{"array of scalars", json.RawMessage(`[1,2]`), []string{`{"value":1}`, `{"value":2}`}},
		{"go value", map[string]any{"success": true}, []string{`{"success":true}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ReturnJSONArray(tt.v, 3)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := make([]string, 0, len(items))
			for _, it := range items {
				got = append(got, string(it.JSON))
				if it.PairedItem == nil || it.PairedItem.Item != 3 {
					t.Errorf("expected pairing with item 3, got %+v", it.PairedItem)
				}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("items mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReturnJSONArray_InvalidJSON(t *testing.T) {
	tests := map[string]json.RawMessage{
		"plain text": json.RawMessage(`Service temporarily degraded`),
		"truncated":  json.RawMessage(`{"answer": "trunc`),
		"bad array":  json.RawMessage(`[{"a":1},`),
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			items, err := ReturnJSONArray(raw, 0)
			if !medullar.IsSemantic(err) {
				t.Fatalf("expected semantic error, got %v", err)
			}
			if items != nil {
				t.Errorf("expected no items, got %v", items)
			}
		})
	}
}

func TestErrorItem(t *testing.T) {
	it := errorItem(errors.New("boom"), 2)
	if string(it.JSON) != `{"error":"boom"}` {
		t.Errorf("unexpected error item %s", it.JSON)
	}
	if it.PairedItem.Item != 2 {
		t.Errorf("expected pairing with 2, got %d", it.PairedItem.Item)
	}
}
