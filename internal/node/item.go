package node

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/af-corp/medullar-gateway/internal/medullar"
)

// PairedItem links an output item to the input item that produced it.
type PairedItem struct {
	Item int `json:"item"`
}

// Item is one entry of the host's item array.
type Item struct {
	JSON       json.RawMessage `json:"json"`
	PairedItem *PairedItem     `json:"pairedItem,omitempty"`
}

// ReturnJSONArray wraps v into output items paired with input item index. A
// JSON array becomes one item per element, anything else a single item. Raw
// input that is not valid JSON is a *medullar.SemanticError.
func ReturnJSONArray(v any, index int) ([]Item, error) {
	raw, err := toRaw(v)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Item{newItem(json.RawMessage(`{}`), index)}, nil
	}
	if !json.Valid(trimmed) {
		return nil, &medullar.SemanticError{Message: fmt.Sprintf("response is not valid JSON: %q", preview(trimmed))}
	}

	if trimmed[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("decode result array: %w", err)
		}
		items := make([]Item, 0, len(elems))
		for _, e := range elems {
			obj, err := wrapScalar(e)
			if err != nil {
				return nil, err
			}
			items = append(items, newItem(obj, index))
		}
		return items, nil
	}

	obj, err := wrapScalar(trimmed)
	if err != nil {
		return nil, err
	}
	return []Item{newItem(obj, index)}, nil
}

func preview(raw []byte) string {
	const max = 64
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}

func newItem(raw json.RawMessage, index int) Item {
	return Item{JSON: raw, PairedItem: &PairedItem{Item: index}}
}

func toRaw(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case json.RawMessage:
		return t, nil
	case []byte:
		return json.RawMessage(t), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}

// wrapScalar keeps objects as they are and wraps any other value so every
// item carries a JSON object.
func wrapScalar(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		return raw, nil
	}
	data, err := json.Marshal(map[string]json.RawMessage{"value": raw})
	if err != nil {
		return nil, fmt.Errorf("wrap result value: %w", err)
	}
	return data, nil
}

// errorItem is emitted in place of a failed item when continue-on-fail is on.
func errorItem(err error, index int) Item {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return newItem(data, index)
}
