package node

import (
	"fmt"
	"strconv"

	"github.com/af-corp/medullar-gateway/internal/medullar"
)

// Parameters reads node parameter values for a given input item.
type Parameters interface {
	Value(name string, item int) (any, bool)
}

// MapParameters resolves a parameter from the item's own values, then the
// node-level values, then the description default.
type MapParameters struct {
	Node  map[string]any
	Items []map[string]any

	defaults map[string]any
}

func NewMapParameters(nodeParams map[string]any, itemParams []map[string]any) *MapParameters {
	return &MapParameters{
		Node:     nodeParams,
		Items:    itemParams,
		defaults: defaults(),
	}
}

func (m *MapParameters) Value(name string, item int) (any, bool) {
	if item >= 0 && item < len(m.Items) {
		if v, ok := m.Items[item][name]; ok {
			return v, true
		}
	}
	if v, ok := m.Node[name]; ok {
		return v, true
	}
	v, ok := m.defaults[name]
	return v, ok
}

// String returns the parameter as a string. Missing parameters yield "".
func String(p Parameters, name string, item int) (string, error) {
	v, ok := p.Value(name, item)
	if !ok || v == nil {
		return "", nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case map[string]any:
		// resource locator values arrive as {"mode": ..., "value": ...}
		if inner, ok := t["value"]; ok {
			return fmt.Sprint(inner), nil
		}
	}
	return "", &medullar.ValidationError{Field: name, Message: fmt.Sprintf("expected a string, got %T", v)}
}

// RequiredString is String that rejects an empty value.
func RequiredString(p Parameters, name string, item int) (string, error) {
	s, err := String(p, name, item)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", &medullar.ValidationError{Field: name, Message: "is required"}
	}
	return s, nil
}

// Bool returns the parameter as a bool. Missing parameters yield false.
func Bool(p Parameters, name string, item int) (bool, error) {
	v, ok := p.Value(name, item)
	if !ok || v == nil {
		return false, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		if t == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, &medullar.ValidationError{Field: name, Message: fmt.Sprintf("invalid boolean %q", t)}
		}
		return b, nil
	}
	return false, &medullar.ValidationError{Field: name, Message: fmt.Sprintf("expected a boolean, got %T", v)}
}
