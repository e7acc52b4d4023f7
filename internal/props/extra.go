package props

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/starford/stew/internal/apperr"
)

// Extra holds the unmanaged keys of a property object verbatim.
type Extra map[string]json.RawMessage

// Get decodes an unmanaged value.
func (e Extra) Get(name string) (any, bool) {
	raw, ok := e[name]
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

func (e *Extra) set(name string, value any) error {
	if value == nil {
		delete(*e, name)
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return apperr.New(apperr.ErrInvalidValue, "%s: %v", name, err)
	}
	if *e == nil {
		*e = make(Extra)
	}
	(*e)[name] = raw
	return nil
}

// marshalWithExtra encodes v and merges the unmanaged keys in. Managed
// keys always win.
func marshalWithExtra(v any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := obj[k]; !ok {
			obj[k] = raw
		}
	}
	return json.Marshal(obj)
}

// unmarshalWithExtra decodes data into v and returns every key not listed
// in managed.
func unmarshalWithExtra(data []byte, v any, managed []string) (Extra, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for _, k := range managed {
		delete(obj, k)
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return obj, nil
}

func isManaged(managed []string, name string) bool {
	return slices.Contains(managed, name)
}

// The helpers below convert generic values (typically decoded JSON) into
// the types of managed fields.

func asString(name string, value any) (*string, error) {
	if value == nil {
		return nil, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, invalid(name, "string", value)
	}
	return &s, nil
}

func asBool(name string, value any) (*bool, error) {
	if value == nil {
		return nil, nil
	}
	b, ok := value.(bool)
	if !ok {
		return nil, invalid(name, "boolean", value)
	}
	return &b, nil
}

func asInt(name string, value any) (*int, error) {
	var n int
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != float64(int(v)) {
			return nil, invalid(name, "integer", value)
		}
		n = int(v)
	default:
		return nil, invalid(name, "number", value)
	}
	return &n, nil
}

func asStrings(name string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(name, "string array", value)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, invalid(name, "string array", value)
	}
}

func asObject(name string, value any) (map[string]any, error) {
	if value == nil {
		return nil, nil
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, invalid(name, "object", value)
	}
	return m, nil
}

func invalid(name, want string, value any) error {
	return apperr.New(apperr.ErrInvalidValue, "%s must be a %s, got %s", name, want, fmt.Sprintf("%T", value))
}
