package canon

import "fmt"

// has reports key presence, including keys holding null.
func has(doc map[string]any, key string) bool {
	_, ok := doc[key]
	return ok
}

// stringField returns "" when key is absent and an error when the value is
// present but not a string (null included).
func stringField(doc map[string]any, key string) (string, error) {
	v, ok := doc[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string, got %s", key, jsonType(v))
	}
	return s, nil
}

// objectField returns an empty object when key is absent and an error when
// the value is present but not an object (null included).
func objectField(doc map[string]any, key string) (map[string]any, error) {
	v, ok := doc[key]
	if !ok {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %q must be an object, got %s", key, jsonType(v))
	}
	return m, nil
}

// valueOr returns doc[key] when present and non-null, else def.
func valueOr(doc map[string]any, key string, def any) any {
	if v, ok := doc[key]; ok && v != nil {
		return v
	}
	return def
}

// truthy follows JSON-ish truthiness: null, false, 0, "" and empty
// containers are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int64, int32:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
