package support

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lookupJSON walks a dotted path such as "result.pages.0.source".
func lookupJSON(doc, path string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	for _, part := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", part, path)
			}
			v = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %s", part, path)
			}
			v = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q of %s", part, path)
		}
	}
	return v, nil
}

func jsonFieldEquals(doc, path, expected string) error {
	v, err := lookupJSON(doc, path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("%s = %q, expected %q", path, got, expected)
	}
	return nil
}
