package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseVariables decodes the template-variables input. It accepts a JSON
// object or any YAML mapping. Nested mappings are flattened into dotted
// keys and sequences keep their JSON form. Blank input yields a nil map.
func ParseVariables(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	decoded, err := decodeJSONObject(raw)
	if err != nil {
		if decoded, err = decodeYAMLMapping(raw); err != nil {
			return nil, err
		}
	}

	vars := make(map[string]string, len(decoded))
	if err := flatten(vars, "", decoded); err != nil {
		return nil, err
	}
	return vars, nil
}

// decodeJSONObject keeps JSON semantics for JSON input: escapes such as \/
// are honoured and a repeated key takes the last value.
func decodeJSONObject(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var decoded map[string]any
	if err := dec.Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded == nil || dec.More() {
		return nil, fmt.Errorf("not a single JSON object")
	}
	return decoded, nil
}

func decodeYAMLMapping(raw string) (map[string]any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("parsing template variables: %w", err)
	}
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing template variables: expected an object of key/value pairs")
	}

	var decoded map[string]any
	if err := node.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("parsing template variables: %w", err)
	}
	return decoded, nil
}

func flatten(dst map[string]string, prefix string, value any) error {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			if err := flatten(dst, joinKey(prefix, k), child); err != nil {
				return err
			}
		}
	case map[any]any:
		for k, child := range v {
			if err := flatten(dst, joinKey(prefix, fmt.Sprint(k)), child); err != nil {
				return err
			}
		}
	case []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("template variable %s: %w", prefix, err)
		}
		dst[prefix] = string(b)
	case nil:
		dst[prefix] = ""
	case string:
		dst[prefix] = v
	default:
		dst[prefix] = fmt.Sprint(v)
	}
	return nil
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
