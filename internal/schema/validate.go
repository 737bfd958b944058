package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"google.golang.org/genai"
)

// ErrNotJSON is returned when the payload is not a JSON document.
var ErrNotJSON = errors.New("response is not valid JSON")

// ViolationError reports the first place where a value departs from its schema.
type ViolationError struct {
	Path   string // JSON path, e.g. $.openPorts[2].port
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

// Validate decodes raw and checks it against s. Keys not declared in the
// schema are tolerated; everything declared is enforced.
func Validate(s *genai.Schema, raw []byte) error {
	if s == nil {
		return errors.New("schema: nil schema")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after document", ErrNotJSON)
	}
	return check(s, v, "$")
}

func check(s *genai.Schema, v any, path string) error {
	if v == nil {
		if s.Nullable != nil && *s.Nullable {
			return nil
		}
		return &ViolationError{Path: path, Reason: "null is not allowed"}
	}

	switch s.Type {
	case genai.TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return mismatch(path, "object", v)
		}
		for _, name := range s.Required {
			if _, present := obj[name]; !present {
				return &ViolationError{Path: path + "." + name, Reason: "required field is missing"}
			}
		}
		for _, name := range propertyNames(s) {
			child, present := obj[name]
			if !present {
				continue
			}
			// An optional field may be sent as null; it decodes to its zero value.
			if child == nil && !slices.Contains(s.Required, name) {
				continue
			}
			if err := check(s.Properties[name], child, path+"."+name); err != nil {
				return err
			}
		}
		return nil

	case genai.TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return mismatch(path, "array", v)
		}
		if s.Items == nil {
			return nil
		}
		for i, item := range arr {
			if err := check(s.Items, item, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		return nil

	case genai.TypeString:
		str, ok := v.(string)
		if !ok {
			return mismatch(path, "string", v)
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, str) {
			return &ViolationError{Path: path, Reason: fmt.Sprintf("%q is not one of %v", str, s.Enum)}
		}
		return nil

	case genai.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return mismatch(path, "boolean", v)
		}
		return nil

	case genai.TypeInteger:
		n, ok := v.(json.Number)
		if !ok {
			return mismatch(path, "integer", v)
		}
		if _, err := n.Int64(); err != nil {
			// Accept 443.0 but not 44.3.
			f, ferr := n.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return &ViolationError{Path: path, Reason: fmt.Sprintf("%s is not an integer", n)}
			}
		}
		return nil

	case genai.TypeNumber:
		if _, ok := v.(json.Number); !ok {
			return mismatch(path, "number", v)
		}
		return nil
	}

	// Unspecified types accept anything.
	return nil
}

// propertyNames walks declared properties in a stable order so the reported
// violation is deterministic.
func propertyNames(s *genai.Schema) []string {
	if len(s.PropertyOrdering) == len(s.Properties) {
		return s.PropertyOrdering
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func mismatch(path, want string, got any) error {
	return &ViolationError{Path: path, Reason: fmt.Sprintf("expected %s, got %s", want, kindOf(got))}
}

func kindOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
