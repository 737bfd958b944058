// Package schema derives Gemini response schemas from Go record types and
// validates generated JSON against them.
//
// The Go struct is the single source of truth: field names come from the json
// tag, and constraints come from the schema tag:
//
//	Port    int     `json:"port" schema:"required"`
//	SSL     *Cert   `json:"sslCertificate" schema:"required,nullable"`
//	Status  string  `json:"status" schema:"required,enum=positive|negative|warning"`
//
// The resulting *genai.Schema is sent as the response schema and reused by
// Validate on the way back.
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"google.golang.org/genai"
)

var (
	cacheMu sync.Mutex
	cache   = make(map[reflect.Type]*genai.Schema)
)

// For returns the response schema for the type of v. v is usually a zero
// value such as WhoisRecord{}. Schemas are cached per type; callers must not
// mutate the returned value.
func For(v any) *genai.Schema {
	t := reflect.TypeOf(v)
	if t == nil {
		panic("schema: For(nil)")
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if s, ok := cache[t]; ok {
		return s
	}
	s := build(t)
	cache[t] = s
	return s
}

// fieldTag holds the parsed schema:"..." options for a struct field.
type fieldTag struct {
	required    bool
	nullable    bool
	enum        []string
	description string
}

func parseTag(tag string) fieldTag {
	var ft fieldTag
	if tag == "" {
		return ft
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "required":
			ft.required = true
		case part == "nullable":
			ft.nullable = true
		case strings.HasPrefix(part, "enum="):
			ft.enum = strings.Split(strings.TrimPrefix(part, "enum="), "|")
		case strings.HasPrefix(part, "desc="):
			ft.description = strings.TrimPrefix(part, "desc=")
		}
	}
	return ft
}

func build(t reflect.Type) *genai.Schema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return &genai.Schema{Type: genai.TypeString}
	case reflect.Bool:
		return &genai.Schema{Type: genai.TypeBoolean}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &genai.Schema{Type: genai.TypeInteger}
	case reflect.Float32, reflect.Float64:
		return &genai.Schema{Type: genai.TypeNumber}
	case reflect.Slice, reflect.Array:
		return &genai.Schema{Type: genai.TypeArray, Items: build(t.Elem())}
	case reflect.Struct:
		return buildObject(t)
	default:
		panic(fmt.Sprintf("schema: unsupported kind %s for type %s", t.Kind(), t))
	}
}

func buildObject(t reflect.Type) *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema),
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonName(f)
		if name == "" {
			continue
		}
		ft := parseTag(f.Tag.Get("schema"))

		prop := build(f.Type)
		if ft.nullable {
			prop.Nullable = genai.Ptr(true)
		}
		if len(ft.enum) > 0 {
			prop.Enum = ft.enum
		}
		if ft.description != "" {
			prop.Description = ft.description
		}

		s.Properties[name] = prop
		s.PropertyOrdering = append(s.PropertyOrdering, name)
		if ft.required {
			s.Required = append(s.Required, name)
		}
	}
	return s
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
