package metadata

import (
	"reflect"
	"sort"
	"strings"
)

// SchemaDraft is the JSON schema dialect of every generated schema.
const SchemaDraft = "http://json-schema.org/draft-07/schema#"

// Schema is a JSON schema document.
type Schema map[string]any

// NewSchema returns an empty object schema.
func NewSchema(id, title, description string) Schema {
	s := Schema{
		"required":             []string{},
		"properties":           map[string]any{},
		"type":                 "object",
		"additionalProperties": false,
	}
	if id != "" {
		s["$schema"] = SchemaDraft
		s["$id"] = id
		s["version"] = "0.1.0"
	}
	if title != "" {
		s["title"] = title
	}
	if description != "" {
		s["description"] = description
	}
	return s
}

// BaseSchema is the metadata schema every interface starts from. It
// requires the NWBFile section and its session start time.
func BaseSchema() Schema {
	s := NewSchema("metadata.schema.json", "Metadata", "Schema for the metadata")
	nwbFile := NewSchema("", "", "")
	nwbFile.AddProperty("session_description", str("a description of the session where this data was generated"), false)
	nwbFile.AddProperty("identifier", str("a unique text identifier for the file"), false)
	nwbFile.AddProperty("session_start_time", Schema{
		"type":        "string",
		"format":      "date-time",
		"description": "the start date and time of the recording session",
	}, true)
	nwbFile.AddProperty("experimenter", strList("name of person who performed experiment"), false)
	nwbFile.AddProperty("experiment_description", str("general description of the experiment"), false)
	nwbFile.AddProperty("session_id", str("lab-specific ID for the session"), false)
	nwbFile.AddProperty("institution", str("institution(s) where experiment is performed"), false)
	nwbFile.AddProperty("lab", str("lab where experiment was performed"), false)
	nwbFile.AddProperty("keywords", strList("terms to search over"), false)
	nwbFile.AddProperty("related_publications", strList("publications related to the experiment"), false)
	s.AddProperty(NWBFile, nwbFile, true)

	subject := NewSchema("", "", "")
	for _, name := range []string{"subject_id", "species", "sex", "age", "description", "genotype", "strain"} {
		subject.AddProperty(name, str(""), false)
	}
	subject.AddProperty("date_of_birth", Schema{"type": "string", "format": "date-time"}, false)
	s.AddProperty(Subject, subject, false)
	return s
}

func str(description string) Schema {
	s := Schema{"type": "string"}
	if description != "" {
		s["description"] = description
	}
	return s
}

func strList(description string) Schema {
	s := Schema{"type": "array", "items": Schema{"type": "string"}}
	if description != "" {
		s["description"] = description
	}
	return s
}

// Properties returns the properties mapping, creating it if needed.
func (s Schema) Properties() map[string]any {
	p, ok := s["properties"].(map[string]any)
	if !ok {
		p = map[string]any{}
		s["properties"] = p
	}
	return p
}

// Property returns the named property schema.
func (s Schema) Property(name string) (Schema, bool) {
	switch p := s.Properties()[name].(type) {
	case Schema:
		return p, true
	case map[string]any:
		return Schema(p), true
	}
	return nil, false
}

// Required returns the names of required properties.
func (s Schema) Required() []string {
	switch r := s["required"].(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, v := range r {
			if name, ok := v.(string); ok {
				out = append(out, name)
			}
		}
		return out
	}
	return nil
}

// AddProperty adds or replaces a property.
func (s Schema) AddProperty(name string, prop Schema, required bool) {
	s.Properties()[name] = prop
	if required {
		s.Require(name)
	}
}

// Require marks names as required.
func (s Schema) Require(names ...string) {
	req := s.Required()
	for _, name := range names {
		found := false
		for _, r := range req {
			if r == name {
				found = true
				break
			}
		}
		if !found {
			req = append(req, name)
		}
	}
	s["required"] = req
}

// MergeSchemas overlays b onto a. Properties that are objects in both are
// merged recursively, required lists are joined. Neither input is
// modified.
func MergeSchemas(a, b Schema) Schema {
	out := cloneSchema(a)
	for k, v := range b {
		switch k {
		case "properties":
			continue
		case "required":
			out.Require(b.Required()...)
		default:
			out[k] = v
		}
	}
	props := out.Properties()
	for name := range b.Properties() {
		bp, _ := b.Property(name)
		if ap, ok := out.Property(name); ok && ap["type"] == "object" && bp["type"] == "object" {
			props[name] = MergeSchemas(ap, bp)
			continue
		}
		props[name] = cloneSchema(bp)
	}
	return out
}

func cloneSchema(s Schema) Schema {
	out := Schema{}
	for k, v := range s {
		switch x := v.(type) {
		case Schema:
			out[k] = cloneSchema(x)
		case map[string]any:
			out[k] = map[string]any(cloneSchema(Schema(x)))
		case []string:
			out[k] = append([]string{}, x...)
		default:
			out[k] = v
		}
	}
	return out
}

// Missing returns the dotted paths of required properties absent from m,
// descending into object properties that are present.
func (s Schema) Missing(m map[string]any) []string {
	var out []string
	s.missing("", m, &out)
	sort.Strings(out)
	return out
}

func (s Schema) missing(prefix string, m map[string]any, out *[]string) {
	for _, name := range s.Required() {
		if _, ok := m[name]; !ok {
			*out = append(*out, prefix+name)
		}
	}
	for name := range s.Properties() {
		prop, _ := s.Property(name)
		child, ok := asMap(m[name])
		if ok && prop["type"] == "object" {
			prop.missing(prefix+name+".", child, out)
		}
	}
}

// FromStruct derives an object schema from the exported fields of a struct
// value or pointer. Field names come from mapstructure tags and
// descriptions from desc tags. A field is required unless its mapstructure
// tag has omitempty.
func FromStruct(v any) Schema {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s := NewSchema("", "", "")
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if strings.Contains(opts, "squash") {
			embedded := FromStruct(reflect.New(f.Type).Interface())
			for pname, p := range embedded.Properties() {
				s.Properties()[pname] = p
			}
			s.Require(embedded.Required()...)
			continue
		}
		prop := typeSchema(f.Type)
		if d := f.Tag.Get("desc"); d != "" {
			prop["description"] = d
		}
		s.AddProperty(name, prop, !strings.Contains(opts, "omitempty"))
	}
	return s
}

func typeSchema(t reflect.Type) Schema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return Schema{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Schema{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return Schema{"type": "number"}
	case reflect.String:
		return Schema{"type": "string"}
	case reflect.Slice, reflect.Array:
		return Schema{"type": "array", "items": typeSchema(t.Elem())}
	case reflect.Struct:
		return FromStruct(reflect.New(t).Interface())
	}
	return Schema{"type": "object"}
}
