// Package metadata holds the nested metadata document that describes a
// session, and the JSON schemas that describe valid metadata and source
// data.
//
// Metadata is a plain map keyed by section ("NWBFile", "Subject",
// "Ecephys", ...). It is read from and written to YAML without changing
// its shape.
package metadata

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Section names used across the converters.
const (
	NWBFile        = "NWBFile"
	Subject        = "Subject"
	Ecephys        = "Ecephys"
	Ophys          = "Ophys"
	Behavior       = "Behavior"
	UnitProperties = "UnitProperties"
)

// Metadata is a nested metadata document.
type Metadata map[string]any

// Load reads a YAML metadata file.
func Load(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read metadata")
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return m, nil
}

// Parse decodes a YAML document. An empty document is an empty Metadata.
func Parse(data []byte) (Metadata, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return Metadata{}, nil
	}
	m, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata must be a mapping, got %T", raw)
	}
	return Metadata(m), nil
}

// Marshal encodes m as YAML with two-space indentation.
func (m Metadata) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(m)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes m to path as YAML. The file is replaced atomically.
func (m Metadata) Save(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "save metadata")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "save metadata")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "save metadata")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "save metadata")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "save metadata")
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	return Metadata(cloneValue(map[string]any(m)).(map[string]any))
}

// Merge returns base overlaid with override. Nested maps merge key by key;
// lists and scalars in override replace those in base. Neither input is
// modified.
func Merge(base, override Metadata) Metadata {
	out := base.Clone()
	for k, v := range override {
		out[k] = mergeValue(out[k], v)
	}
	return out
}

func mergeValue(base, override any) any {
	bm, ok1 := asMap(base)
	om, ok2 := asMap(override)
	if !ok1 || !ok2 {
		return cloneValue(override)
	}
	for k, v := range om {
		bm[k] = mergeValue(bm[k], v)
	}
	return bm
}

// Section returns the named top-level mapping, or nil.
func (m Metadata) Section(name string) map[string]any {
	s, _ := asMap(m[name])
	return s
}

// Get returns the value at a dotted path such as
// "NWBFile.session_start_time".
func (m Metadata) Get(path string) (any, bool) {
	var cur any = map[string]any(m)
	for _, key := range strings.Split(path, ".") {
		node, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = node[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at path if it is a string.
func (m Metadata) String(path string) (string, bool) {
	v, ok := m.Get(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetPath stores value at a dotted path, creating intermediate sections.
// It fails when a component on the way is not a mapping.
func (m Metadata) SetPath(path string, value any) error {
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("invalid metadata path %q", path)
		}
	}
	node := map[string]any(m)
	for i, key := range keys[:len(keys)-1] {
		next, ok := node[key]
		if !ok {
			child := map[string]any{}
			node[key] = child
			node = child
			continue
		}
		child, ok := asMap(next)
		if !ok {
			return fmt.Errorf("metadata path %q: %s is a %T, not a section",
				path, strings.Join(keys[:i+1], "."), next)
		}
		node = child
	}
	node[keys[len(keys)-1]] = value
	return nil
}

// Delete removes the value at path. It reports whether anything was
// removed.
func (m Metadata) Delete(path string) bool {
	keys := strings.Split(path, ".")
	node := map[string]any(m)
	for _, key := range keys[:len(keys)-1] {
		child, ok := asMap(node[key])
		if !ok {
			return false
		}
		node = child
	}
	last := keys[len(keys)-1]
	if _, ok := node[last]; !ok {
		return false
	}
	delete(node, last)
	return true
}

// Paths lists the dotted paths of all leaf values in sorted order.
func (m Metadata) Paths() []string {
	var out []string
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if child, ok := asMap(v); ok && len(child) > 0 {
				walk(p, child)
				continue
			}
			out = append(out, p)
		}
	}
	walk("", m)
	sort.Strings(out)
	return out
}

// Decode decodes the named section into out, a pointer to a struct with
// mapstructure tags. Strings are converted to numbers and booleans where
// the target requires it.
func (m Metadata) Decode(section string, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return errors.Wrapf(dec.Decode(m[section]), "metadata section %s", section)
}

// ParseValue interprets a command line value with YAML rules, so "3" is an
// int, "true" a bool and "[a, b]" a list. Anything else is a string.
func ParseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	return normalize(v)
}

// FormatValue renders a leaf value for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		if len(x) == 0 {
			return "{}"
		}
	}
	return fmt.Sprint(v)
}

func asMap(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case Metadata:
		return x, true
	}
	return nil, false
}

// normalize converts the map types produced by YAML decoding to
// map[string]any throughout.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	}
	return v
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case Metadata:
		return cloneValue(map[string]any(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
