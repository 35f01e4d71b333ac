package datainterface

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// Converter combines named interfaces into one. Children run in name
// order, and their metadata merges in the same order, so a later child
// overrides an earlier one on conflicting fields.
type Converter struct {
	names    []string
	children map[string]Interface
}

var _ Interface = (*Converter)(nil)

// NewConverter returns a converter over children.
func NewConverter(children map[string]Interface) (*Converter, error) {
	if len(children) == 0 {
		return nil, ConfigError("converter needs at least one interface")
	}
	c := &Converter{children: make(map[string]Interface, len(children))}
	for name, iface := range children {
		if iface == nil {
			return nil, ConfigError("interface %q is nil", name)
		}
		c.names = append(c.names, name)
		c.children[name] = iface
	}
	sort.Strings(c.names)
	return c, nil
}

// Names returns the child names in run order.
func (c *Converter) Names() []string { return append([]string{}, c.names...) }

// Interface returns the named child.
func (c *Converter) Interface(name string) (Interface, bool) {
	iface, ok := c.children[name]
	return iface, ok
}

func (c *Converter) SourceSchema() metadata.Schema {
	s := metadata.NewSchema("source.schema.json", "Source data schema", "Schema for the source data, files and directories")
	for _, name := range c.names {
		s.AddProperty(name, c.children[name].SourceSchema(), true)
	}
	return s
}

func (c *Converter) MetadataSchema() metadata.Schema {
	s := metadata.BaseSchema()
	for _, name := range c.names {
		s = metadata.MergeSchemas(s, c.children[name].MetadataSchema())
	}
	return s
}

func (c *Converter) Metadata() metadata.Metadata {
	md := metadata.Metadata{}
	for _, name := range c.names {
		md = metadata.Merge(md, c.children[name].Metadata())
	}
	return md
}

// ConversionOptions nests each child's options under its name.
func (c *Converter) ConversionOptions() Options {
	out := Options{}
	for _, name := range c.names {
		out[name] = map[string]any(c.children[name].ConversionOptions())
	}
	return out
}

func (c *Converter) ConversionOptionsSchema() metadata.Schema {
	s := metadata.NewSchema("conversion_options.schema.json", "Conversion options schema", "")
	for _, name := range c.names {
		s.AddProperty(name, c.children[name].ConversionOptionsSchema(), false)
	}
	return s
}

// AddToNWB runs every child with its own options, taken from opts[name].
func (c *Converter) AddToNWB(ctx context.Context, f *nwb.File, md metadata.Metadata, opts Options) error {
	for name := range opts {
		if _, ok := c.children[name]; !ok {
			return ConfigError("conversion options for unknown interface %q", name)
		}
	}
	for _, name := range c.names {
		if err := ctx.Err(); err != nil {
			return err
		}
		var childOpts Options
		switch v := opts[name].(type) {
		case nil:
		case Options:
			childOpts = v
		case map[string]any:
			childOpts = v
		case metadata.Metadata:
			childOpts = Options(v)
		default:
			return ConfigError("conversion options for %q: expected a mapping, got %T", name, v)
		}
		if err := c.children[name].AddToNWB(ctx, f, md, childOpts); err != nil {
			return errors.Wrapf(err, "interface %s", name)
		}
	}
	return nil
}

// Datasets lists the locations of every child, without duplicates.
func (c *Converter) Datasets() []nwb.Location {
	seen := map[nwb.Location]bool{}
	var out []nwb.Location
	for _, name := range c.names {
		for _, loc := range c.children[name].Datasets() {
			if !seen[loc] {
				seen[loc] = true
				out = append(out, loc)
			}
		}
	}
	return out
}
