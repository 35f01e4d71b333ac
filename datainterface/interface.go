// Package datainterface converts acquisition data into NWB files.
//
// Each modality implements Interface. RunConversion drives one interface
// (or a Converter combining several) through file creation or loading,
// population, dataset configuration and persistence.
package datainterface

import (
	"context"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// Options are the conversion options passed to AddToNWB.
type Options map[string]any

// Interface is implemented by every modality.
type Interface interface {
	// SourceSchema describes the source data the interface was built from.
	SourceSchema() metadata.Schema
	// MetadataSchema describes valid metadata for the interface.
	MetadataSchema() metadata.Schema
	// Metadata returns default metadata. Callers may override any field.
	Metadata() metadata.Metadata
	// ConversionOptions returns the default options of AddToNWB.
	ConversionOptions() Options
	// ConversionOptionsSchema describes the options of AddToNWB.
	ConversionOptionsSchema() metadata.Schema
	// AddToNWB writes the interface's data into f.
	AddToNWB(ctx context.Context, f *nwb.File, md metadata.Metadata, opts Options) error
	// Datasets lists the dataset locations the interface writes.
	Datasets() []nwb.Location
}

// Option configures a Base.
type Option func(*Base)

// WithLogger sets the interface logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.logger = l
		}
	}
}

// Base carries what all interfaces share: the decoded source data, the
// logger and the base metadata. Modalities embed it.
type Base struct {
	source  any
	options any
	logger  *zap.Logger
}

// NewBase returns a Base for the decoded source struct and the zero value
// of the interface's options struct, both pointers.
func NewBase(source, options any, opts ...Option) Base {
	b := Base{source: source, options: options, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Logger returns the interface logger.
func (b *Base) Logger() *zap.Logger { return b.logger }

// SourceSchema derives the schema from the source struct declaration.
func (b *Base) SourceSchema() metadata.Schema {
	s := metadata.FromStruct(b.source)
	s["$schema"] = metadata.SchemaDraft
	s["title"] = "Source data schema"
	return s
}

// MetadataSchema returns the base metadata schema.
func (b *Base) MetadataSchema() metadata.Schema {
	return metadata.BaseSchema()
}

// Metadata returns a session description and a fresh identifier.
func (b *Base) Metadata() metadata.Metadata {
	return metadata.Metadata{
		metadata.NWBFile: map[string]any{
			"session_description": "Auto-generated by nwbconv",
			"identifier":          uuid.NewString(),
		},
	}
}

// ConversionOptions returns the defaults held in the options struct.
func (b *Base) ConversionOptions() Options {
	out := Options{}
	if b.options == nil {
		return out
	}
	if err := mapstructure.Decode(b.options, &out); err != nil {
		b.logger.Error("encode default options", zap.Error(err))
	}
	return out
}

// ConversionOptionsSchema derives the schema from the options struct.
// Every option has a default, so none is required.
func (b *Base) ConversionOptionsSchema() metadata.Schema {
	if b.options == nil {
		return metadata.NewSchema("", "", "")
	}
	s := metadata.FromStruct(b.options)
	s["required"] = []string{}
	return s
}

// DecodeSource decodes raw source data into out, a pointer to the
// modality's source struct. Unknown keys are rejected and string values
// are converted where the field type requires it.
func DecodeSource(raw map[string]any, out any) error {
	if err := strictDecode(raw, out); err != nil {
		return errors.Wrap(ErrConfiguration, "source data: "+err.Error())
	}
	return nil
}

// DecodeOptions decodes conversion options over out, which should hold
// the defaults.
func DecodeOptions(opts Options, out any) error {
	if err := strictDecode(opts, out); err != nil {
		return errors.Wrap(ErrConfiguration, "conversion options: "+err.Error())
	}
	return nil
}

func strictDecode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
