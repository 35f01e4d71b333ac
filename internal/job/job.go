// Package job loads conversion jobs from YAML files.
//
// A job names the output file, the backend, the metadata file and one or
// more interfaces with their source data and options:
//
//	output: session.nwb
//	backend: zarr
//	metadata: metadata.yml
//	interfaces:
//	  Recording:
//	    type: BinaryRecording
//	    source: {file_path: raw.bin, num_channels: 32, sampling_frequency: 30000}
//	    options: {stub_test: true}
//	dataset_configs:
//	  - {container: acquisition/ElectricalSeries, field: data, compression: gzip, level: 6}
package job

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-nwbconv/backend"
	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/datainterface/registry"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// Interface is one interface of a job.
type Interface struct {
	Type    string         `yaml:"type"`
	Source  map[string]any `yaml:"source"`
	Options map[string]any `yaml:"options,omitempty"`
}

// DatasetConfig overrides the storage of one dataset.
type DatasetConfig struct {
	nwb.Location      `yaml:",inline"`
	nwb.DatasetConfig `yaml:",inline"`
}

// Job is a conversion job.
type Job struct {
	Output            string               `yaml:"output"`
	Backend           string               `yaml:"backend,omitempty"`
	Overwrite         bool                 `yaml:"overwrite,omitempty"`
	Stub              bool                 `yaml:"stub,omitempty"`
	Metadata          string               `yaml:"metadata,omitempty"`
	MetadataOverrides map[string]any       `yaml:"metadata_overrides,omitempty"`
	Interfaces        map[string]Interface `yaml:"interfaces"`
	DatasetConfigs    []DatasetConfig      `yaml:"dataset_configs,omitempty"`
}

// Load reads the job at path. Relative paths in the job, including source
// keys ending in _path, are taken relative to the job file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read job")
	}
	j, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	j.Resolve(filepath.Dir(path))
	return j, nil
}

// Parse decodes and validates a job. Unknown keys are rejected.
func Parse(data []byte) (*Job, error) {
	var j Job
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&j); err != nil {
		return nil, datainterface.ConfigError("job: %v", err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate checks that the job names an output and known interface types.
func (j *Job) Validate() error {
	if j.Output == "" {
		return datainterface.ConfigError("job: output is required")
	}
	if _, err := backend.Lookup(backend.Name(j.Backend)); err != nil {
		return datainterface.ConfigError("job: %v", err)
	}
	if len(j.Interfaces) == 0 {
		return datainterface.ConfigError("job: no interfaces")
	}
	for _, name := range j.names() {
		if _, ok := registry.Interfaces[j.Interfaces[name].Type]; !ok {
			return datainterface.ConfigError("job: interface %s: unknown type %q (expected one of %v)",
				name, j.Interfaces[name].Type, registry.Types())
		}
	}
	return nil
}

// Resolve makes relative paths absolute against dir.
func (j *Job) Resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.Contains(p, "://") {
			return p
		}
		return filepath.Join(dir, p)
	}
	j.Output = abs(j.Output)
	j.Metadata = abs(j.Metadata)
	for name, iface := range j.Interfaces {
		for k, v := range iface.Source {
			if s, ok := v.(string); ok && strings.HasSuffix(k, "_path") {
				iface.Source[k] = abs(s)
			}
		}
		j.Interfaces[name] = iface
	}
}

func (j *Job) names() []string {
	out := make([]string, 0, len(j.Interfaces))
	for name := range j.Interfaces {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build constructs the job's interface. Several interfaces are combined
// in a Converter keyed by their job names.
func (j *Job) Build(opts ...datainterface.Option) (datainterface.Interface, error) {
	children := make(map[string]datainterface.Interface, len(j.Interfaces))
	for _, name := range j.names() {
		def := j.Interfaces[name]
		iface, err := registry.New(def.Type, def.Source, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "interface %s", name)
		}
		if len(j.Interfaces) == 1 {
			return iface, nil
		}
		children[name] = iface
	}
	return datainterface.NewConverter(children)
}

// conversionOptions returns the options to pass to the built interface.
func (j *Job) conversionOptions() datainterface.Options {
	withStub := func(o map[string]any) datainterface.Options {
		out := datainterface.Options{}
		for k, v := range o {
			out[k] = v
		}
		if j.Stub {
			out["stub_test"] = true
		}
		return out
	}
	if len(j.Interfaces) == 1 {
		for _, iface := range j.Interfaces {
			return withStub(iface.Options)
		}
	}
	out := datainterface.Options{}
	for name, iface := range j.Interfaces {
		out[name] = map[string]any(withStub(iface.Options))
	}
	return out
}

// RunOptions assembles the arguments of RunConversion. The metadata file,
// if any, is loaded and the job's overrides merged over it.
func (j *Job) RunOptions(logger *zap.Logger) (datainterface.RunOptions, error) {
	md := metadata.Metadata{}
	if j.Metadata != "" {
		loaded, err := metadata.Load(j.Metadata)
		if err != nil {
			return datainterface.RunOptions{}, err
		}
		md = loaded
	}
	md = metadata.Merge(md, metadata.Metadata(j.MetadataOverrides))

	var configs datainterface.DatasetConfigs
	if len(j.DatasetConfigs) > 0 {
		configs = datainterface.DatasetConfigs{}
		for _, c := range j.DatasetConfigs {
			configs[c.Location] = c.DatasetConfig
		}
	}
	return datainterface.RunOptions{
		Path:              j.Output,
		Metadata:          md,
		Overwrite:         j.Overwrite,
		Backend:           backend.Name(j.Backend),
		DatasetConfigs:    configs,
		ConversionOptions: j.conversionOptions(),
		Logger:            logger,
	}, nil
}

// Run builds the interface and runs the conversion.
func (j *Job) Run(ctx context.Context, logger *zap.Logger) (*nwb.File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	iface, err := j.Build(datainterface.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	opts, err := j.RunOptions(logger)
	if err != nil {
		return nil, err
	}
	return datainterface.RunConversion(ctx, iface, opts)
}
