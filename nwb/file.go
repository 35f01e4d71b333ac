package nwb

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/metadata"
)

// Version is the NWB schema version written to new files.
const Version = "2.7.0"

// Standard top-level groups.
const (
	Acquisition = "acquisition"
	Analysis    = "analysis"
	Processing  = "processing"
	Stimulus    = "stimulus"
	General     = "general"
	Units       = "units"
)

// File is an NWB file held in memory.
type File struct {
	root   *Group
	logger *zap.Logger
}

// Option configures a File.
type Option func(*File)

// WithLogger sets the logger used for warnings.
func WithLogger(l *zap.Logger) Option {
	return func(f *File) {
		if l != nil {
			f.logger = l
		}
	}
}

// Info holds the file-level fields of a new file.
type Info struct {
	Identifier            string
	SessionDescription    string
	SessionStartTime      time.Time
	ExperimentDescription string
	SessionID             string
	Institution           string
	Lab                   string
	Experimenter          []string
	Keywords              []string
	RelatedPublications   []string
}

// Empty returns a file with a bare root group. Backends build the tree
// they read into it.
func Empty(opts ...Option) *File {
	f := &File{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	f.root = newGroup(f, nil, "/")
	return f
}

// NewFile returns a file with the standard NWB layout.
func NewFile(info Info, opts ...Option) (*File, error) {
	if info.SessionStartTime.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetadata, MissingStartTimeMessage)
	}
	if info.Identifier == "" {
		info.Identifier = uuid.NewString()
	}
	if info.SessionDescription == "" {
		info.SessionDescription = "no description"
	}

	f := Empty(opts...)
	root := f.root
	root.setType("NWBFile", CoreNamespace)
	root.attrs["nwb_version"] = Version

	start := info.SessionStartTime.Format(time.RFC3339Nano)
	values := []struct {
		name string
		v    any
	}{
		{"file_create_date", []string{time.Now().Format(time.RFC3339Nano)}},
		{"identifier", info.Identifier},
		{"session_description", info.SessionDescription},
		{"session_start_time", start},
		{"timestamps_reference_time", start},
	}
	for _, v := range values {
		if _, err := root.CreateValue(v.name, v.v); err != nil {
			return nil, err
		}
	}
	for _, name := range []string{Acquisition, Analysis, Processing, "stimulus/presentation", "stimulus/templates"} {
		if _, err := root.Require(name); err != nil {
			return nil, err
		}
	}

	general, err := root.Require(General)
	if err != nil {
		return nil, err
	}
	optional := []struct {
		name string
		v    any
	}{
		{"experiment_description", info.ExperimentDescription},
		{"session_id", info.SessionID},
		{"institution", info.Institution},
		{"lab", info.Lab},
		{"experimenter", info.Experimenter},
		{"keywords", info.Keywords},
		{"related_publications", info.RelatedPublications},
	}
	for _, o := range optional {
		switch v := o.v.(type) {
		case string:
			if v == "" {
				continue
			}
		case []string:
			if len(v) == 0 {
				continue
			}
		}
		if _, err := general.CreateValue(o.name, o.v); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewFileFromMetadata creates a file from the NWBFile and Subject sections
// of md. It fails with ErrMissingMetadata when
// NWBFile.session_start_time is absent.
func NewFileFromMetadata(md metadata.Metadata, opts ...Option) (*File, error) {
	section := md.Section(metadata.NWBFile)
	raw, ok := section["session_start_time"]
	if !ok || raw == nil || raw == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetadata, MissingStartTimeMessage)
	}
	start, err := ParseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("NWBFile.session_start_time: %w", err)
	}

	info := Info{
		SessionStartTime:      start,
		Identifier:            stringField(section, "identifier"),
		SessionDescription:    stringField(section, "session_description"),
		ExperimentDescription: stringField(section, "experiment_description"),
		SessionID:             stringField(section, "session_id"),
		Institution:           stringField(section, "institution"),
		Lab:                   stringField(section, "lab"),
		Experimenter:          stringList(section["experimenter"]),
		Keywords:              stringList(section["keywords"]),
		RelatedPublications:   stringList(section["related_publications"]),
	}
	f, err := NewFile(info, opts...)
	if err != nil {
		return nil, err
	}
	if subject := md.Section(metadata.Subject); len(subject) > 0 {
		if err := f.AddSubject(subject); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// AddSubject writes general/subject from a Subject metadata section.
func (f *File) AddSubject(fields map[string]any) error {
	general, err := f.root.Require(General)
	if err != nil {
		return err
	}
	subject, err := general.CreateTypedGroup("subject", "Subject")
	if err != nil {
		return err
	}
	for _, key := range Attributes(fields).Keys() {
		v := fields[key]
		if key == "date_of_birth" {
			t, err := ParseTime(v)
			if err != nil {
				return fmt.Errorf("Subject.date_of_birth: %w", err)
			}
			v = t.Format(time.RFC3339)
		}
		if _, err := subject.CreateValue(key, v); err != nil {
			return fmt.Errorf("Subject.%s: %w", key, err)
		}
	}
	return nil
}

// timeLayouts are the accepted spellings of ISO 8601 timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts a time.Time or an ISO 8601 string. Times without a
// zone are taken as UTC.
func ParseTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as an ISO 8601 time", x)
	}
	return time.Time{}, fmt.Errorf("expected an ISO 8601 time, got %T", v)
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func stringList(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []string:
		return x
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			out[i] = fmt.Sprint(e)
		}
		return out
	}
	return nil
}

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Logger returns the file's logger.
func (f *File) Logger() *zap.Logger { return f.logger }

// SetLogger replaces the file's logger.
func (f *File) SetLogger(l *zap.Logger) {
	if l != nil {
		f.logger = l
	}
}

// Identifier returns the identifier dataset, or "" if there is none.
func (f *File) Identifier() string {
	return f.scalarString("identifier")
}

// SessionStartTime returns the parsed session_start_time dataset.
func (f *File) SessionStartTime() (time.Time, error) {
	s := f.scalarString("session_start_time")
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: session_start_time", ErrNotFound)
	}
	return ParseTime(s)
}

func (f *File) scalarString(name string) string {
	d, err := f.root.Dataset(name)
	if err != nil {
		return ""
	}
	s, _ := d.Array().Value().(string)
	return s
}

// Group returns the group at path.
func (f *File) Group(path string) (*Group, error) { return f.root.Group(path) }

// Dataset returns the dataset at path.
func (f *File) Dataset(path string) (*Dataset, error) { return f.root.Dataset(path) }

// GetObject finds an object by path or by object id.
func (f *File) GetObject(id string) (Object, error) {
	if obj, err := f.root.lookup(id); err == nil {
		return obj, nil
	}
	var found Object
	err := f.Walk(func(_ string, obj Object) error {
		if obj.ObjectID() == id {
			found = obj
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return found, nil
}

var errStop = errors.New("stop")

// Acquisition returns the acquisition group, creating it if needed.
func (f *File) Acquisition() (*Group, error) { return f.root.Require(Acquisition) }

// Devices returns general/devices, creating it if needed.
func (f *File) Devices() (*Group, error) { return f.root.Require(General + "/devices") }

// GetModule returns the processing module called name, creating it with
// description if it does not exist. A differing description on an
// existing module is kept and logged as a warning.
func (f *File) GetModule(name, description string) (*Group, error) {
	processing, err := f.root.Require(Processing)
	if err != nil {
		return nil, err
	}
	if obj, ok := processing.Get(name); ok {
		mod, ok := obj.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, obj.Path())
		}
		if existing := mod.Attrs().String("description"); existing != description {
			f.logger.Warn("processing module exists with a different description",
				zap.String("module", name),
				zap.String("description", existing),
				zap.String("requested", description))
		}
		return mod, nil
	}
	mod, err := processing.CreateTypedGroup(name, "ProcessingModule")
	if err != nil {
		return nil, err
	}
	mod.Attrs()["description"] = description
	return mod, nil
}
