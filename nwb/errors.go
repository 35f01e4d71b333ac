// Package nwb is the in-memory model of an NWB file: a tree of typed
// groups and datasets with attributes, built by the data interfaces and
// persisted by a storage backend.
//
// Every neurodata object carries the neurodata_type, namespace and
// object_id attributes. Objects can be looked up by slash separated path
// or by object id.
package nwb

import "errors"

var (
	// ErrMissingMetadata is returned when a file cannot be created because
	// a required metadata field is absent.
	ErrMissingMetadata = errors.New("missing required metadata")

	ErrNotFound    = errors.New("nwb: object not found")
	ErrExists      = errors.New("nwb: object already exists")
	ErrNotGroup    = errors.New("nwb: object is not a group")
	ErrNotDataset  = errors.New("nwb: object is not a dataset")
	ErrInvalidName = errors.New("nwb: invalid object name")
	ErrConflict    = errors.New("nwb: conflicting content")
)

// MissingStartTimeMessage is the text of the error returned when a file is
// created without NWBFile.session_start_time.
const MissingStartTimeMessage = "'session_start_time' was not found in metadata['NWBFile']! " +
	"Please add the correct start time of the session in ISO8601 format (%Y-%m-%dT%H:%M:%S) " +
	"to this key of the metadata."
