// Package filter implements the chunk filters the file format supports:
// deflate, shuffle and Fletcher-32.
//
// Filters run in pipeline order when a chunk is written and in reverse
// order when it is read back.
package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

// ErrUnsupported is returned for filters this package cannot apply.
var ErrUnsupported = errors.New("filter: unsupported filter")

// Filter transforms chunk bytes in both directions.
type Filter interface {
	ID() uint16
	Encode(input []byte) ([]byte, error)
	Decode(input []byte) ([]byte, error)
}

var names = map[uint16]string{
	message.FilterDeflate:    "deflate",
	message.FilterShuffle:    "shuffle",
	message.FilterFletcher32: "fletcher32",
	message.FilterSZIP:       "szip",
}

// Name returns the registered name of a filter id.
func Name(id uint16) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("filter(%d)", id)
}

// New builds the filter described by info. elemSize is the dataset element
// size, used by shuffle when the pipeline does not record it.
func New(info message.FilterInfo, elemSize int) (Filter, error) {
	switch info.ID {
	case message.FilterDeflate:
		level := DefaultLevel
		if len(info.Params) > 0 {
			level = int(info.Params[0])
		}
		return NewDeflate(level)
	case message.FilterShuffle:
		if len(info.Params) > 0 && info.Params[0] > 0 {
			elemSize = int(info.Params[0])
		}
		return NewShuffle(elemSize), nil
	case message.FilterFletcher32:
		return Fletcher32{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, Name(info.ID))
}
