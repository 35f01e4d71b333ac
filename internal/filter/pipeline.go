package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

// Options selects the filters applied to a chunked dataset.
type Options struct {
	Shuffle    bool
	Deflate    bool
	Level      int
	Fletcher32 bool
}

// Empty reports whether no filter is selected.
func (o Options) Empty() bool {
	return !o.Shuffle && !o.Deflate && !o.Fletcher32
}

// Message returns the pipeline message for o, or nil when o is empty.
// Shuffle runs before deflate and the checksum is always last.
func (o Options) Message(elemSize int) *message.FilterPipeline {
	if o.Empty() {
		return nil
	}
	fp := &message.FilterPipeline{}
	if o.Shuffle {
		fp.Filters = append(fp.Filters, message.FilterInfo{
			ID:     message.FilterShuffle,
			Flags:  message.FilterOptional,
			Params: []uint32{uint32(elemSize)},
		})
	}
	if o.Deflate {
		fp.Filters = append(fp.Filters, message.FilterInfo{
			ID:     message.FilterDeflate,
			Flags:  message.FilterOptional,
			Params: []uint32{uint32(o.Level)},
		})
	}
	if o.Fletcher32 {
		fp.Filters = append(fp.Filters, message.FilterInfo{ID: message.FilterFletcher32})
	}
	return fp
}

// FromMessage recovers Options from a pipeline message.
func FromMessage(fp *message.FilterPipeline) Options {
	var o Options
	if fp == nil {
		return o
	}
	for _, f := range fp.Filters {
		switch f.ID {
		case message.FilterShuffle:
			o.Shuffle = true
		case message.FilterDeflate:
			o.Deflate = true
			o.Level = DefaultLevel
			if len(f.Params) > 0 {
				o.Level = int(f.Params[0])
			}
		case message.FilterFletcher32:
			o.Fletcher32 = true
		}
	}
	return o
}

// Pipeline applies a sequence of filters to chunk data.
type Pipeline struct {
	filters  []Filter
	optional []bool
}

// NewPipeline builds a pipeline from a pipeline message. A nil message
// gives an empty pipeline.
func NewPipeline(fp *message.FilterPipeline, elemSize int) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for _, info := range fp.Filters {
		f, err := New(info, elemSize)
		if err != nil {
			return nil, err
		}
		p.filters = append(p.filters, f)
		p.optional = append(p.optional, info.Flags&message.FilterOptional != 0)
	}
	return p, nil
}

// Len returns the number of filters.
func (p *Pipeline) Len() int { return len(p.filters) }

// Encode runs the filters in order. An optional filter that fails is
// skipped and its bit is set in the returned mask.
func (p *Pipeline) Encode(input []byte) ([]byte, uint32, error) {
	data := input
	var mask uint32
	for i, f := range p.filters {
		out, err := f.Encode(data)
		if err != nil {
			if p.optional[i] {
				mask |= 1 << uint(i)
				continue
			}
			return nil, 0, fmt.Errorf("%s encode: %w", Name(f.ID()), err)
		}
		data = out
	}
	return data, mask, nil
}

// Decode runs the filters in reverse order, skipping those whose bit is
// set in mask.
func (p *Pipeline) Decode(input []byte, mask uint32) ([]byte, error) {
	data := input
	for i := len(p.filters) - 1; i >= 0; i-- {
		if mask&(1<<uint(i)) != 0 {
			continue
		}
		out, err := p.filters[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s decode: %w", Name(p.filters[i].ID()), err)
		}
		data = out
	}
	return data, nil
}
