package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

// DefaultLevel is the deflate level used when none is configured.
const DefaultLevel = 4

// Deflate is the zlib compression filter.
type Deflate struct {
	level int
}

// NewDeflate returns a deflate filter at the given level, 0 through 9.
func NewDeflate(level int) (*Deflate, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("filter: deflate level %d out of range 0-9", level)
	}
	return &Deflate{level: level}, nil
}

func (f *Deflate) ID() uint16 { return message.FilterDeflate }

// Level returns the compression level.
func (f *Deflate) Level() int { return f.level }

func (f *Deflate) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := zw.Write(input); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Deflate) Decode(input []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()

	output, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	return output, nil
}
