package zarr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compressor identifiers.
const (
	Zstd = "zstd"
	Zlib = "zlib"
	Gzip = "gzip"
)

// DefaultZstdLevel is the zstd level used when none is configured.
const DefaultZstdLevel = 3

// codec compresses and decompresses whole chunks.
type codec interface {
	encode(src []byte) ([]byte, error)
	decode(src []byte) ([]byte, error)
}

func newCodec(c *Compressor) (codec, error) {
	if c == nil {
		return rawCodec{}, nil
	}
	switch c.ID {
	case Zstd:
		return zstdCodec{level: c.Level}, nil
	case Zlib:
		return zlibCodec{level: c.Level}, nil
	case Gzip:
		return gzipCodec{level: c.Level}, nil
	case "blosc":
		return nil, fmt.Errorf("blosc compression is not supported")
	}
	return nil, fmt.Errorf("unsupported compressor: %s", c.ID)
}

type rawCodec struct{}

func (rawCodec) encode(src []byte) ([]byte, error) { return src, nil }
func (rawCodec) decode(src []byte) ([]byte, error) { return src, nil }

type zstdCodec struct{ level int }

func (c zstdCodec) encode(src []byte) ([]byte, error) {
	level := c.level
	if level == 0 {
		level = DefaultZstdLevel
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(src, nil), nil
}

func (zstdCodec) decode(src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()
	return dec.DecodeAll(src, nil)
}

type zlibCodec struct{ level int }

func (c zlibCodec) encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCodec) decode(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type gzipCodec struct{ level int }

func (c gzipCodec) encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCodec) decode(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
