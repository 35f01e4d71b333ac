package binary

import (
	"io"
)

// Writer writes values sequentially to an io.WriterAt.
type Writer struct {
	w   io.WriterAt
	cfg Config
	pos int64
}

// NewWriter creates a writer positioned at offset 0.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{w: w, cfg: cfg}
}

// At returns a writer over the same destination positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{w: w.w, cfg: w.cfg, pos: offset}
}

// Config returns the writer configuration.
func (w *Writer) Config() Config { return w.cfg }

// Pos returns the current position.
func (w *Writer) Pos() int64 { return w.pos }

// OffsetSize returns the width of file addresses.
func (w *Writer) OffsetSize() int { return w.cfg.OffsetSize }

// LengthSize returns the width of length fields.
func (w *Writer) LengthSize() int { return w.cfg.LengthSize }

// WriteBytes writes data at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint8 writes one byte.
func (w *Writer) WriteUint8(v uint8) error { return w.WriteBytes([]byte{v}) }

// WriteUint16 writes a 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }

// WriteUint32 writes a 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }

// WriteUint64 writes a 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error { return w.WriteUintN(v, 8) }

// WriteUintN writes v as an unsigned integer n bytes wide.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	switch n {
	case 1:
		buf[0] = uint8(v)
	case 2:
		w.cfg.ByteOrder.PutUint16(buf, uint16(v))
	case 4:
		w.cfg.ByteOrder.PutUint32(buf, uint32(v))
	case 8:
		w.cfg.ByteOrder.PutUint64(buf, v)
	default:
		for i := 0; i < n; i++ {
			buf[i] = byte(v >> (8 * i))
		}
	}
	return w.WriteBytes(buf)
}

// WriteOffset writes a file address.
func (w *Writer) WriteOffset(v uint64) error { return w.WriteUintN(v, w.cfg.OffsetSize) }

// WriteLength writes a length field.
func (w *Writer) WriteLength(v uint64) error { return w.WriteUintN(v, w.cfg.LengthSize) }

// WriteUndefined writes the undefined address.
func (w *Writer) WriteUndefined() error { return w.WriteOffset(w.cfg.UndefinedAddress()) }

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// Buffer is a growable in-memory io.WriterAt used to assemble checksummed
// structures before they are written to the file.
type Buffer struct {
	buf []byte
}

// WriteAt implements io.WriterAt.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

// ReadAt implements io.ReaderAt over the buffered data.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	return bytesReaderAt(b.buf).ReadAt(p, off)
}

// Bytes returns the buffered data.
func (b *Buffer) Bytes() []byte { return b.buf }

// Encode runs fn against a fresh writer over an in-memory buffer and
// returns the bytes it wrote.
func Encode(cfg Config, fn func(w *Writer) error) ([]byte, error) {
	var buf Buffer
	w := NewWriter(&buf, cfg)
	if err := fn(w); err != nil {
		return nil, err
	}
	return buf.Bytes()[:w.Pos()], nil
}

// ReaderOf returns a reader over data.
func ReaderOf(data []byte, cfg Config) *Reader {
	return NewReader(bytesReaderAt(data), cfg)
}

type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}
