// Package zarr reads and writes Zarr v2 hierarchies on top of a
// gocloud.dev blob bucket, so the same code serves local directories,
// in-memory stores and cloud buckets.
package zarr

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-nwbconv/array"
)

var (
	// ErrNotFound is returned when a path holds no group or array.
	ErrNotFound = errors.New("zarr: node not found")
	// ErrNotArray is returned when reading array data from a group.
	ErrNotArray = errors.New("zarr: not an array")
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithConcurrency bounds the number of chunks encoded or decoded at once.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// Store is a Zarr v2 hierarchy in a blob bucket. Node paths are slash
// separated and relative to the bucket root; "" is the root group.
type Store struct {
	bucket *blob.Bucket
	logger *zap.Logger
	limit  int
}

// Node is an entry returned by List.
type Node struct {
	Name    string
	Path    string
	IsArray bool
}

// ArrayConfig controls how WriteArray lays out an array. Nil Chunks stores
// the whole array as one chunk; a nil Compressor stores raw bytes.
type ArrayConfig struct {
	Chunks     []int
	Compressor *Compressor
}

// Open opens the bucket at url, for example "file:///data/out.zarr" or
// "mem://".
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", url, err)
	}
	return New(bucket, opts...), nil
}

// OpenDir opens a local directory as a store, creating it if needed.
func OpenDir(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory %s: %w", dir, err)
	}
	return New(bucket, opts...), nil
}

// New wraps an open bucket. The store takes ownership of it.
func New(bucket *blob.Bucket, opts ...Option) *Store {
	s := &Store{bucket: bucket, logger: zap.NewNop(), limit: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// WriteGroup writes a group node with the given attributes.
func (s *Store) WriteGroup(ctx context.Context, path string, attrs map[string]any) error {
	if err := s.writeJSON(ctx, join(path, groupKey), groupMeta{ZarrFormat: 2}); err != nil {
		return err
	}
	return s.writeAttrs(ctx, path, attrs)
}

// WriteArray writes a as an array node. Chunks are compressed in parallel
// and written as they complete.
func (s *Store) WriteArray(ctx context.Context, path string, a *array.Array, cfg ArrayConfig, attrs map[string]any) error {
	width := a.StringWidth()
	code, err := DTypeCode(a.DType(), width)
	if err != nil {
		return err
	}
	shape := a.Shape()
	chunks := cfg.Chunks
	if chunks == nil {
		chunks = make([]int, len(shape))
		for i, d := range shape {
			chunks[i] = max(d, 1)
		}
	}
	meta := &ArrayMeta{
		ZarrFormat: 2,
		Shape:      shape,
		Chunks:     chunks,
		DType:      code,
		Compressor: cfg.Compressor,
		FillValue:  fillValue(a.DType()),
		Order:      "C",
	}
	if err := meta.validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c, err := newCodec(meta.Compressor)
	if err != nil {
		return err
	}

	elem := a.DType().Size()
	if a.DType() == array.String {
		elem = width
	}
	full := a.Encode(binary.LittleEndian, width)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, idx := range array.GridIndices(array.GridShape(shape, chunks)) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw := array.ExtractChunk(full, shape, chunks, idx, elem)
			data, err := c.encode(raw)
			if err != nil {
				return fmt.Errorf("failed to compress chunk %v: %w", idx, err)
			}
			key := join(path, ChunkKey(idx, meta.separator()))
			return s.bucket.WriteAll(gctx, key, data, nil)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := s.writeJSON(ctx, join(path, arrayKey), meta); err != nil {
		return err
	}
	s.logger.Debug("wrote array",
		zap.String("path", path),
		zap.Ints("shape", shape),
		zap.Ints("chunks", chunks),
		zap.String("dtype", code))
	return s.writeAttrs(ctx, path, attrs)
}

// ArrayMeta returns the .zarray document of the array at path.
func (s *Store) ArrayMeta(ctx context.Context, path string) (*ArrayMeta, error) {
	var meta ArrayMeta
	if err := s.readJSON(ctx, join(path, arrayKey), &meta); err != nil {
		if errors.Is(err, ErrNotFound) {
			if ok, _ := s.bucket.Exists(ctx, join(path, groupKey)); ok {
				return nil, fmt.Errorf("%w: %s", ErrNotArray, path)
			}
		}
		return nil, err
	}
	if err := meta.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &meta, nil
}

// ReadArray reads the whole array at path. Chunks missing from the store
// read as the fill value.
func (s *Store) ReadArray(ctx context.Context, path string) (*array.Array, error) {
	meta, err := s.ArrayMeta(ctx, path)
	if err != nil {
		return nil, err
	}
	dt, elem, err := ParseDType(meta.DType)
	if err != nil {
		return nil, err
	}
	c, err := newCodec(meta.Compressor)
	if err != nil {
		return nil, err
	}

	chunkBytes := array.Size(meta.Chunks) * elem
	fill, err := meta.fillArray(dt, array.Size(meta.Chunks))
	if err != nil {
		return nil, err
	}
	fillBytes := fill.Encode(binary.LittleEndian, elem)

	full := make([]byte, array.Size(meta.Shape)*elem)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, idx := range array.GridIndices(array.GridShape(meta.Shape, meta.Chunks)) {
		g.Go(func() error {
			key := join(path, ChunkKey(idx, meta.separator()))
			data, err := s.bucket.ReadAll(gctx, key)
			switch {
			case gcerrors.Code(err) == gcerrors.NotFound:
				data = fillBytes
			case err != nil:
				return fmt.Errorf("failed to read chunk %s: %w", key, err)
			default:
				if data, err = c.decode(data); err != nil {
					return fmt.Errorf("failed to decompress chunk %s: %w", key, err)
				}
			}
			if len(data) < chunkBytes {
				return fmt.Errorf("chunk %s has %d bytes, want %d", key, len(data), chunkBytes)
			}
			array.InsertChunk(full, meta.Shape, meta.Chunks, idx, elem, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return array.Decode(dt, meta.Shape, full, binary.LittleEndian, elem)
}

// ReadAttrs returns the attributes of the node at path. A node without a
// .zattrs document has no attributes.
func (s *Store) ReadAttrs(ctx context.Context, path string) (map[string]any, error) {
	attrs := map[string]any{}
	err := s.readJSON(ctx, join(path, attrsKey), &attrs)
	if errors.Is(err, ErrNotFound) {
		return attrs, nil
	}
	if err != nil {
		return nil, err
	}
	for k, v := range attrs {
		attrs[k] = decodeAttr(v)
	}
	return attrs, nil
}

// Exists reports whether path holds a group or an array.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	for _, key := range []string{groupKey, arrayKey} {
		ok, err := s.bucket.Exists(ctx, join(path, key))
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// List returns the child nodes of the group at path in key order.
// Directories that hold neither a group nor an array are skipped.
func (s *Store) List(ctx context.Context, path string) ([]Node, error) {
	prefix := strings.Trim(path, "/")
	if prefix != "" {
		prefix += "/"
	}
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var nodes []Node
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !obj.IsDir {
			continue
		}
		child := strings.TrimSuffix(obj.Key, "/")
		isArray, err := s.bucket.Exists(ctx, join(child, arrayKey))
		if err != nil {
			return nil, err
		}
		if !isArray {
			ok, err := s.bucket.Exists(ctx, join(child, groupKey))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		nodes = append(nodes, Node{
			Name:    strings.TrimPrefix(child, prefix),
			Path:    child,
			IsArray: isArray,
		})
	}
	return nodes, nil
}

// Remove deletes the node at path and everything below it. Removing the
// root empties the store.
func (s *Store) Remove(ctx context.Context, path string) error {
	prefix := strings.Trim(path, "/")
	if prefix != "" {
		prefix += "/"
	}
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	var keys []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		keys = append(keys, obj.Key)
	}
	for _, key := range keys {
		if err := s.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) writeAttrs(ctx context.Context, path string, attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}
	return s.writeJSON(ctx, join(path, attrsKey), encodeAttr(attrs))
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) error {
	data, err := encoder.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) readJSON(ctx context.Context, key string, v any) error {
	data, err := s.bucket.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := decoder.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

func fillValue(dt array.DType) any {
	switch {
	case dt == array.String:
		return nil
	case dt.IsFloat():
		return jsonFloat(0)
	}
	return 0
}
