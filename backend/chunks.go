package backend

import (
	"math"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

const (
	chunkBase = 16 * 1024
	chunkMin  = 8 * 1024
	chunkMax  = 1024 * 1024
)

// GuessChunks picks a chunk shape for an array of the given shape and
// element size. The target chunk size grows with the dataset, from 8 KiB
// up to 1 MiB, and dimensions are halved in turn until it is met. It
// returns nil for scalars and empty arrays, which are never chunked.
func GuessChunks(shape []int, elemSize int) []int {
	if len(shape) == 0 || array.Size(shape) == 0 {
		return nil
	}
	if elemSize < 1 {
		elemSize = 1
	}
	chunks := make([]float64, len(shape))
	for i, d := range shape {
		chunks[i] = float64(d)
	}

	total := float64(array.Size(shape) * elemSize)
	target := chunkBase * math.Pow(2, math.Log10(total/(1024*1024)))
	target = math.Min(math.Max(target, chunkMin), chunkMax)

	product := func() float64 {
		p := 1.0
		for _, c := range chunks {
			p *= c
		}
		return p
	}
	for idx := 0; ; idx++ {
		bytes := product() * float64(elemSize)
		if (bytes < target || math.Abs(bytes-target)/target < 0.5) && bytes < chunkMax {
			break
		}
		if product() == 1 {
			break
		}
		i := idx % len(chunks)
		chunks[i] = math.Ceil(chunks[i] / 2)
	}

	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = int(c)
	}
	return out
}

// Resolve fills in the chunk shape of cfg for a. Scalars and empty arrays
// are stored contiguous and uncompressed. Explicit chunk dimensions are
// clamped to the array shape.
func Resolve(cfg nwb.DatasetConfig, a *array.Array) nwb.DatasetConfig {
	cfg = cfg.Clone()
	if a.Rank() == 0 || a.Len() == 0 {
		return nwb.DatasetConfig{}
	}
	elem := a.DType().Size()
	if a.DType() == array.String {
		elem = a.StringWidth()
	}
	if len(cfg.Chunks) != a.Rank() {
		cfg.Chunks = GuessChunks(a.Shape(), elem)
	}
	for i, d := range a.Shape() {
		cfg.Chunks[i] = min(max(cfg.Chunks[i], 1), d)
	}
	return cfg
}
