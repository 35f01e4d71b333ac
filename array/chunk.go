package array

// GridShape returns the number of chunks along each dimension,
// ceil(shape[i] / chunks[i]). A scalar has an empty grid.
func GridShape(shape, chunks []int) []int {
	grid := make([]int, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	return grid
}

// Strides returns the C-order element strides for shape.
func Strides(shape []int) []int {
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

// GridIndices lists every chunk index of a grid in C order. A scalar grid
// has a single empty index.
func GridIndices(grid []int) [][]int {
	total := Size(grid)
	out := make([][]int, 0, total)
	idx := make([]int, len(grid))
	for n := 0; n < total; n++ {
		out = append(out, append([]int{}, idx...))
		for d := len(grid) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < grid[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// ExtractChunk copies the chunk at grid index idx out of full, an encoded
// C-order buffer of the given shape. The result always has the full chunk
// size; elements past the array edge are zero.
func ExtractChunk(full []byte, shape, chunks, idx []int, elem int) []byte {
	out := make([]byte, Size(chunks)*elem)
	start, span := chunkSpan(shape, chunks, idx)
	copyND(out, Strides(chunks), make([]int, len(chunks)), full, Strides(shape), start, span, elem)
	return out
}

// InsertChunk copies a full-size chunk into full at grid index idx,
// dropping elements past the array edge.
func InsertChunk(full []byte, shape, chunks, idx []int, elem int, chunk []byte) {
	start, span := chunkSpan(shape, chunks, idx)
	copyND(full, Strides(shape), start, chunk, Strides(chunks), make([]int, len(chunks)), span, elem)
}

func chunkSpan(shape, chunks, idx []int) (start, span []int) {
	start = make([]int, len(shape))
	span = make([]int, len(shape))
	for i := range shape {
		start[i] = idx[i] * chunks[i]
		end := start[i] + chunks[i]
		if end > shape[i] {
			end = shape[i]
		}
		span[i] = end - start[i]
	}
	return start, span
}

// copyND copies an N-dimensional block of span elements between two C-order
// buffers with their own strides and offsets.
func copyND(dst []byte, dstStrides, dstOffset []int, src []byte, srcStrides, srcOffset []int, span []int, elem int) {
	if len(span) == 0 {
		copy(dst[:elem], src[:elem])
		return
	}
	for _, n := range span {
		if n <= 0 {
			return
		}
	}

	srcStart, dstStart := 0, 0
	for i := range span {
		srcStart += srcOffset[i] * srcStrides[i]
		dstStart += dstOffset[i] * dstStrides[i]
	}

	last := len(span) - 1
	var walk func(dim, s, d int)
	walk = func(dim, s, d int) {
		if dim == last {
			n := span[dim] * elem
			copy(dst[d*elem:d*elem+n], src[s*elem:s*elem+n])
			return
		}
		for i := 0; i < span[dim]; i++ {
			walk(dim+1, s+i*srcStrides[dim], d+i*dstStrides[dim])
		}
	}
	walk(0, srcStart, dstStart)
}
