package zarr

import (
	"strconv"
	"strings"
)

// ChunkKey returns the storage key of the chunk at indices, for example
// "1.4". A 0-d array has the single chunk "0".
func ChunkKey(indices []int, separator string) string {
	if len(indices) == 0 {
		return "0"
	}
	if len(indices) == 1 {
		return strconv.Itoa(indices[0])
	}
	var sb strings.Builder
	for i, idx := range indices {
		if i > 0 {
			sb.WriteString(separator)
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}

// join builds a store key from a node path and a name. The root node has
// the empty path.
func join(path, name string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return name
	}
	return path + "/" + name
}
