package operator

// Window is a contiguous run of flat range elements
type Window struct {
	Offset int
	Count  int
}

// End is one past the last element
func (w Window) End() int {
	return w.Offset + w.Count
}

// SplitChunks divides total into n near-equal sizes; the first total%n
// chunks are one element larger
func SplitChunks(total, n int) ([]int, error) {
	if n < 1 {
		return nil, NewConfigError("SplitChunks", "chunk count must be positive, got %d", n)
	}
	if total < 0 {
		return nil, NewConfigError("SplitChunks", "negative total %d", total)
	}
	base, remainder := total/n, total%n
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = base
		if i < remainder {
			sizes[i]++
		}
	}
	return sizes, nil
}

// ChunkOffsets returns the starting offset of each chunk
func ChunkOffsets(sizes []int) []int {
	offsets := make([]int, len(sizes))
	off := 0
	for i, s := range sizes {
		offsets[i] = off
		off += s
	}
	return offsets
}

// Windows pairs sizes with their offsets, dropping empty chunks
func Windows(sizes []int) []Window {
	offsets := ChunkOffsets(sizes)
	ws := make([]Window, 0, len(sizes))
	for i, s := range sizes {
		if s > 0 {
			ws = append(ws, Window{Offset: offsets[i], Count: s})
		}
	}
	return ws
}
