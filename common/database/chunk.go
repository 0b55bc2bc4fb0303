package database

// DefaultChunkSize caps the number of parameters bound into one IN/ANY predicate.
const DefaultChunkSize = 5000

// Chunk splits items into consecutive slices of at most size elements.
// A non-positive size falls back to DefaultChunkSize. The returned slices
// share the backing array of items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
