package pager

const (
	// DefaultPageSize is used when a caller asks for a non-positive page size.
	DefaultPageSize = 10
	// MaxPageSize caps page sizes accepted from clients.
	MaxPageSize = 100
)

// IsNormalizedPageSizeMax returns the page size clamped to (0, maxSize] and
// whether the input was already within bounds.
func IsNormalizedPageSizeMax(size int, maxSize int) (int, bool) {
	if size <= 0 {
		return DefaultPageSize, false
	} else if size > maxSize {
		return maxSize, false
	}

	return size, true
}

func NormalizePageSizeMax(size int, maxSize int) int {
	ret, _ := IsNormalizedPageSizeMax(size, maxSize)
	return ret
}

func NormalizePageSize(size int) int {
	return NormalizePageSizeMax(size, MaxPageSize)
}
