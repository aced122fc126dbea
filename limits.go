package goresource

const (
	// DefaultPerPage is the page size SkipAndLimit uses when none is given.
	DefaultPerPage = 25
	// DefaultPageSize is both the default and the upper bound for page sizes
	// requested by clients through the search tag.
	DefaultPageSize = 100
)

// IsNormalizedPerPage clamps perPage into (0, maxPerPage]. Non-positive values
// become min(DefaultPageSize, maxPerPage). The boolean reports whether the
// input was already within bounds.
func IsNormalizedPerPage(perPage int, maxPerPage int) (int, bool) {
	if maxPerPage <= 0 {
		maxPerPage = DefaultPageSize
	}

	if perPage <= 0 {
		return min(DefaultPageSize, maxPerPage), false
	} else if perPage > maxPerPage {
		return maxPerPage, false
	}

	return perPage, true
}

func NormalizePerPage(perPage int, maxPerPage int) int {
	ret, _ := IsNormalizedPerPage(perPage, maxPerPage)
	return ret
}
