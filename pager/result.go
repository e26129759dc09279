package pager

// Result is a paginated result container.
type Result[T any] struct {
	// Items result elements.
	Items []T
	// Page is the 1-based page number the items belong to.
	Page int
	// PageSize effective page size used for the query.
	PageSize int
	// Next is the cursor of the following page, nil on the last page.
	Next *PageCursor
}
