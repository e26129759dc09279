package storypager

import (
	"github.com/Alp4ka/storypager/pager"
	"github.com/samber/lo"
)

// InitialPageKey is the key requested when a PageRequest carries no key.
const InitialPageKey = pager.FirstPage

// Page is the result of one successful fetch.
type Page struct {
	Items []Item
	// PrevKey is the key of the preceding page, nil on the first page.
	PrevKey *int
	// NextKey is the key of the following page, nil at the end of data.
	NextKey *int
}

// PageRequest asks for one page. A nil Key means the initial page.
//
// LoadSize is an upper bound, not a promise: requests are sent with it
// normalized to (0, pager.MaxPageSize], so a non-positive size asks for
// pager.DefaultPageSize items and a size above pager.MaxPageSize asks for
// pager.MaxPageSize.
type PageRequest struct {
	Key      *int
	LoadSize int
}

// InitialRequest returns a request for the first page.
func InitialRequest(loadSize int) PageRequest {
	return PageRequest{LoadSize: loadSize}
}

// RequestFor returns a request for the page with the given key.
func RequestFor(key int, loadSize int) PageRequest {
	return PageRequest{Key: lo.ToPtr(key), LoadSize: loadSize}
}

// ResolvedKey returns the key the request will be issued with.
func (r PageRequest) ResolvedKey() int {
	if r.Key == nil {
		return InitialPageKey
	}

	return *r.Key
}

// Normalized returns the request as it goes on the wire: the key resolved and
// LoadSize clamped as described on PageRequest.
func (r PageRequest) Normalized() PageRequest {
	return PageRequest{
		Key:      lo.ToPtr(r.ResolvedKey()),
		LoadSize: pager.NormalizePageSize(r.LoadSize),
	}
}

// pageFor builds the page for key from fetched items. An empty page ends
// forward pagination: a page that is empty now is assumed to stay empty.
func pageFor(key int, items []Item) Page {
	return Page{
		Items:   items,
		PrevKey: lo.Ternary[*int](key == InitialPageKey, nil, lo.ToPtr(key-1)),
		NextKey: lo.Ternary[*int](len(items) == 0, nil, lo.ToPtr(key+1)),
	}
}
