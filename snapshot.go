package storypager

import "fmt"

// State is the pagination state of a Sequence.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateLoadedPartial
	StateLoadedComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateLoadedPartial:
		return "loaded(partial)"
	case StateLoadedComplete:
		return "loaded(complete)"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is the consumer view of a Sequence: every cached item in page
// order, deduplicated by ID, plus the pagination state.
type Snapshot struct {
	Items []Item
	State State
	// Err is the error of the last failed load while State is StateError.
	Err error
	// Generation increments on every Refresh. Items of snapshots with the
	// same generation only ever grow at the ends.
	Generation uint64
}

// Len returns the number of items.
func (s Snapshot) Len() int {
	return len(s.Items)
}

type cachedPage struct {
	key  int
	page Page
}

// flatten concatenates page items, keeping the first occurrence of every ID.
// counts[i] is the number of items page i contributed.
func flatten(pages []cachedPage) (items []Item, counts []int) {
	seen := make(map[string]struct{})
	counts = make([]int, 0, len(pages))

	for _, cp := range pages {
		contributed := 0
		for _, item := range cp.page.Items {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			items = append(items, item)
			contributed++
		}
		counts = append(counts, contributed)
	}

	return items, counts
}

// closestPage returns the index of the page holding anchor, walking pages the
// way list positions are laid out. Anchors past the end map to the last page.
func closestPage(counts []int, anchor int) int {
	idx := 0
	for idx < len(counts)-1 && anchor > counts[idx]-1 {
		anchor -= counts[idx]
		idx++
	}

	return idx
}
