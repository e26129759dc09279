package storypager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samber/lo"
)

const testToken = "dummy_token"

func dummyItems(from, n int) []Item {
	items := make([]Item, 0, n)
	for i := from; i < from+n; i++ {
		items = append(items, Item{
			ID:          fmt.Sprintf("story-%d", i),
			Name:        fmt.Sprintf("Name %d", i),
			Description: fmt.Sprintf("Description %d", i),
			PhotoURL:    fmt.Sprintf("https://story-api.example/images/stories/photos-%d", i),
			CreatedAt:   time.Date(2022, 1, 8, 6, 34, 18, 598_000_000, time.UTC),
			Lat:         lo.ToPtr(-6.8919),
			Lon:         lo.ToPtr(107.6089),
		})
	}

	return items
}

func names(items []Item) []string {
	return lo.Map(items, func(item Item, _ int) string { return item.Name })
}

// storyEndpoint serves "GET /stories" from a fixed item list, paging by
// page/size the way the real endpoint does.
type storyEndpoint struct {
	*httptest.Server
	items    []Item
	requests atomic.Int32

	mu   sync.Mutex
	last *http.Request
}

func newStoryEndpoint(t *testing.T, items []Item) *storyEndpoint {
	t.Helper()

	e := &storyEndpoint{items: items}
	e.Server = httptest.NewServer(http.HandlerFunc(e.serve))
	t.Cleanup(e.Close)

	return e
}

func (e *storyEndpoint) serve(w http.ResponseWriter, r *http.Request) {
	e.requests.Add(1)
	e.mu.Lock()
	e.last = r.Clone(context.Background())
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(APIResponse{Error: true, Message: "Missing authentication"})
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	items := e.items
	if r.URL.Query().Get("location") == "1" {
		items = lo.Filter(items, func(item Item, _ int) bool { return item.HasLocation() })
	}

	if page > 0 && size > 0 {
		start := min((page-1)*size, len(items))
		items = items[start:min(start+size, len(items))]
	}
	_ = json.NewEncoder(w).Encode(StoryResponse{
		APIResponse: APIResponse{Message: "Stories fetched successfully"},
		ListStory:   items,
	})
}

func (e *storyEndpoint) lastRequest() *http.Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.last
}

// fakeLoader serves pages from memory and records every key it was asked for.
type fakeLoader struct {
	mu       sync.Mutex
	pages    map[int][]Item
	failures map[int]error
	calls    []int
}

func newFakeLoader(pageSize int, items []Item) *fakeLoader {
	f := &fakeLoader{
		pages:    make(map[int][]Item),
		failures: make(map[int]error),
	}
	for key := 1; (key-1)*pageSize < len(items); key++ {
		f.pages[key] = items[(key-1)*pageSize : min(key*pageSize, len(items))]
	}

	return f
}

func (f *fakeLoader) Load(_ context.Context, req PageRequest) (Page, error) {
	key := req.ResolvedKey()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, key)
	if err, ok := f.failures[key]; ok {
		return Page{}, err
	}

	return pageFor(key, f.pages[key]), nil
}

func (f *fakeLoader) failOn(key int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[key] = err
}

func (f *fakeLoader) heal(key int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.failures, key)
}

func (f *fakeLoader) callKeys() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]int(nil), f.calls...)
}

// gatedLoader blocks every load until released or until its context ends.
type gatedLoader struct {
	inner   Loader
	started chan int
	release chan struct{}
}

func newGatedLoader(inner Loader) *gatedLoader {
	return &gatedLoader{
		inner:   inner,
		started: make(chan int, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedLoader) Load(ctx context.Context, req PageRequest) (Page, error) {
	g.started <- req.ResolvedKey()

	select {
	case <-g.release:
	case <-ctx.Done():
		return Page{}, ctx.Err()
	}

	return g.inner.Load(ctx, req)
}
