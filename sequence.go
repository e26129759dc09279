package storypager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrEndOfSequence is returned by LoadNext/LoadPrevious when the edge page
	// has no adjacent key. No request is made.
	ErrEndOfSequence = errors.New("no more pages in this direction")
	// ErrKeyNotAdjacent is returned when a requested key would leave a gap
	// between cached pages.
	ErrKeyNotAdjacent = errors.New("page key is not adjacent to cached pages")
	// ErrNothingToRetry is returned by Retry when the last load succeeded.
	ErrNothingToRetry = errors.New("no failed load to retry")
	// ErrSequenceClosed is returned by every call after Close.
	ErrSequenceClosed = errors.New("sequence closed")
	// ErrDiscarded is returned to callers whose load finished after a Refresh
	// or Close made its result obsolete. The cache was not modified.
	ErrDiscarded = errors.New("load result discarded")
)

// Sequence caches pages fetched through a Loader in request order and
// publishes a Snapshot after every state change.
//
// Pages are only appended after the last page or prepended before the first
// one, so snapshots of one generation extend monotonically. At most one load
// per key is in flight; concurrent callers for the same key share it.
type Sequence struct {
	loader   Loader
	loadSize int
	logger   *slog.Logger

	// ctx bounds every fetch; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	flights   singleflight.Group
	snapshots *Value[Snapshot]

	mu         sync.Mutex
	pages      []cachedPage
	counts     []int
	state      State
	failed     *PageRequest
	lastErr    error
	generation uint64
	closed     bool
}

// NewSequence creates an empty sequence requesting loadSize items per page.
func NewSequence(loader Loader, loadSize int) *Sequence {
	ctx, cancel := context.WithCancel(context.Background())

	return &Sequence{
		loader:    loader,
		loadSize:  loadSize,
		logger:    discardLogger(),
		ctx:       ctx,
		cancel:    cancel,
		snapshots: NewValue(Snapshot{State: StateEmpty}),
	}
}

func (s *Sequence) WithLogger(logger *slog.Logger) *Sequence {
	s.logger = logger
	return s
}

// Snapshot returns the current snapshot.
func (s *Sequence) Snapshot() Snapshot {
	return s.snapshots.Load()
}

// Subscribe returns a channel of snapshots, starting with the current one.
// Slow readers skip intermediate snapshots.
func (s *Sequence) Subscribe() (<-chan Snapshot, func()) {
	return s.snapshots.Subscribe()
}

// State returns the current pagination state.
func (s *Sequence) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// RefreshKey returns the key to reload from so that the reloaded page holds
// the item at anchor: the closest page's PrevKey+1, else its NextKey-1, else
// nil for the initial page.
func (s *Sequence) RefreshKey(anchor int) *int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refreshKeyLocked(anchor)
}

func (s *Sequence) refreshKeyLocked(anchor int) *int {
	if anchor < 0 || len(s.pages) == 0 {
		return nil
	}

	closest := s.pages[closestPage(s.counts, anchor)].page
	switch {
	case closest.PrevKey != nil:
		return lo.ToPtr(*closest.PrevKey + 1)
	case closest.NextKey != nil:
		return lo.ToPtr(*closest.NextKey - 1)
	default:
		return nil
	}
}

// Load fetches the page for req and records it. A cached key is answered
// from the cache. Loader errors are returned unchanged and leave the cache
// untouched.
func (s *Sequence) Load(ctx context.Context, req PageRequest) (Page, error) {
	key := req.ResolvedKey()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Page{}, ErrSequenceClosed
	}
	if cp, ok := s.cachedLocked(key); ok {
		s.mu.Unlock()
		return cp.page, nil
	}
	if !s.adjacentLocked(key) {
		s.mu.Unlock()
		return Page{}, fmt.Errorf("cannot load page %d: %w", key, ErrKeyNotAdjacent)
	}
	gen := s.generation
	s.state = StateLoading
	s.publishLocked()
	s.mu.Unlock()

	flight := s.flights.DoChan(fmt.Sprintf("%d/%d", gen, key), func() (any, error) {
		return s.fetch(gen, req)
	})

	select {
	case <-ctx.Done():
		return Page{}, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return Page{}, res.Err
		}

		return res.Val.(Page), nil
	}
}

// LoadNext loads the page after the last cached one, or the initial page when
// nothing is cached.
func (s *Sequence) LoadNext(ctx context.Context) (Page, error) {
	s.mu.Lock()
	req, err := s.edgeRequestLocked(func(first, last cachedPage) *int { return last.page.NextKey })
	s.mu.Unlock()
	if err != nil {
		return Page{}, err
	}

	return s.Load(ctx, req)
}

// LoadPrevious loads the page before the first cached one, or the initial
// page when nothing is cached.
func (s *Sequence) LoadPrevious(ctx context.Context) (Page, error) {
	s.mu.Lock()
	req, err := s.edgeRequestLocked(func(first, last cachedPage) *int { return first.page.PrevKey })
	s.mu.Unlock()
	if err != nil {
		return Page{}, err
	}

	return s.Load(ctx, req)
}

// Retry re-issues the last failed request.
func (s *Sequence) Retry(ctx context.Context) (Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Page{}, ErrSequenceClosed
	}
	if s.failed == nil {
		s.mu.Unlock()
		return Page{}, ErrNothingToRetry
	}
	req := *s.failed
	s.mu.Unlock()

	return s.Load(ctx, req)
}

// Refresh drops every cached page and reloads from RefreshKey(anchor). Loads
// still in flight from before the refresh are discarded when they finish.
func (s *Sequence) Refresh(ctx context.Context, anchor int) (Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Page{}, ErrSequenceClosed
	}
	key := s.refreshKeyLocked(anchor)
	s.generation++
	s.pages = nil
	s.counts = nil
	s.failed = nil
	s.lastErr = nil
	s.state = StateEmpty
	s.publishLocked()
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "sequence refreshed", "anchor", anchor, "key", lo.FromPtrOr(key, InitialPageKey))

	return s.Load(ctx, PageRequest{Key: key, LoadSize: s.loadSize})
}

// Close cancels in-flight loads and releases subscribers. Results arriving
// afterwards are discarded.
func (s *Sequence) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.snapshots.Close()
}

// fetch runs one load under the sequence context and records its outcome if
// the sequence is still on generation gen.
func (s *Sequence) fetch(gen uint64, req PageRequest) (Page, error) {
	key := req.ResolvedKey()
	page, err := s.loader.Load(s.ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		s.logger.Debug("discarding stale page load", "key", key, "generation", gen)
		return Page{}, ErrDiscarded
	}

	if err != nil {
		s.failed = &req
		s.lastErr = err
		s.state = StateError
		s.publishLocked()
		s.logger.Warn("page load failed", "key", key, "error", err)

		return Page{}, err
	}

	if err = s.recordLocked(key, page); err != nil {
		return Page{}, err
	}
	s.failed = nil
	s.lastErr = nil
	s.state = s.loadedStateLocked()
	s.publishLocked()

	return page, nil
}

func (s *Sequence) recordLocked(key int, page Page) error {
	cp := cachedPage{key: key, page: page}

	switch {
	case len(s.pages) == 0:
		s.pages = []cachedPage{cp}
	case keyEquals(s.pages[len(s.pages)-1].page.NextKey, key):
		s.pages = append(s.pages, cp)
	case keyEquals(s.pages[0].page.PrevKey, key):
		s.pages = slices.Insert(s.pages, 0, cp)
	default:
		return fmt.Errorf("cannot record page %d: %w", key, ErrKeyNotAdjacent)
	}

	_, s.counts = flatten(s.pages)

	return nil
}

func (s *Sequence) cachedLocked(key int) (cachedPage, bool) {
	return lo.Find(s.pages, func(cp cachedPage) bool {
		return cp.key == key
	})
}

func (s *Sequence) adjacentLocked(key int) bool {
	if len(s.pages) == 0 {
		return true
	}

	return keyEquals(s.pages[len(s.pages)-1].page.NextKey, key) ||
		keyEquals(s.pages[0].page.PrevKey, key)
}

func (s *Sequence) edgeRequestLocked(edgeKey func(first, last cachedPage) *int) (PageRequest, error) {
	if s.closed {
		return PageRequest{}, ErrSequenceClosed
	}
	if len(s.pages) == 0 {
		return InitialRequest(s.loadSize), nil
	}

	key := edgeKey(s.pages[0], s.pages[len(s.pages)-1])
	if key == nil {
		return PageRequest{}, ErrEndOfSequence
	}

	return RequestFor(*key, s.loadSize), nil
}

func (s *Sequence) loadedStateLocked() State {
	first, last := s.pages[0].page, s.pages[len(s.pages)-1].page
	if first.PrevKey == nil && last.NextKey == nil {
		return StateLoadedComplete
	}

	return StateLoadedPartial
}

// publishLocked builds a fresh snapshot; published item slices are never
// shared with later snapshots.
func (s *Sequence) publishLocked() {
	items, _ := flatten(s.pages)

	snap := Snapshot{
		Items:      items,
		State:      s.state,
		Generation: s.generation,
	}
	if s.state == StateError {
		snap.Err = s.lastErr
	}

	s.snapshots.Store(snap)
}

func keyEquals(candidate *int, key int) bool {
	return candidate != nil && *candidate == key
}
