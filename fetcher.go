package storypager

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const storiesPath = "stories"

// Loader loads one page. PageFetcher is the network implementation; Sequence
// depends only on this interface.
type Loader interface {
	Load(ctx context.Context, req PageRequest) (Page, error)
}

// PageFetcher issues one authenticated "GET /stories" request per page. It is
// stateless and never retries.
type PageFetcher struct {
	baseURL      *url.URL
	http         HTTPDoer
	credentials  CredentialSource
	locationOnly bool
	logger       *slog.Logger
}

var _ Loader = (*PageFetcher)(nil)

// NewPageFetcher creates a fetcher for the endpoint rooted at baseURL. The
// token is read from credentials on every Load.
func NewPageFetcher(baseURL string, credentials CredentialSource) (*PageFetcher, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &PageFetcher{
		baseURL:     base,
		http:        http.DefaultClient,
		credentials: credentials,
		logger:      discardLogger(),
	}, nil
}

// WithHTTPClient replaces the HTTP client. Timeouts belong there.
func (f *PageFetcher) WithHTTPClient(doer HTTPDoer) *PageFetcher {
	f.http = doer
	return f
}

// WithLocationOnly restricts pages to stories carrying both coordinates.
func (f *PageFetcher) WithLocationOnly() *PageFetcher {
	f.locationOnly = true
	return f
}

func (f *PageFetcher) WithLogger(logger *slog.Logger) *PageFetcher {
	f.logger = logger
	return f
}

// Load - implements Loader. Reads the current token and calls Fetch.
func (f *PageFetcher) Load(ctx context.Context, req PageRequest) (Page, error) {
	token := ""
	if f.credentials != nil {
		token = f.credentials.CurrentToken()
	}

	return f.Fetch(ctx, req, token)
}

// Fetch requests one page with the given token. An empty token fails with
// ErrUnauthenticated before anything is sent.
func (f *PageFetcher) Fetch(ctx context.Context, req PageRequest, token string) (Page, error) {
	req = req.Normalized()
	key := req.ResolvedKey()
	c := call{op: "fetch page", key: key}

	token = strings.TrimSpace(token)
	if token == "" {
		return Page{}, c.fail(KindUnauthenticated, 0, "", nil)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(key))
	query.Set("size", strconv.Itoa(req.LoadSize))
	query.Set("location", locationFlag(f.locationOnly))

	httpReq, err := newRequest(ctx, http.MethodGet, f.baseURL, storiesPath, query, nil)
	if err != nil {
		return Page{}, c.fail(KindTransport, 0, "", err)
	}
	httpReq.Header.Set("Authorization", bearer(token))

	f.logger.DebugContext(ctx, "fetching page", "key", key, "size", req.LoadSize, "location_only", f.locationOnly)

	var body StoryResponse
	if err = c.do(f.http, httpReq, &body); err != nil {
		f.logger.WarnContext(ctx, "page fetch failed", "key", key, "error", err)
		return Page{}, err
	}

	page := pageFor(key, body.ListStory)
	f.logger.DebugContext(ctx, "page fetched", "key", key, "items", len(page.Items), "last", page.NextKey == nil)

	return page, nil
}

func locationFlag(locationOnly bool) string {
	if locationOnly {
		return "1"
	}

	return "0"
}
