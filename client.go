package storypager

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// Client covers the endpoint calls outside pagination and builds page
// fetchers sharing its base URL, HTTP client and token store.
type Client struct {
	baseURL *url.URL
	http    HTTPDoer
	tokens  *TokenStore
	logger  *slog.Logger
}

// NewClient creates a client for the endpoint rooted at baseURL.
func NewClient(baseURL string, tokens *TokenStore) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = NewTokenStore(nil)
	}

	return &Client{
		baseURL: base,
		http:    http.DefaultClient,
		tokens:  tokens,
		logger:  discardLogger(),
	}, nil
}

func (c *Client) WithHTTPClient(doer HTTPDoer) *Client {
	c.http = doer
	return c
}

func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// Tokens returns the credential store the client reads and writes.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// Fetcher returns a page fetcher bound to the client's token store.
func (c *Client) Fetcher() *PageFetcher {
	return &PageFetcher{
		baseURL:     c.baseURL,
		http:        c.http,
		credentials: c.tokens,
		logger:      c.logger,
	}
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	form := url.Values{}
	form.Set("name", name)
	form.Set("email", email)
	form.Set("password", password)

	var body APIResponse
	if err := c.postForm(ctx, call{op: "register"}, "register", form, &body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "account registered", "email", email)

	return nil
}

// Login authenticates and saves the returned token into the token store.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	op := call{op: "login"}
	var body LoginResponse
	if err := c.postForm(ctx, op, "login", form, &body); err != nil {
		return LoginResult{}, err
	}
	if strings.TrimSpace(body.LoginResult.Token) == "" {
		return LoginResult{}, op.fail(KindMalformed, http.StatusOK, body.Message, fmt.Errorf("login result carries no token"))
	}

	if err := c.tokens.Save(ctx, body.LoginResult.Token); err != nil {
		return LoginResult{}, err
	}
	c.logger.InfoContext(ctx, "logged in", "user_id", body.LoginResult.UserID)

	return body.LoginResult, nil
}

// Logout forgets the current token.
func (c *Client) Logout(ctx context.Context) error {
	return c.tokens.Clear(ctx)
}

// NewStory is the payload of AddStory. Lat and Lon are sent only when both
// are set.
type NewStory struct {
	Description string
	Photo       io.Reader
	PhotoName   string
	Lat         *float64
	Lon         *float64
}

// AddStory uploads a story as multipart form data.
func (c *Client) AddStory(ctx context.Context, story NewStory) error {
	op := call{op: "add story"}

	token := c.tokens.CurrentToken()
	if token == "" {
		return op.fail(KindUnauthenticated, 0, "", nil)
	}
	if story.Photo == nil {
		return fmt.Errorf("add story: photo is required")
	}

	payload, contentType, err := encodeStory(story)
	if err != nil {
		return fmt.Errorf("add story: %w", err)
	}

	req, err := newRequest(ctx, http.MethodPost, c.baseURL, storiesPath, nil, payload)
	if err != nil {
		return op.fail(KindTransport, 0, "", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(token))

	var body APIResponse
	if err = op.do(c.http, req, &body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "story uploaded", "located", story.Lat != nil && story.Lon != nil)

	return nil
}

// StoriesWithLocation returns the located stories in one unpaged call, as the
// map view needs them all at once.
func (c *Client) StoriesWithLocation(ctx context.Context) ([]Item, error) {
	op := call{op: "list located stories"}

	token := c.tokens.CurrentToken()
	if token == "" {
		return nil, op.fail(KindUnauthenticated, 0, "", nil)
	}

	query := url.Values{}
	query.Set("location", locationFlag(true))

	req, err := newRequest(ctx, http.MethodGet, c.baseURL, storiesPath, query, nil)
	if err != nil {
		return nil, op.fail(KindTransport, 0, "", err)
	}
	req.Header.Set("Authorization", bearer(token))

	var body StoryResponse
	if err = op.do(c.http, req, &body); err != nil {
		return nil, err
	}

	return body.ListStory, nil
}

func (c *Client) postForm(ctx context.Context, op call, path string, form url.Values, out enveloped) error {
	req, err := newRequest(ctx, http.MethodPost, c.baseURL, path, nil, strings.NewReader(form.Encode()))
	if err != nil {
		return op.fail(KindTransport, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return op.do(c.http, req, out)
}

func encodeStory(story NewStory) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("description", story.Description); err != nil {
		return nil, "", err
	}

	name := filepath.Base(story.PhotoName)
	if name == "." || name == string(filepath.Separator) {
		name = "photo.jpg"
	}
	part, err := w.CreateFormFile("photo", name)
	if err != nil {
		return nil, "", err
	}
	if _, err = io.Copy(part, story.Photo); err != nil {
		return nil, "", fmt.Errorf("cannot read photo: %w", err)
	}

	if story.Lat != nil && story.Lon != nil {
		if err = w.WriteField("lat", strconv.FormatFloat(*story.Lat, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
		if err = w.WriteField("lon", strconv.FormatFloat(*story.Lon, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
	}

	if err = w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}
