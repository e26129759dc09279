package storypager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// HTTPDoer is the subset of *http.Client used to reach the endpoint.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIResponse is the envelope shared by every endpoint response.
type APIResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func (r APIResponse) envelope() APIResponse {
	return r
}

// StoryResponse is the body of "GET /stories".
type StoryResponse struct {
	APIResponse
	ListStory []Item `json:"listStory"`
}

// LoginResult is the session part of a successful login.
type LoginResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// LoginResponse is the body of "POST /login".
type LoginResponse struct {
	APIResponse
	LoginResult LoginResult `json:"loginResult"`
}

type enveloped interface {
	envelope() APIResponse
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseBaseURL(raw string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid base url '%s': %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url '%s': scheme must be http or https", raw)
	}

	return base, nil
}

func bearer(token string) string {
	return "Bearer " + token
}

// call carries the identity of one endpoint call for error classification.
type call struct {
	op  string
	key int
}

func (c call) fail(kind ErrorKind, status int, message string, err error) *FetchError {
	return &FetchError{
		Kind:       kind,
		Op:         c.op,
		Key:        c.key,
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

// do sends req and decodes the envelope into out, classifying every failure.
func (c call) do(doer HTTPDoer, req *http.Request, out enveloped) error {
	resp, err := doer.Do(req)
	if err != nil {
		return c.fail(KindTransport, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.fail(KindTransport, resp.StatusCode, "", fmt.Errorf("cannot read response body: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var env APIResponse
		_ = json.Unmarshal(body, &env)

		return c.fail(KindServerRejected, resp.StatusCode, env.Message, nil)
	}

	if err = json.Unmarshal(body, out); err != nil {
		return c.fail(KindMalformed, resp.StatusCode, "", err)
	}
	if env := out.envelope(); env.Error {
		return c.fail(KindServerRejected, resp.StatusCode, env.Message, nil)
	}

	return nil
}

func newRequest(ctx context.Context, method string, base *url.URL, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := base.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("cannot build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}
