package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Alp4ka/storypager"
	"github.com/Alp4ka/storypager/pager"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, repo Repo) (http.Handler, Config) {
	t.Helper()

	cfg := testConfig(t)
	router, err := NewRouter(repo, cfg, nil)
	require.NoError(t, err)

	return router, cfg
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) storypager.APIResponse {
	t.Helper()

	var env storypager.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	return env
}

func seedStories(repo *memRepo, userID string, n int) {
	for i := range n {
		story := Story{
			ID:          fmt.Sprintf("story-%d", i),
			UserID:      userID,
			Name:        "Dimas",
			Description: fmt.Sprintf("story %d", i),
			PhotoFile:   fmt.Sprintf("%d.jpg", i),
			CreatedAt:   time.Date(2024, 3, 1, 12, i, 0, 0, time.UTC),
		}
		if i%2 == 0 {
			story.Lat, story.Lon = lo.ToPtr(-6.8919), lo.ToPtr(107.6089)
		}
		_ = repo.CreateStory(context.Background(), &story)
	}
}

func Test_handlers_PostRegister(t *testing.T) {
	repo := &memRepo{}
	repo.addUser(t, "user-0", "Taken", "taken@example.com", "secret-password")
	router, _ := newTestRouter(t, repo)

	tests := []struct {
		name            string
		form            url.Values
		expectedStatus  int
		expectedMessage string
	}{
		{
			"created",
			url.Values{"name": {"Dimas"}, "email": {"dimas@example.com"}, "password": {"secret-password"}},
			http.StatusCreated,
			"User created",
		},
		{
			"missing name",
			url.Values{"email": {"a@example.com"}, "password": {"secret-password"}},
			http.StatusBadRequest,
			"name is required",
		},
		{
			"bad email",
			url.Values{"name": {"A"}, "email": {"not-an-email"}, "password": {"secret-password"}},
			http.StatusBadRequest,
			"email must be a valid email",
		},
		{
			"short password",
			url.Values{"name": {"A"}, "email": {"a@example.com"}, "password": {"short"}},
			http.StatusBadRequest,
			"password must be at least 8 characters long",
		},
		{
			"duplicate email",
			url.Values{"name": {"A"}, "email": {"taken@example.com"}, "password": {"secret-password"}},
			http.StatusBadRequest,
			"Email is already taken",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			require.Equal(t, tt.expectedStatus, rec.Code)
			env := decodeEnvelope(t, rec)
			require.Equal(t, tt.expectedStatus >= http.StatusBadRequest, env.Error)
			require.Equal(t, tt.expectedMessage, env.Message)
		})
	}
}

func Test_handlers_ListStories(t *testing.T) {
	repo := &memRepo{}
	user := repo.addUser(t, "user-1", "Dimas", "dimas@example.com", "secret-password")
	seedStories(repo, user.ID, 25)
	router, _ := newTestRouter(t, repo)
	auth := bearerFor(t, user.ID)

	tests := []struct {
		name            string
		query           string
		auth            string
		expectedStatus  int
		expectedIDs     []string
		expectedNext    string
		expectedMessage string
	}{
		{
			name:            "no token",
			query:           "page=1&size=5",
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Missing authentication",
		},
		{
			name:            "forged token",
			query:           "page=1&size=5",
			auth:            "Bearer forged",
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Invalid token",
		},
		{
			name:           "first page",
			query:          "page=1&size=3",
			auth:           auth,
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"story-24", "story-23", "story-22"},
			expectedNext:   "2",
		},
		{
			name:           "last short page",
			query:          "page=3&size=10",
			auth:           auth,
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"story-4", "story-3", "story-2", "story-1", "story-0"},
		},
		{
			name:           "past the end",
			query:          "page=9&size=10",
			auth:           auth,
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{},
		},
		{
			name:           "located only",
			query:          "page=1&size=3&location=1",
			auth:           auth,
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"story-24", "story-22", "story-20"},
			expectedNext:   "2",
		},
		{
			name:            "page zero",
			query:           "page=0",
			auth:            auth,
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "page must be a positive number",
		},
		{
			name:            "size not a number",
			query:           "size=ten",
			auth:            auth,
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "size must be a number",
		},
		{
			name:            "bad location flag",
			query:           "location=yes",
			auth:            auth,
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "location must be 0 or 1",
		},
		{
			name:            "unknown sort alias",
			query:           "sort=" + url.QueryEscape("createdAd desc"),
			auth:            auth,
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "invalid column alias 'createdAd'. closest: 'createdAt'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stories?"+tt.query, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			require.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus != http.StatusOK {
				env := decodeEnvelope(t, rec)
				require.True(t, env.Error)
				require.Equal(t, tt.expectedMessage, env.Message)
				return
			}

			var body storypager.StoryResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.False(t, body.Error)
			require.Equal(t, tt.expectedIDs, lo.Map(body.ListStory, func(item storypager.Item, _ int) string { return item.ID }))
			require.Equal(t, tt.expectedNext, rec.Header().Get("X-Next-Page"))
		})
	}
}

func Test_handlers_ListStories_Query(t *testing.T) {
	repo := &memRepo{}
	user := repo.addUser(t, "user-1", "Dimas", "dimas@example.com", "secret-password")
	seedStories(repo, user.ID, 1)
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/stories?size=500&sort="+url.QueryEscape("name asc,createdAt desc"), nil)
	req.Header.Set("Authorization", bearerFor(t, user.ID))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, pager.MaxPageSize, repo.lastQuery.Pager.GetPageSize())
	require.Equal(t, pager.FirstPage, repo.lastQuery.Pager.GetCursor().GetPage())
	require.Equal(t, "name ASC, created_at DESC, id DESC", repo.lastQuery.Pager.GetSort().ToSQL())

	var body storypager.StoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.ListStory, 1)
	require.Equal(t, "http://photos.example/photos/0.jpg", body.ListStory[0].PhotoURL)
	require.True(t, body.ListStory[0].HasLocation())

	repo.listErr = errors.New("database is down")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.True(t, decodeEnvelope(t, rec).Error)
}

func Test_handlers_PostStory(t *testing.T) {
	repo := &memRepo{}
	user := repo.addUser(t, "user-1", "Dimas", "dimas@example.com", "secret-password")
	router, cfg := newTestRouter(t, repo)
	auth := bearerFor(t, user.ID)
	photo := []byte("jpeg-bytes")

	tests := []struct {
		name            string
		form            storyForm
		auth            string
		expectedStatus  int
		expectedMessage string
	}{
		{
			"no token",
			storyForm{description: "sunset", photo: photo, photoName: "a.jpg"},
			"",
			http.StatusUnauthorized,
			"Missing authentication",
		},
		{
			"unknown user",
			storyForm{description: "sunset", photo: photo, photoName: "a.jpg"},
			bearerFor(t, "user-404"),
			http.StatusUnauthorized,
			"Invalid token",
		},
		{
			"missing description",
			storyForm{photo: photo, photoName: "a.jpg"},
			auth,
			http.StatusBadRequest,
			"description is required",
		},
		{
			"missing photo",
			storyForm{description: "sunset"},
			auth,
			http.StatusBadRequest,
			"photo is required",
		},
		{
			"lat without lon",
			storyForm{description: "sunset", photo: photo, photoName: "a.jpg", fields: map[string]string{"lat": "1.5"}},
			auth,
			http.StatusBadRequest,
			"lat and lon must be sent together",
		},
		{
			"lon out of range",
			storyForm{description: "sunset", photo: photo, photoName: "a.jpg", fields: map[string]string{"lat": "1.5", "lon": "200"}},
			auth,
			http.StatusBadRequest,
			"lon must be a number between -180 and 180",
		},
		{
			"photo too large",
			storyForm{description: "sunset", photo: bytes.Repeat([]byte("x"), int(cfg.MaxPhotoBytes)+1), photoName: "a.jpg"},
			auth,
			http.StatusRequestEntityTooLarge,
			fmt.Sprintf("photo must not exceed %d bytes", cfg.MaxPhotoBytes),
		},
		{
			"created with location",
			storyForm{description: "sunset", photo: photo, photoName: "Sunset.PNG", fields: map[string]string{"lat": "-6.8919", "lon": "107.6089"}},
			auth,
			http.StatusCreated,
			"Story created successfully",
		},
		{
			"created without location",
			storyForm{description: "dusk", photo: photo, photoName: "noext"},
			auth,
			http.StatusCreated,
			"Story created successfully",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, newStoryRequest(t, tt.form, tt.auth))

			require.Equal(t, tt.expectedStatus, rec.Code)
			env := decodeEnvelope(t, rec)
			require.Equal(t, tt.expectedStatus >= http.StatusBadRequest, env.Error)
			require.Equal(t, tt.expectedMessage, env.Message)
		})
	}

	require.Len(t, repo.stories, 2)

	located := repo.stories[0]
	require.True(t, strings.HasPrefix(located.ID, "story-"))
	require.Equal(t, "Dimas", located.Name)
	require.Equal(t, user.ID, located.UserID)
	require.InDelta(t, -6.8919, *located.Lat, 1e-9)
	require.Equal(t, ".png", filepath.Ext(located.PhotoFile))

	saved, err := os.ReadFile(filepath.Join(cfg.PhotoDir, located.PhotoFile))
	require.NoError(t, err)
	require.Equal(t, photo, saved)

	require.Nil(t, repo.stories[1].Lat)
	require.Equal(t, ".jpg", filepath.Ext(repo.stories[1].PhotoFile))

	entries, err := os.ReadDir(cfg.PhotoDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func Test_handlers_GetPhoto(t *testing.T) {
	router, cfg := newTestRouter(t, &memRepo{})
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PhotoDir, "a.jpg"), []byte("jpeg-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PhotoDir, ".secret"), []byte("x"), 0o644))

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"existing", "/photos/a.jpg", http.StatusOK},
		{"missing", "/photos/b.jpg", http.StatusNotFound},
		{"hidden", "/photos/.secret", http.StatusNotFound},
		{"unknown route", "/nothing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusOK {
				require.Equal(t, "jpeg-bytes", rec.Body.String())
			} else {
				require.True(t, decodeEnvelope(t, rec).Error)
			}
		})
	}
}

func Test_Router_ClientRoundTrip(t *testing.T) {
	repo := &memRepo{}
	router, _ := newTestRouter(t, repo)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx := context.Background()
	client, err := storypager.NewClient(srv.URL, nil)
	require.NoError(t, err)

	require.NoError(t, client.Register(ctx, "Dimas", "dimas@example.com", "secret-password"))
	require.ErrorIs(t, client.Register(ctx, "Dimas", "dimas@example.com", "secret-password"), storypager.ErrServerRejected)

	_, err = client.Login(ctx, "dimas@example.com", "wrong-password")
	require.ErrorIs(t, err, storypager.ErrServerRejected)

	result, err := client.Login(ctx, "dimas@example.com", "secret-password")
	require.NoError(t, err)
	require.Equal(t, "Dimas", result.Name)

	for i := range 25 {
		story := storypager.NewStory{
			Description: fmt.Sprintf("story %d", i),
			Photo:       strings.NewReader(fmt.Sprintf("photo %d", i)),
			PhotoName:   "photo.jpg",
		}
		if i%2 == 0 {
			story.Lat, story.Lon = lo.ToPtr(-6.8919), lo.ToPtr(107.6089)
		}
		require.NoError(t, client.AddStory(ctx, story))
	}

	feed := storypager.NewSequence(client.Fetcher(), 10)
	defer feed.Close()
	for {
		if _, err = feed.LoadNext(ctx); err != nil {
			break
		}
	}
	require.ErrorIs(t, err, storypager.ErrEndOfSequence)

	snap := feed.Snapshot()
	require.Equal(t, storypager.StateLoadedComplete, snap.State)
	require.Equal(t, 25, snap.Len())
	require.Equal(t, "story 24", snap.Items[0].Description)
	require.Equal(t, "story 0", snap.Items[24].Description)

	located := storypager.NewSequence(client.Fetcher().WithLocationOnly(), 5)
	defer located.Close()
	for {
		if _, err = located.LoadNext(ctx); err != nil {
			break
		}
	}
	require.ErrorIs(t, err, storypager.ErrEndOfSequence)
	require.Equal(t, 13, located.Snapshot().Len())
	require.True(t, lo.EveryBy(located.Snapshot().Items, storypager.Item.HasLocation))

	onMap, err := client.StoriesWithLocation(ctx)
	require.NoError(t, err)
	require.Len(t, onMap, pager.DefaultPageSize)

	photoURL, err := url.Parse(snap.Items[0].PhotoURL)
	require.NoError(t, err)
	resp, err := http.Get(srv.URL + photoURL.Path)
	require.NoError(t, err)
	defer resp.Body.Close()
	photo, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "photo 24", string(photo))

	require.NoError(t, client.Logout(ctx))
	_, err = feed.Refresh(ctx, 0)
	require.ErrorIs(t, err, storypager.ErrUnauthenticated)
}
