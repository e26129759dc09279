package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Alp4ka/storypager/pager"
	"github.com/Alp4ka/storypager/store"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

func newGORMMySQLMock() (*gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, store.Config())
	if err != nil {
		return nil, nil, err
	}

	return db.Debug(), mock, nil
}

func testConfig(t *testing.T) Config {
	t.Helper()

	return Config{
		JWTSecret:      testSecret,
		TokenTTL:       time.Hour,
		PhotoDir:       t.TempDir(),
		PublicURL:      "http://photos.example",
		MaxPhotoBytes:  1 << 20,
		RequestTimeout: 5 * time.Second,
	}
}

// memRepo keeps users and stories in memory. Stories are listed newest
// first; the requested sort is only recorded.
type memRepo struct {
	mu        sync.Mutex
	users     []User
	stories   []Story
	listErr   error
	lastQuery StoryQuery
}

var _ Repo = (*memRepo)(nil)

func (m *memRepo) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lo.ContainsBy(m.users, func(u User) bool { return u.Email == user.Email }) {
		return ErrEmailTaken
	}
	m.users = append(m.users, *user)

	return nil
}

func (m *memRepo) UserByEmail(_ context.Context, email string) (User, error) {
	return m.findUser(func(u User) bool { return u.Email == email })
}

func (m *memRepo) UserByID(_ context.Context, id string) (User, error) {
	return m.findUser(func(u User) bool { return u.ID == id })
}

func (m *memRepo) findUser(match func(User) bool) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := lo.Find(m.users, match)
	if !ok {
		return User{}, ErrUserNotFound
	}

	return user, nil
}

func (m *memRepo) CreateStory(_ context.Context, story *Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stories = append(m.stories, *story)

	return nil
}

func (m *memRepo) ListStories(_ context.Context, query StoryQuery) (pager.Result[Story], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastQuery = query
	if m.listErr != nil {
		return pager.Result[Story]{}, m.listErr
	}

	stories := slices.Clone(m.stories)
	slices.Reverse(stories)
	if query.LocationOnly {
		stories = lo.Filter(stories, func(s Story, _ int) bool { return s.Lat != nil && s.Lon != nil })
	}

	size := query.Pager.GetPageSize()
	start := min(query.Pager.GetCursor().Offset(size), len(stories))
	rows := stories[start:min(start+size, len(stories))]

	res := pager.Result[Story]{
		Items:    rows,
		Page:     query.Pager.GetCursor().GetPage(),
		PageSize: size,
	}
	if !pager.IsLastPage(query.Pager, rows) {
		res.Next = query.Pager.GetCursor().Next()
	}

	return res, nil
}

func (m *memRepo) addUser(t *testing.T, id, name, email, password string) User {
	t.Helper()

	hash, err := HashPassword(password)
	require.NoError(t, err)

	user := User{ID: id, Name: name, Email: email, PasswordHash: hash}
	require.NoError(t, m.CreateUser(context.Background(), &user))

	return user
}

func bearerFor(t *testing.T, userID string) string {
	t.Helper()

	token, err := NewAuthenticator(testSecret, time.Hour).Issue(userID)
	require.NoError(t, err)

	return "Bearer " + token
}

type storyForm struct {
	description string
	photo       []byte
	photoName   string
	fields      map[string]string
}

func (f storyForm) encode(t *testing.T) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if f.description != "" {
		require.NoError(t, w.WriteField("description", f.description))
	}
	for k, v := range f.fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if f.photo != nil {
		part, err := w.CreateFormFile("photo", f.photoName)
		require.NoError(t, err)
		_, err = part.Write(f.photo)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func newStoryRequest(t *testing.T, form storyForm, auth string) *http.Request {
	t.Helper()

	body, contentType := form.encode(t)
	req, err := http.NewRequest(http.MethodPost, "/stories", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	return req
}
