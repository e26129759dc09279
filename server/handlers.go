package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Alp4ka/storypager"
	"github.com/Alp4ka/storypager/pager"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// multipartOverhead is allowed on top of the photo limit for the other form
// fields and part headers.
const multipartOverhead = 64 << 10

type handlers struct {
	repo      Repo
	auth      *Authenticator
	photoDir  string
	maxPhoto  int64
	publicURL *url.URL
	logger    *slog.Logger
	now       func() time.Time
}

func (h *handlers) PostRegister(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	switch {
	case name == "":
		writeError(w, http.StatusBadRequest, "name is required")
		return
	case !validEmail(email):
		writeError(w, http.StatusBadRequest, "email must be a valid email")
		return
	case len(password) < MinPasswordLength:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters long", MinPasswordLength))
		return
	}

	hash, err := HashPassword(password)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user := User{
		ID:           "user-" + uuid.NewString(),
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		CreatedAt:    h.now(),
	}
	err = h.repo.CreateUser(r.Context(), &user)
	if errors.Is(err, ErrEmailTaken) {
		writeError(w, http.StatusBadRequest, "Email is already taken")
		return
	} else if err != nil {
		h.logger.ErrorContext(r.Context(), "create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.logger.InfoContext(r.Context(), "user registered", "user_id", user.ID)
	writeMessage(w, http.StatusCreated, "User created")
}

func (h *handlers) PostLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")

	user, err := h.repo.UserByEmail(r.Context(), email)
	if errors.Is(err, ErrUserNotFound) || (err == nil && !CheckPassword(user.PasswordHash, password)) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	} else if err != nil {
		h.logger.ErrorContext(r.Context(), "load user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	token, err := h.auth.Issue(user.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, storypager.LoginResponse{
		APIResponse: storypager.APIResponse{Message: "success"},
		LoginResult: storypager.LoginResult{UserID: user.ID, Name: user.Name, Token: token},
	})
}

func (h *handlers) ListStories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	size := 0
	if s := q.Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "size must be a number")
			return
		}
		size = n
	}

	var locationOnly bool
	switch q.Get("location") {
	case "", "0":
	case "1":
		locationOnly = true
	default:
		writeError(w, http.StatusBadRequest, "location must be 0 or 1")
		return
	}

	p, err := pager.RawPager{Size: size, Page: q.Get("page")}.Decode(defaultStoryOrder...)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be a positive number")
		return
	}

	sort, err := pager.ParseSort(q.Get("sort"), storyColumns)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(sort) > 0 {
		p = p.WithSubstitutedSort(sort...).WithSort(pager.OrderBy{Column: "id", Direction: pager.DirectionDESC})
	}

	res, err := h.repo.ListStories(r.Context(), StoryQuery{Pager: p, LocationOnly: locationOnly})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list stories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list stories")
		return
	}

	if res.Next != nil {
		w.Header().Set("X-Next-Page", strconv.Itoa(res.Next.GetPage()))
	}
	writeJSON(w, http.StatusOK, storypager.StoryResponse{
		APIResponse: storypager.APIResponse{Message: "Stories fetched successfully"},
		ListStory: lo.Map(res.Items, func(s Story, _ int) storypager.Item {
			return s.toItem(h.publicURL)
		}),
	})
}

func (h *handlers) PostStory(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing authentication")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxPhoto+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxPhoto + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("photo must not exceed %d bytes", h.maxPhoto))
			return
		}
		writeError(w, http.StatusBadRequest, "request must be multipart/form-data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	description := strings.TrimSpace(r.FormValue("description"))
	if description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	lat, lon, err := parseCoordinates(r.FormValue("lat"), r.FormValue("lon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	photo, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	defer photo.Close()
	if header.Size > h.maxPhoto {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("photo must not exceed %d bytes", h.maxPhoto))
		return
	}

	user, err := h.repo.UserByID(r.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	} else if err != nil {
		h.logger.ErrorContext(r.Context(), "load user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add story")
		return
	}

	fileName, err := h.savePhoto(photo, header)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "save photo", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add story")
		return
	}

	story := Story{
		ID:          "story-" + uuid.NewString(),
		UserID:      user.ID,
		Name:        user.Name,
		Description: description,
		PhotoFile:   fileName,
		CreatedAt:   h.now(),
		Lat:         lat,
		Lon:         lon,
	}
	if err = h.repo.CreateStory(r.Context(), &story); err != nil {
		_ = os.Remove(filepath.Join(h.photoDir, fileName))
		h.logger.ErrorContext(r.Context(), "create story", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add story")
		return
	}

	h.logger.InfoContext(r.Context(), "story created", "story_id", story.ID, "located", lat != nil)
	writeMessage(w, http.StatusCreated, "Story created successfully")
}

func (h *handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusNotFound, "photo not found")
		return
	}

	path := filepath.Join(h.photoDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "photo not found")
		return
	}

	http.ServeFile(w, r, path)
}

func (h *handlers) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "route not found")
}

func (h *handlers) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// savePhoto stores the upload as <uuid><ext> and returns the file name.
func (h *handlers) savePhoto(photo multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	name := uuid.NewString() + ext

	if err := os.MkdirAll(h.photoDir, 0o755); err != nil {
		return "", err
	}

	dst, err := os.Create(filepath.Join(h.photoDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err = io.Copy(dst, photo); err != nil {
		return "", err
	}

	return name, dst.Close()
}

// parseCoordinates accepts both coordinates or neither.
func parseCoordinates(rawLat, rawLon string) (*float64, *float64, error) {
	rawLat, rawLon = strings.TrimSpace(rawLat), strings.TrimSpace(rawLon)
	if rawLat == "" && rawLon == "" {
		return nil, nil, nil
	}
	if rawLat == "" || rawLon == "" {
		return nil, nil, errors.New("lat and lon must be sent together")
	}

	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, nil, errors.New("lat must be a number between -90 and 90")
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, nil, errors.New("lon must be a number between -180 and 180")
	}

	return &lat, &lon, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
