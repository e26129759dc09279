package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the HTTP router serving the story endpoint.
func NewRouter(repo Repo, cfg Config, logger *slog.Logger) (http.Handler, error) {
	publicURL, err := url.Parse(cfg.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("invalid public url '%s': %w", cfg.PublicURL, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := &handlers{
		repo:      repo,
		auth:      NewAuthenticator(cfg.JWTSecret, cfg.TokenTTL),
		photoDir:  cfg.PhotoDir,
		maxPhoto:  cfg.MaxPhotoBytes,
		publicURL: publicURL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Post("/register", h.PostRegister)
	r.Post("/login", h.PostLogin)
	r.Get("/photos/{name}", h.GetPhoto)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/stories", h.ListStories)
		r.Post("/stories", h.PostStory)
	})

	return r, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.DebugContext(r.Context(), "request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
