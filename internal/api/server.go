// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/api/handlers"
	"github.com/bookimbiber/imbiber/internal/api/middleware"
	"github.com/bookimbiber/imbiber/internal/api/sse"
	"github.com/bookimbiber/imbiber/internal/config"
	"github.com/bookimbiber/imbiber/internal/metrics"
	"github.com/bookimbiber/imbiber/internal/services/authors"
	"github.com/bookimbiber/imbiber/internal/services/catalog"
	"github.com/bookimbiber/imbiber/internal/services/library"
	"github.com/bookimbiber/imbiber/internal/services/releases"
	"github.com/bookimbiber/imbiber/internal/services/series"
	"github.com/bookimbiber/imbiber/internal/web/swagger"
)

const (
	compressionMinSize = 1024
	compressionLevel   = 5
	throttleLimit      = 64
	throttleBacklog    = 256
	throttleTimeout    = 30 * time.Second
)

type Dependencies struct {
	Config   *config.AppConfig
	Catalog  *catalog.Service
	Series   *series.Service
	Authors  *authors.Service
	Library  *library.Service
	Releases *releases.Service
	Stream   *sse.StreamManager
	Metrics  *metrics.Manager
	Database handlers.Pinger
}

type Server struct {
	server *http.Server
	deps   *Dependencies
}

func NewServer(deps *Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the full HTTP handler, mounted under the configured base URL.
func (s *Server) Handler() (http.Handler, error) {
	if s.deps == nil || s.deps.Config == nil || s.deps.Config.Current() == nil {
		return nil, errors.New("api: config is required")
	}

	router := NewRouter(s.deps)

	baseURL := normalizeBaseURL(s.deps.Config.Current().BaseURL)
	if baseURL == "/" {
		return router, nil
	}

	root := chi.NewRouter()
	root.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, baseURL, http.StatusFound)
	})
	root.Mount(strings.TrimSuffix(baseURL, "/"), router)
	return root, nil
}

// NewRouter registers every route and middleware. Routes are relative to
// the base URL.
func NewRouter(deps *Dependencies) *chi.Mux {
	cfg := deps.Config.Current()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil && deps.Metrics.HTTP != nil {
		r.Use(deps.Metrics.HTTP.Middleware)
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", middleware.APIKeyHeader, "X-Requested-With", "Last-Event-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}
	r.Use(middleware.SelectiveCompress(compressionMinSize, compressionLevel, true, true))

	health := handlers.NewHealthHandler(deps.Database)
	r.Route("/health", health.Routes)
	r.Get("/healthz", health.HandleHealth)

	r.Get("/api/openapi.yaml", serveOpenAPISpec)

	requireAuth := middleware.RequireAuth(deps.Config.Current)

	search := handlers.NewSearchHandler(deps.Catalog, deps.Series)
	authorsHandler := handlers.NewAuthorsHandler(deps.Authors, deps.Releases)
	libraryHandler := handlers.NewLibraryHandler(deps.Library)
	releasesHandler := handlers.NewReleasesHandler(deps.Releases)
	eventsHandler := handlers.NewEventsHandler(deps.Stream)

	r.Route("/api", func(r chi.Router) {
		// EventSource cannot send headers, so the stream also accepts ?apikey=
		r.With(middleware.APIKeyFromQuery(middleware.APIKeyQueryParam), requireAuth, middleware.UserContext).
			Get("/users/{userID}/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.ThrottleBacklog(throttleLimit, throttleBacklog, throttleTimeout))

			r.Get("/version", handlers.NewVersionHandler().GetVersion)

			r.Route("/search", func(r chi.Router) {
				r.Get("/", search.Search)
				r.Get("/isbn/{isbn}", search.SearchISBN)
				r.Get("/series", search.SearchSeries)
			})

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Use(middleware.UserContext)

				r.Route("/authors", func(r chi.Router) {
					r.Get("/", authorsHandler.List)
					r.Post("/", authorsHandler.Follow)
					r.Get("/suggestions", authorsHandler.Suggestions)
					r.Delete("/{id}", authorsHandler.Unfollow)
				})

				r.Route("/library", func(r chi.Router) {
					r.Get("/", libraryHandler.List)
					r.Post("/", libraryHandler.Add)
					r.Get("/series", libraryHandler.Series)
					r.Put("/{id}/read", libraryHandler.MarkRead)
					r.Delete("/{id}", libraryHandler.Delete)
				})

				r.Route("/releases", func(r chi.Router) {
					r.Get("/", releasesHandler.List)
					r.Post("/check", releasesHandler.Check)
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", releasesHandler.ListNotifications)
					r.Get("/unread-count", releasesHandler.UnreadCount)
					r.Delete("/unread-count", releasesHandler.ClearUnreadCount)
					r.Put("/{id}/read", releasesHandler.MarkNotificationRead)
					r.Delete("/{id}", releasesHandler.DeleteNotification)
				})
			})
		})
	})

	return r
}

// PumpEvents forwards service change streams to connected SSE clients.
func (s *Server) PumpEvents() {
	d := s.deps
	if d.Stream == nil {
		return
	}

	if d.Authors != nil {
		ch, _ := d.Authors.Subscribe()
		sse.Pump(d.Stream, ch, func(e authors.ChangeEvent) (string, string, any, *sse.StreamMeta, bool) {
			return e.UserID, sse.EventAuthors, e.Author, streamMeta(e.UserID, string(e.Type), e.AuthorID), true
		})
	}

	if d.Library != nil {
		ch, _ := d.Library.Subscribe()
		sse.Pump(d.Stream, ch, func(e library.ChangeEvent) (string, string, any, *sse.StreamMeta, bool) {
			return e.UserID, sse.EventLibrary, e.Book, streamMeta(e.UserID, string(e.Type), e.BookID), true
		})
	}

	if d.Releases != nil {
		ch, _ := d.Releases.Subscribe()
		sse.Pump(d.Stream, ch, func(e releases.ChangeEvent) (string, string, any, *sse.StreamMeta, bool) {
			data := map[string]int{"unread": d.Releases.UnreadCount(context.Background(), e.UserID)}
			return e.UserID, sse.EventReleases, data, streamMeta(e.UserID, string(e.Type), e.NotificationID), true
		})
	}
}

func streamMeta(userID, change, id string) *sse.StreamMeta {
	return &sse.StreamMeta{UserID: userID, Change: change, ID: id, Timestamp: time.Now().UTC()}
}

func (s *Server) ListenAndServe() error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	cfg := s.deps.Config.Current()
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Str("baseUrl", normalizeBaseURL(cfg.BaseURL)).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps != nil && s.deps.Stream != nil {
		if err := s.deps.Stream.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down event stream")
		}
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec, err := swagger.GetOpenAPISpec()
	if err != nil {
		handlers.RespondError(w, http.StatusInternalServerError, "Failed to load OpenAPI spec")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(spec)
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" || baseURL == "/" {
		return "/"
	}
	if !strings.HasPrefix(baseURL, "/") {
		baseURL = "/" + baseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL
}
