// Package api exposes the query engine as an authenticated HTTP interface.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-books-api/config"
	"github.com/aluiziolira/go-books-api/dataset"
	"github.com/aluiziolira/go-books-api/query"
)

// Server wires HTTP handlers to the query engine and the snapshot store.
type Server struct {
	router   chi.Router
	engine   *query.Engine
	store    *dataset.Store
	cfg      config.ServerConfig
	registry *prometheus.Registry
}

// NewServer constructs a Server with middleware and routes.
func NewServer(engine *query.Engine, store *dataset.Store, cfg config.ServerConfig) *Server {
	registry := prometheus.NewRegistry()
	requests := newRequestMetrics(registry)

	s := &Server{
		engine:   engine,
		store:    store,
		cfg:      cfg,
		registry: registry,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))
	r.Use(requests.middleware)

	r.Get("/", s.home)
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(basicAuthMiddleware(cfg.Users))
		}
		r.Get("/health", s.health)
		r.Get("/categories", s.categories)
		r.Post("/reload", s.reload)
		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.allBooks)
			r.Get("/search", s.searchBooks)
			r.Get("/top-rated", s.topRated)
			r.Get("/price-range", s.priceRange)
			r.Get("/{book_id}", s.bookByID)
		})
		r.Route("/stats", func(r chi.Router) {
			r.Get("/overview", s.statsOverview)
			r.Get("/categories", s.statsCategories)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the book catalog API"})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	current := s.store.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "UP",
		"data_loaded": !current.IsEmpty(),
		"num_books":   current.Len(),
	})
}

func (s *Server) allBooks(w http.ResponseWriter, _ *http.Request) {
	records, err := s.engine.All()
	if err != nil {
		s.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) bookByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "book_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "book id must be an integer")
		return
	}
	record, err := s.engine.ByID(id)
	if err != nil {
		s.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) searchBooks(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	category := r.URL.Query().Get("category")

	records, err := s.engine.Search(title, category)
	if err != nil {
		s.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) categories(w http.ResponseWriter, _ *http.Request) {
	categories, err := s.engine.Categories()
	if err != nil {
		s.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) statsOverview(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.engine.Overview()
	if err != nil {
		s.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) statsCategories(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.engine.CategoryStats()
	if err != nil {
		s.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) topRated(w http.ResponseWriter, _ *http.Request) {
	records, err := s.engine.TopRated()
	if err != nil {
		s.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) priceRange(w http.ResponseWriter, r *http.Request) {
	minParam := r.URL.Query().Get("min")
	maxParam := r.URL.Query().Get("max")
	if minParam == "" || maxParam == "" {
		writeError(w, http.StatusBadRequest, "params 'min' and 'max' are required")
		return
	}
	min, err := strconv.ParseFloat(minParam, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "param 'min' must be a valid number")
		return
	}
	max, err := strconv.ParseFloat(maxParam, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "param 'max' must be a valid number")
		return
	}

	records, err := s.engine.ByPriceRange(min, max)
	if err != nil {
		s.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// reload re-reads the persisted dataset and swaps the visible snapshot
// atomically, mirroring what happens at process start. A failed load swaps
// in the empty sentinel, the same all-or-nothing contract the loader has.
func (s *Server) reload(w http.ResponseWriter, _ *http.Request) {
	d, err := dataset.Load(s.cfg.DataFile)
	s.store.Swap(d)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "dataset reload failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loaded": d.Len()})
}

func (s *Server) queryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "book data not available")
	case errors.Is(err, query.ErrNotFound):
		writeError(w, http.StatusNotFound, "book not found")
	case errors.Is(err, query.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
