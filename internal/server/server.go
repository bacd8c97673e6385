// Package server exposes the HTTP API: an OGC-flavored collections surface
// over the feature store, raster tile rendering, tile-click lookup, and the
// scrape and user admin endpoints.
package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/brandy/internal/render"
	"github.com/sells-group/brandy/internal/store"
)

// Server wires the store and renderer into an http.Handler.
type Server struct {
	store      *store.Store
	renderer   render.Renderer
	styles     render.StyleSheet
	fuzzPixels int
	ingestRate *rate.Limiter
}

// Options configures a Server.
type Options struct {
	Renderer    render.Renderer
	Styles      render.StyleSheet
	FuzzPixels  int
	IngestRate  float64
	IngestBurst int
}

// New builds a Server over the given store.
func New(st *store.Store, opts Options) *Server {
	if opts.IngestRate <= 0 {
		opts.IngestRate = 2
	}
	if opts.IngestBurst <= 0 {
		opts.IngestBurst = 5
	}
	return &Server{
		store:      st,
		renderer:   opts.Renderer,
		styles:     opts.Styles,
		fuzzPixels: opts.FuzzPixels,
		ingestRate: rate.NewLimiter(rate.Limit(opts.IngestRate), opts.IngestBurst),
	}
}

// Router assembles the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", s.handleCatalog)
		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", s.handleCollection)
			r.Get("/items", s.handleItems)
			r.With(s.requireUser).Post("/items", s.handleIngest)
		})
	})

	r.Get("/tiles/{collection}/{z}/{x}/{y}.png", s.handleTile)
	r.Get("/tiles/{collection}/{z}/{x}/{y}/{i}/{j}.geojson", s.handleTileClick)

	r.Get("/scrapes", s.handleScrapes)
	r.Get("/scrapes/{id}", s.handleScrape)

	r.With(s.requireUser).Get("/users", s.handleUsers)
	r.With(s.requireUser).Get("/users/{username}", s.handleUser)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// brandIDParam parses the Q-prefixed collection path segment, e.g. "Q72".
func brandIDParam(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "collection")
	num, ok := strings.CutPrefix(raw, "Q")
	if !ok || num == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(num, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func intParam(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	return v, err == nil
}
