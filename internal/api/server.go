// Package api provides the Verse Explorer REST and WebSocket server.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/VerseExplorer/core/ref"
	"github.com/FocuswithJustin/VerseExplorer/core/search"
	"github.com/FocuswithJustin/VerseExplorer/internal/cache"
	"github.com/FocuswithJustin/VerseExplorer/internal/logging"
	"github.com/FocuswithJustin/VerseExplorer/internal/server"
	"github.com/FocuswithJustin/VerseExplorer/internal/session"
)

// Server serves one Library over HTTP.
type Server struct {
	cfg     Config
	lib     *session.Library
	logger  *slog.Logger
	results *cache.TTLCache[string, *SearchResponse]
	hub     *Hub
	metrics *Metrics
	limiter *RateLimiter
	started time.Time
}

// New creates a Server for lib and subscribes it to notes changes so that
// cached searches are dropped and WebSocket clients are told.
func New(cfg Config, lib *session.Library, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	s := &Server{
		cfg:     cfg,
		lib:     lib,
		logger:  logger,
		results: cache.New[string, *SearchResponse](cfg.CacheTTL, cfg.CacheSize),
		metrics: NewMetrics(lib),
		started: time.Now(),
	}
	s.hub = NewHub(func(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
		resp, _, err := s.search(ctx, req, "websocket")
		return resp, err
	}, logger)
	s.hub.onCount = func(n int) { s.metrics.wsClients.Set(float64(n)) }
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
	}

	lib.Subscribe(s.onNotesChanged)
	return s
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) onNotesChanged(c session.Change) {
	s.results.Invalidate()
	s.metrics.observeNoteEvent(c.Event)
	s.hub.BroadcastNotesChanged(c)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = server.SecurityHeadersWithCSP(server.APICSPConfig(), s.routes())
	handler = server.TimingMiddleware(500*time.Millisecond, s.logger, handler)
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	handler = server.CORSMiddleware(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	return logging.CombinedMiddleware(handler)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/translations", s.handleTranslations)
	mux.HandleFunc("/chapters", s.handleChapters)
	mux.HandleFunc("/resolve", s.handleResolve)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/navigate", s.handleNavigate)
	mux.HandleFunc("/notes", s.handleNotes)
	mux.HandleFunc("/notes/", s.handleNoteByRef)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// ListenAndServe runs the hub and the HTTP server until ctx is done, then
// shuts down gracefully and flushes the notes overlay.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)
	if s.limiter != nil {
		defer s.limiter.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if len(s.cfg.AllowedOrigins) > 0 {
		logging.Info("cors configured", "mode", "restricted", "allowed_origins_count", len(s.cfg.AllowedOrigins))
	} else {
		logging.Warn("cors configured", "mode", "permissive",
			"note", "allowing all origins (*) - consider restricting for production")
	}
	if s.limiter != nil {
		logging.Info("rate limiting enabled",
			"requests_per_minute", s.cfg.RateLimitRequests,
			"burst_size", s.cfg.RateLimitBurst)
	}
	logging.ServerStartup("rest_api", "http", s.cfg.Port,
		"websocket_protocol", "ws",
		"version", s.cfg.Version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Info("shutting down", "reason", ctx.Err())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return s.lib.Flush(shutdownCtx)
}

// search resolves and runs req, serving repeated queries from the cache.
func (s *Server) search(ctx context.Context, req SearchRequest, origin string) (*SearchResponse, bool, error) {
	rng, err := s.lib.Resolve(req.Reference)
	if err != nil {
		return nil, false, err
	}
	q := searchQuery(rng, req)

	key := cacheKey(q)
	if resp, ok := s.results.Get(key); ok {
		s.metrics.observeSearch(origin, true, 0)
		logging.DebugContext(ctx, "search cache hit", "key", key, "origin", origin)
		return resp, true, nil
	}

	gen := s.results.Generation()
	start := time.Now()
	res, err := s.lib.Search(ctx, q)
	if err != nil {
		return nil, false, err
	}
	s.metrics.observeSearch(origin, false, time.Since(start))

	resp := &SearchResponse{
		Reference: rng.String(),
		Range:     rng,
		Status:    session.StatusLine(res),
		Result:    res,
	}
	s.results.SetIfGeneration(gen, key, resp)
	return resp, false, nil
}

func searchQuery(rng ref.Range, req SearchRequest) search.Query {
	return search.Query{
		Range:        rng,
		Keyword:      strings.TrimSpace(req.Keyword),
		Selected:     req.Translations,
		BroadSearch:  req.BroadSearch,
		BroadResults: req.BroadResults,
		IncludeNotes: req.IncludeNotes,
	}
}

// cacheKey normalizes a query so equivalent requests share an entry.
// Matching ignores case, so the keyword is folded. The selection order
// decides display order and is kept.
func cacheKey(q search.Query) string {
	flags := []string{
		strconv.FormatBool(q.BroadSearch),
		strconv.FormatBool(q.BroadResults),
		strconv.FormatBool(q.IncludeNotes),
	}
	return strings.Join([]string{
		q.Range.String(),
		strings.ToLower(q.Keyword),
		strings.Join(q.Selected, "\x1f"),
		strings.Join(flags, ","),
	}, "\x1e")
}
