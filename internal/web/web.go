package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventextractor/internal/config"
	appLog "eventextractor/internal/log"
	"eventextractor/internal/model"
)

// upcomingCacheTTL bounds how often /api/upcoming re-reads the contact
// inputs.
const upcomingCacheTTL = 30 * time.Second

// maxUpcomingDays caps the ?days= window.
const maxUpcomingDays = 366

// UpcomingLister lists birthdays in the next days days. *job.Runner
// implements it.
type UpcomingLister interface {
	Upcoming(ctx context.Context, entries []config.Entry, days int, loc *time.Location) ([]model.Occurrence, error)
}

// Server provides the HTTP endpoints of watch mode.
type Server struct {
	cfg      *config.Config
	lister   UpcomingLister
	gatherer prometheus.Gatherer
	mux      *http.ServeMux

	// Clock is used for cache expiry.
	Clock func() time.Time

	cacheMu sync.RWMutex
	cache   map[int]*upcomingCache
}

// NewServer constructs a new Server. gatherer may be nil, in which case
// /metrics is not served.
func NewServer(cfg *config.Config, lister UpcomingLister, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:      cfg,
		lister:   lister,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
		Clock:    time.Now,
		cache:    map[int]*upcomingCache{},
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="event-extractor", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves s on cfg.Listen until ctx is cancelled, then shuts the
// server down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, lister UpcomingLister, gatherer prometheus.Gatherer) error {
	s := NewServer(cfg, lister, gatherer)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/upcoming", s.handleUpcoming)
	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// upcomingResponse is the JSON response shape for /api/upcoming.
type upcomingResponse struct {
	Birthdays       []birthdayDTO `json:"birthdays"`
	Days            int           `json:"days"`
	DisplayTimeZone string        `json:"display_timezone"`
}

type upcomingCache struct {
	resp      upcomingResponse
	updatedAt time.Time
}

// birthdayDTO is a JSON-friendly view of model.Occurrence.
type birthdayDTO struct {
	Source string `json:"source"`
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Date   string `json:"date"`
	Age    *int   `json:"age,omitempty"`
}

// handleUpcoming lists birthdays of all configured entries.
//
// GET /api/upcoming?days=30
//   - days: window length starting today (default cfg.UpcomingDays)
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.UpcomingDays)
	if days <= 0 {
		days = s.cfg.UpcomingDays
	}
	days = min(days, maxUpcomingDays)

	now := s.Clock()
	s.cacheMu.RLock()
	c := s.cache[days]
	s.cacheMu.RUnlock()
	if c != nil && now.Sub(c.updatedAt) < upcomingCacheTTL {
		writeJSON(w, http.StatusOK, c.resp)
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	appLog.Info("api upcoming request", "days", days, "timezone", loc.String())

	occs, err := s.lister.Upcoming(r.Context(), s.cfg.Entries, days, loc)
	if err != nil {
		appLog.Error("api upcoming: listing failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list birthdays")
		return
	}

	dtos := make([]birthdayDTO, 0, len(occs))
	for _, o := range occs {
		dtos = append(dtos, birthdayDTO{
			Source: o.Source,
			UID:    o.UID,
			Name:   o.Name,
			Date:   o.Date.Format(time.DateOnly),
			Age:    o.Age,
		})
	}
	resp := upcomingResponse{
		Birthdays:       dtos,
		Days:            days,
		DisplayTimeZone: loc.String(),
	}

	s.cacheMu.Lock()
	s.cache[days] = &upcomingCache{resp: resp, updatedAt: now}
	s.cacheMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
