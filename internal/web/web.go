package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"untisbot/internal/config"
	"untisbot/internal/ics"
	appLog "untisbot/internal/log"
	"untisbot/internal/report"
	"untisbot/internal/timetable"
)

// Builder produces the report for one day.
type Builder interface {
	Build(ctx context.Context, day time.Time) (*report.Report, error)
}

// Server exposes the current day over HTTP: /health, /api/today,
// /today.txt and /today.ics.
type Server struct {
	cfg     *config.Config
	builder Builder
	loc     *time.Location
	mux     *http.ServeMux
	now     func() time.Time

	// Built days are cached briefly so that polling clients do not cause
	// a WebUntis login per request.
	dayMu    sync.RWMutex
	dayCache map[string]*dayCache
}

const dayCacheTTL = 30 * time.Second

type dayCache struct {
	rep       *report.Report
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, builder Builder) *Server {
	s := &Server{
		cfg:      cfg,
		builder:  builder,
		loc:      cfg.Location(),
		mux:      http.NewServeMux(),
		now:      time.Now,
		dayCache: make(map[string]*dayCache),
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

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
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
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials mean auth is off.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
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
			w.Header().Set("WWW-Authenticate", `Basic realm="untisbot", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/today", s.handleToday)
	s.mux.HandleFunc("/today.txt", s.handleTodayText)
	s.mux.HandleFunc("/today.ics", s.handleTodayICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// todayResponse is the JSON response shape for /api/today.
type todayResponse struct {
	Date        string           `json:"date"`
	Holiday     bool             `json:"holiday"`
	HolidayName string           `json:"holiday_name,omitempty"`
	Slots       []timetable.Slot `json:"slots"`
}

// handleToday returns the normalized day.
//
// GET /api/today?date=2023-09-07
//   - date: optional day in the configured timezone (default today)
func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	slots := rep.Slots
	if slots == nil {
		slots = []timetable.Slot{}
	}
	writeJSON(w, http.StatusOK, todayResponse{
		Date:        rep.Date.Format(time.DateOnly),
		Holiday:     rep.Holiday,
		HolidayName: rep.HolidayName,
		Slots:       slots,
	})
}

func (s *Server) handleTodayText(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rep.Text()))
}

func (s *Server) handleTodayICS(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.Export(rep.Date, rep.Slots, s.loc)))
}

// report resolves the requested day and returns its (possibly cached)
// report. On failure it has already written the error response.
func (s *Server) report(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	day := s.now().In(s.loc)
	if q := r.URL.Query().Get("date"); q != "" {
		d, err := time.ParseInLocation(time.DateOnly, q, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return nil, false
		}
		day = d
	}
	key := day.Format(time.DateOnly)

	s.dayMu.RLock()
	dc := s.dayCache[key]
	s.dayMu.RUnlock()
	if dc != nil && s.now().Sub(dc.updatedAt) < dayCacheTTL {
		return dc.rep, true
	}

	rep, err := s.builder.Build(r.Context(), day)
	if err != nil {
		appLog.Error("build report failed", err, "date", key)
		writeError(w, http.StatusBadGateway, "failed to fetch timetable")
		return nil, false
	}

	s.dayMu.Lock()
	for k, c := range s.dayCache {
		if s.now().Sub(c.updatedAt) >= dayCacheTTL {
			delete(s.dayCache, k)
		}
	}
	s.dayCache[key] = &dayCache{rep: rep, updatedAt: s.now()}
	s.dayMu.Unlock()

	return rep, true
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
