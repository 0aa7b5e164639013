// Package devserver is an in-memory stand-in for the review backend. It
// serves the settings, status, job and export endpoints with simulated jobs
// that progress with the clock.
package devserver

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"reviewdeck/internal/logging"
	"reviewdeck/internal/types"
)

const (
	defaultItemsPerJob = 20
	defaultStep        = 500 * time.Millisecond
	maxLogLines        = 200
	maxBodyBytes       = 1 << 20
)

type Options struct {
	ItemsPerJob int
	// Step is the simulated time one item takes.
	Step    time.Duration
	Version string
	Logger  logging.Logger
	Now     func() time.Time
}

type Server struct {
	mu       sync.Mutex
	settings map[string]json.RawMessage
	jobs     map[types.JobKind][]*simJob
	logs     map[types.JobKind][]string

	items   int
	step    time.Duration
	version string
	logger  logging.Logger
	now     func() time.Time
	router  chi.Router
}

func New(opts Options) *Server {
	s := &Server{
		settings: map[string]json.RawMessage{},
		jobs:     map[types.JobKind][]*simJob{},
		logs:     map[types.JobKind][]string{},
		items:    opts.ItemsPerJob,
		step:     opts.Step,
		version:  opts.Version,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if s.items <= 0 {
		s.items = defaultItemsPerJob
	}
	if s.step <= 0 {
		s.step = defaultStep
	}
	if s.version == "" {
		s.version = "dev"
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	s.logger = s.logger.With(logging.F("component", "devserver"))
	if s.now == nil {
		s.now = time.Now
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogging(s.logger))

	r.Get("/health", s.health)
	r.Route("/settings/{scope}", func(r chi.Router) {
		r.Get("/", s.getSettings)
		r.Post("/", s.saveSettings)
		r.Delete("/", s.deleteSettings)
	})
	r.Route("/{kind}", func(r chi.Router) {
		r.Use(s.requireKind)
		r.Get("/status", s.status)
		r.Post("/start", s.start)
		r.Get("/jobs", s.listJobs)
		r.Post("/jobs/{id}/cancel", s.cancelJob)
		r.Get("/export", s.export)
	})
	return r
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", logging.F("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type kindKey struct{}

func (s *Server) requireKind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, ok := types.ParseJobKind(chi.URLParam(r, "kind"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown job kind")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), kindKey{}, kind)))
	})
}

func kindFrom(r *http.Request) types.JobKind {
	kind, _ := r.Context().Value(kindKey{}).(types.JobKind)
	return kind
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": s.version})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	s.mu.Lock()
	raw, ok := s.settings[scope]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no settings for "+scope)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "body must be valid json")
		return
	}
	s.mu.Lock()
	s.settings[scope] = append(json.RawMessage(nil), bytes.TrimSpace(body)...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) deleteSettings(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	s.mu.Lock()
	_, ok := s.settings[scope]
	delete(s.settings, scope)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no settings for "+scope)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	kind := kindFrom(r)
	s.mu.Lock()
	s.advanceLocked(kind)
	snapshot := s.snapshotLocked(kind)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	kind := kindFrom(r)
	payload := map[string]any{}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	now := s.now()
	job := newSimJob(kind, payload, s.items, now)
	s.mu.Lock()
	s.jobs[kind] = append(s.jobs[kind], job)
	s.appendLogLocked(kind, fmt.Sprintf("%s started", job.label()))
	s.mu.Unlock()
	s.logger.Info("job started",
		logging.F("kind", string(kind)),
		logging.F("job_id", job.record.ID),
		logging.F("model", job.record.Model),
	)
	writeJSON(w, http.StatusAccepted, types.StartJobResponse{JobID: job.record.ID})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	kind := kindFrom(r)
	s.mu.Lock()
	s.advanceLocked(kind)
	records := s.recordsLocked(kind)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	kind := kindFrom(r)
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs[kind] {
		if job.record.ID == id {
			job.cancel(s.now())
			s.appendLogLocked(kind, job.label()+" cancelled")
			writeJSON(w, http.StatusOK, job.record)
			return
		}
	}
	writeError(w, http.StatusNotFound, "job not found")
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	kind := kindFrom(r)
	s.mu.Lock()
	s.advanceLocked(kind)
	records := s.recordsLocked(kind)
	s.mu.Unlock()

	var buf bytes.Buffer
	out := csv.NewWriter(&buf)
	_ = out.Write([]string{"job_id", "provider", "model", "status", "processed", "total", "error"})
	for _, record := range records {
		_ = out.Write([]string{
			record.ID,
			record.Provider,
			record.Model,
			string(record.Status),
			strconv.Itoa(record.Processed),
			strconv.Itoa(record.Total),
			record.Error,
		})
	}
	out.Flush()
	name := fmt.Sprintf("%s_export_%s.csv", kind, s.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) advanceLocked(kind types.JobKind) {
	now := s.now()
	for _, job := range s.jobs[kind] {
		for _, line := range job.advance(now, s.step) {
			s.appendLogLocked(kind, line)
		}
	}
}

func (s *Server) appendLogLocked(kind types.JobKind, line string) {
	logs := append(s.logs[kind], line)
	if len(logs) > maxLogLines {
		logs = logs[len(logs)-maxLogLines:]
	}
	s.logs[kind] = logs
}

func (s *Server) recordsLocked(kind types.JobKind) []types.JobRecord {
	jobs := s.jobs[kind]
	records := make([]types.JobRecord, 0, len(jobs))
	for _, job := range jobs {
		records = append(records, job.record)
	}
	return records
}

func (s *Server) snapshotLocked(kind types.JobKind) types.StatusSnapshot {
	snapshot := types.StatusSnapshot{Logs: append([]string{}, s.logs[kind]...)}
	for _, job := range s.jobs[kind] {
		snapshot.GlobalProgress.Scraped += job.record.Processed
		snapshot.GlobalProgress.Total += job.record.Total
		if job.record.Status.Terminal() {
			continue
		}
		snapshot.IsRunning = true
		snapshot.CurrentItem = job.record.CurrentItem
		snapshot.CurrentProgress = types.Progress{
			Scraped:    job.record.Processed,
			Total:      job.record.Total,
			ETASeconds: float64(job.record.Total-job.record.Processed) * s.step.Seconds(),
		}
	}
	remaining := snapshot.GlobalProgress.Total - snapshot.GlobalProgress.Scraped
	if snapshot.IsRunning && remaining > 0 {
		snapshot.GlobalProgress.ETASeconds = float64(remaining) * s.step.Seconds()
	}
	return snapshot
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
