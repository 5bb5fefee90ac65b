// Package server exposes the planner over HTTP: syllabus upload,
// course reads, calendar grids, Google sync and the chat assistant.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"courseplanner/internal"
	"courseplanner/internal/assistant"
	"courseplanner/internal/config"
	"courseplanner/internal/syncer"
)

type Storage interface {
	AddCourse(ctx context.Context, course *internal.Course) error
	Courses(ctx context.Context) ([]*internal.Course, error)
	Course(ctx context.Context, id string) (*internal.Course, error)
	CourseEvents(ctx context.Context, courseID string) ([]internal.Event, error)
	Events(ctx context.Context) ([]internal.Event, error)
	SaveAccount(ctx context.Context, acc *internal.Account) error
	Account(ctx context.Context, platform string) (*internal.Account, error)
	DeleteAccount(ctx context.Context, platform string) error
}

type Extractor interface {
	ExtractCourse(ctx context.Context, pdfBytes []byte) (*internal.Course, error)
}

type CourseSyncer interface {
	SyncCourse(ctx context.Context, course *internal.Course) (*syncer.Report, error)
}

type Chatter interface {
	Chat(ctx context.Context, transcript []assistant.Message) (string, error)
}

type Server struct {
	log       *logrus.Entry
	cfg       *config.Config
	storage   Storage
	extractor Extractor
	syncer    CourseSyncer
	chat      Chatter
	providers internal.Mux

	mux *http.ServeMux
}

func New(log *logrus.Entry, cfg *config.Config, storage Storage, extractor Extractor, sync CourseSyncer, chat Chatter, providers internal.Mux) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	s := &Server{
		log:       log,
		cfg:       cfg,
		storage:   storage,
		extractor: extractor,
		syncer:    sync,
		chat:      chat,
		providers: providers,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler wrapped with CORS for the
// configured frontend origin.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/upload-syllabus", s.handleUploadSyllabus)
	s.mux.HandleFunc("GET /api/courses", s.handleListCourses)
	s.mux.HandleFunc("GET /api/courses/{id}", s.handleGetCourse)
	s.mux.HandleFunc("GET /api/courses/{id}/events", s.handleCourseEvents)
	s.mux.HandleFunc("GET /api/events", s.handleListEvents)

	s.mux.HandleFunc("GET /api/calendar/month", s.handleMonthGrid)
	s.mux.HandleFunc("GET /api/calendar/week", s.handleWeekGrid)

	s.mux.HandleFunc("POST /api/courses/{id}/sync-google", s.handleSyncCourse)
	s.mux.HandleFunc("GET /api/courses/{id}/export.ics", s.handleExportICS)

	s.mux.HandleFunc("GET /api/auth/google/url", s.handleAuthURL)
	s.mux.HandleFunc("GET /api/auth/google/callback", s.handleAuthCallback)
	s.mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	s.mux.HandleFunc("POST /api/chat/calendar", s.handleChat)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// corsMiddleware allows the configured frontend origin plus the usual
// local dev servers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := map[string]bool{
		s.cfg.FrontendOrigin:    true,
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseDateParam reads a ?date=YYYY-MM-DD query value, defaulting to
// the current day in loc when absent. ok is false on a malformed value.
func parseDateParam(r *http.Request, loc *time.Location) (t time.Time, ok bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return internal.Today(loc).Time, true
	}
	d, err := internal.ParseDate(raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d.Time, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
