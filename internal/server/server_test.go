package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"courseplanner/internal"
	"courseplanner/internal/assistant"
	"courseplanner/internal/config"
	"courseplanner/internal/sqlite"
	"courseplanner/internal/syncer"
)

type stubStorage struct {
	courses  map[string]*internal.Course
	account  *internal.Account
	added    []*internal.Course
	deleted  bool
	saveFail bool
}

func (s *stubStorage) AddCourse(ctx context.Context, course *internal.Course) error {
	if s.saveFail {
		return errors.New("disk full")
	}
	s.added = append(s.added, course)
	if s.courses == nil {
		s.courses = map[string]*internal.Course{}
	}
	s.courses[course.ID] = course
	return nil
}

func (s *stubStorage) Courses(ctx context.Context) ([]*internal.Course, error) {
	out := make([]*internal.Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubStorage) Course(ctx context.Context, id string) (*internal.Course, error) {
	c, ok := s.courses[id]
	if !ok {
		return nil, sqlite.ErrNotFound
	}
	return c, nil
}

func (s *stubStorage) CourseEvents(ctx context.Context, courseID string) ([]internal.Event, error) {
	c, ok := s.courses[courseID]
	if !ok {
		return nil, nil
	}
	return c.Events, nil
}

func (s *stubStorage) Events(ctx context.Context) ([]internal.Event, error) {
	var out []internal.Event
	for _, c := range s.courses {
		out = append(out, c.Events...)
	}
	return out, nil
}

func (s *stubStorage) SaveAccount(ctx context.Context, acc *internal.Account) error {
	s.account = acc
	return nil
}

func (s *stubStorage) Account(ctx context.Context, platform string) (*internal.Account, error) {
	if s.account == nil {
		return nil, sqlite.ErrNotFound
	}
	return s.account, nil
}

func (s *stubStorage) DeleteAccount(ctx context.Context, platform string) error {
	s.account = nil
	s.deleted = true
	return nil
}

type stubExtractor struct {
	course *internal.Course
	err    error
}

func (e *stubExtractor) ExtractCourse(ctx context.Context, pdfBytes []byte) (*internal.Course, error) {
	return e.course, e.err
}

type stubSyncer struct {
	report *syncer.Report
	err    error
}

func (s *stubSyncer) SyncCourse(ctx context.Context, course *internal.Course) (*syncer.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

type stubChatter struct {
	reply string
	err   error
}

func (c *stubChatter) Chat(ctx context.Context, transcript []assistant.Message) (string, error) {
	return c.reply, c.err
}

func testConfig() *config.Config {
	return &config.Config{
		FrontendOrigin: "http://localhost:5173",
		Timezone:       "UTC",
		WeekStart:      "sunday",
		CalendarID:     "primary",
	}
}

func testCourse() *internal.Course {
	start := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	return &internal.Course{
		ID:   "c1",
		Name: "Operating Systems",
		Code: "CS 350",
		Term: "Winter 2025",
		Events: []internal.Event{
			{ID: "e1", CourseID: "c1", Title: "Lecture", Type: "class", Start: start, End: start.Add(50 * time.Minute), Location: "MC 4020"},
			{ID: "e2", CourseID: "c1", Title: "Midterm 1", Type: "midterm", Start: start.AddDate(0, 0, 14)},
		},
	}
}

func newTestServer(t *testing.T, storage *stubStorage, opts ...func(*Server)) *Server {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	srv := New(logrus.NewEntry(log), testConfig(), storage, &stubExtractor{}, &stubSyncer{}, &stubChatter{}, nil)
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target string, body *bytes.Buffer, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubStorage{})
	rec := doRequest(t, srv, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestGetCourseNotFound(t *testing.T) {
	srv := newTestServer(t, &stubStorage{})
	rec := doRequest(t, srv, http.MethodGet, "/api/courses/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetCourse(t *testing.T) {
	course := testCourse()
	srv := newTestServer(t, &stubStorage{courses: map[string]*internal.Course{course.ID: course}})

	rec := doRequest(t, srv, http.MethodGet, "/api/courses/c1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	dto := decodeBody[courseDTO](t, rec)
	if dto.ID != "c1" || dto.Code != "CS 350" || len(dto.Events) != 2 {
		t.Errorf("unexpected course payload: %+v", dto)
	}
	if dto.Events[1].Category != "midterm" {
		t.Errorf("midterm category = %q", dto.Events[1].Category)
	}
	if dto.Events[1].End != "" {
		t.Errorf("open-ended event should omit end, got %q", dto.Events[1].End)
	}
}

func TestMonthGrid(t *testing.T) {
	course := testCourse()
	srv := newTestServer(t, &stubStorage{courses: map[string]*internal.Course{course.ID: course}})

	rec := doRequest(t, srv, http.MethodGet, "/api/calendar/month?date=2025-03-01", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	grid := decodeBody[monthGridDTO](t, rec)
	if len(grid.Cells) != 42 {
		t.Fatalf("got %d cells, want 42", len(grid.Cells))
	}
	placed := 0
	for _, cell := range grid.Cells {
		placed += len(cell.Events)
	}
	if placed != 2 {
		t.Errorf("placed %d events, want 2", placed)
	}
}

func TestMonthGridDefaultDate(t *testing.T) {
	srv := newTestServer(t, &stubStorage{})
	rec := doRequest(t, srv, http.MethodGet, "/api/calendar/month", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	grid := decodeBody[monthGridDTO](t, rec)
	if len(grid.Cells) != 42 {
		t.Fatalf("got %d cells, want 42", len(grid.Cells))
	}
	today := time.Now().UTC().Format(internal.DateFormat)
	found := false
	for _, cell := range grid.Cells {
		if cell.Date == today {
			found = true
			if !cell.Today {
				t.Errorf("cell %s not marked today", cell.Date)
			}
		}
	}
	if !found {
		t.Errorf("grid for the default date does not contain today (%s)", today)
	}
}

func TestMonthGridBadDate(t *testing.T) {
	srv := newTestServer(t, &stubStorage{})
	rec := doRequest(t, srv, http.MethodGet, "/api/calendar/month?date=March+1st", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMonthGridUnknownCourse(t *testing.T) {
	srv := newTestServer(t, &stubStorage{})
	rec := doRequest(t, srv, http.MethodGet, "/api/calendar/month?date=2025-03-01&course_id=nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestWeekGridPositionsEvents(t *testing.T) {
	course := testCourse()
	srv := newTestServer(t, &stubStorage{courses: map[string]*internal.Course{course.ID: course}})

	rec := doRequest(t, srv, http.MethodGet, "/api/calendar/week?date=2025-03-10&course_id=c1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	grid := decodeBody[weekGridDTO](t, rec)
	if len(grid.Days) != 7 {
		t.Fatalf("got %d days, want 7", len(grid.Days))
	}
	// Week of Mar 10 starts Sunday Mar 9; the lecture lands on Monday.
	if grid.Days[0].Date != "2025-03-09" {
		t.Errorf("week starts %s, want 2025-03-09", grid.Days[0].Date)
	}
	monday := grid.Days[1]
	if len(monday.Events) != 1 {
		t.Fatalf("monday has %d events, want 1", len(monday.Events))
	}
	if ev := monday.Events[0]; ev.OffsetMinutes != 600 || ev.DurationMinutes != 50 {
		t.Errorf("lecture position = %d/%d, want 600/50", ev.OffsetMinutes, ev.DurationMinutes)
	}
}

func TestUploadSyllabusRejectsNonPDF(t *testing.T) {
	srv := newTestServer(t, &stubStorage{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("plain text"))
	_ = mw.Close()

	header := http.Header{"Content-Type": []string{mw.FormDataContentType()}}
	rec := doRequest(t, srv, http.MethodPost, "/api/upload-syllabus", &buf, header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadSyllabus(t *testing.T) {
	storage := &stubStorage{}
	course := testCourse()
	srv := newTestServer(t, storage, func(s *Server) {
		s.extractor = &stubExtractor{course: course}
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	ph := textproto.MIMEHeader{}
	ph.Set("Content-Disposition", `form-data; name="file"; filename="outline.pdf"`)
	ph.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(ph)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("%PDF-1.4 fake"))
	_ = mw.Close()

	header := http.Header{"Content-Type": []string{mw.FormDataContentType()}}
	rec := doRequest(t, srv, http.MethodPost, "/api/upload-syllabus", &buf, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(storage.added) != 1 || storage.added[0].ID != course.ID {
		t.Errorf("course was not persisted: %+v", storage.added)
	}
	dto := decodeBody[courseDTO](t, rec)
	if dto.ID != course.ID {
		t.Errorf("response course id = %q, want %q", dto.ID, course.ID)
	}
}

func TestSyncCourseNotConnected(t *testing.T) {
	course := testCourse()
	srv := newTestServer(t, &stubStorage{courses: map[string]*internal.Course{course.ID: course}}, func(s *Server) {
		s.syncer = &stubSyncer{err: syncer.ErrNotConnected}
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/courses/c1/sync-google", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSyncCourse(t *testing.T) {
	course := testCourse()
	report := &syncer.Report{
		CourseID: "c1",
		Synced:   []syncer.Result{{EventID: "e1_wk0", Status: "created", GCalID: "g1"}},
	}
	srv := newTestServer(t, &stubStorage{courses: map[string]*internal.Course{course.ID: course}}, func(s *Server) {
		s.syncer = &stubSyncer{report: report}
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/courses/c1/sync-google", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[syncer.Report](t, rec)
	if got.CourseID != "c1" || len(got.Synced) != 1 || got.Synced[0].Status != "created" {
		t.Errorf("unexpected report: %+v", got)
	}
}

func TestExportICS(t *testing.T) {
	course := testCourse()
	srv := newTestServer(t, &stubStorage{courses: map[string]*internal.Course{course.ID: course}})

	rec := doRequest(t, srv, http.MethodGet, "/api/courses/c1/export.ics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "CS 350 Lecture") {
		t.Errorf("unexpected ICS body:\n%s", body)
	}
}

func TestAuthStatus(t *testing.T) {
	storage := &stubStorage{}
	srv := newTestServer(t, storage)

	rec := doRequest(t, srv, http.MethodGet, "/api/auth/status", nil, nil)
	status := decodeBody[map[string]any](t, rec)
	if status["connected"] != false {
		t.Fatalf("expected disconnected status, got %v", status)
	}

	storage.account = &internal.Account{Platform: "google", Email: "student@example.com"}
	rec = doRequest(t, srv, http.MethodGet, "/api/auth/status", nil, nil)
	status = decodeBody[map[string]any](t, rec)
	if status["connected"] != true || status["email"] != "student@example.com" {
		t.Fatalf("unexpected status: %v", status)
	}
}

func TestLogout(t *testing.T) {
	storage := &stubStorage{account: &internal.Account{Platform: "google"}}
	srv := newTestServer(t, storage)

	rec := doRequest(t, srv, http.MethodPost, "/api/auth/logout", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !storage.deleted {
		t.Error("account was not deleted")
	}
}

func TestChatNotConnected(t *testing.T) {
	srv := newTestServer(t, &stubStorage{}, func(s *Server) {
		s.chat = &stubChatter{err: assistant.ErrNotConnected}
	})

	body := bytes.NewBufferString(`{"messages": [{"role": "user", "content": "hi"}]}`)
	rec := doRequest(t, srv, http.MethodPost, "/api/chat/calendar", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestChat(t *testing.T) {
	srv := newTestServer(t, &stubStorage{}, func(s *Server) {
		s.chat = &stubChatter{reply: "Moved your midterm."}
	})

	body := bytes.NewBufferString(`{"messages": [{"role": "user", "content": "move my midterm"}]}`)
	rec := doRequest(t, srv, http.MethodPost, "/api/chat/calendar", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[map[string]string](t, rec)
	if resp["reply"] != "Moved your midterm." {
		t.Errorf("reply = %q", resp["reply"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, &stubStorage{})

	header := http.Header{"Origin": []string{"http://localhost:5173"}}
	rec := doRequest(t, srv, http.MethodGet, "/api/courses", nil, header)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}

	header = http.Header{"Origin": []string{"https://evil.example.com"}}
	rec = doRequest(t, srv, http.MethodGet, "/api/courses", nil, header)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow-origin for foreign origin: %q", got)
	}
}
