package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/sirupsen/logrus"

	"courseplanner/internal"
	"courseplanner/internal/layout"
	"courseplanner/internal/sqlite"
	"courseplanner/internal/syncer"
)

// maxUploadBytes bounds syllabus uploads; course outlines are small.
const maxUploadBytes = 20 << 20

func (s *Server) handleUploadSyllabus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "application/pdf" {
		writeError(w, http.StatusBadRequest, "Please upload a PDF file")
		return
	}

	pdfBytes, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}

	course, err := s.extractor.ExtractCourse(r.Context(), pdfBytes)
	if err != nil {
		s.log.WithError(err).Error("syllabus extraction failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.storage.AddCourse(r.Context(), course); err != nil {
		s.log.WithError(err).Error("persisting extracted course failed")
		writeError(w, http.StatusInternalServerError, "failed to store course")
		return
	}

	s.log.WithFields(logrus.Fields{
		"course_id": course.ID,
		"file":      header.Filename,
		"events":    len(course.Events),
	}).Info("syllabus uploaded")
	writeJSON(w, http.StatusOK, newCourseDTO(course))
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.storage.Courses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}
	dtos := make([]courseDTO, 0, len(courses))
	for _, c := range courses {
		dtos = append(dtos, newCourseDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, ok := s.findCourse(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newCourseDTO(course))
}

func (s *Server) handleCourseEvents(w http.ResponseWriter, r *http.Request) {
	course, ok := s.findCourse(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newEventDTOs(course.Events))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.storage.Events(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, newEventDTOs(events))
}

func (s *Server) handleMonthGrid(w http.ResponseWriter, r *http.Request) {
	date, events, ok := s.gridInputs(w, r)
	if !ok {
		return
	}
	grid := s.layoutConfig().MonthGrid(date, events)
	writeJSON(w, http.StatusOK, newMonthGridDTO(grid))
}

func (s *Server) handleWeekGrid(w http.ResponseWriter, r *http.Request) {
	date, events, ok := s.gridInputs(w, r)
	if !ok {
		return
	}
	grid := s.layoutConfig().WeekGrid(date, events)
	writeJSON(w, http.StatusOK, newWeekGridDTO(grid))
}

func (s *Server) layoutConfig() layout.Config {
	return layout.Config{
		WeekStart: s.cfg.WeekStartDay(),
		Location:  s.cfg.Location(),
	}
}

// gridInputs resolves the shared ?date= and ?course_id= parameters of
// the calendar grid endpoints.
func (s *Server) gridInputs(w http.ResponseWriter, r *http.Request) (time.Time, []internal.Event, bool) {
	date, ok := parseDateParam(r, s.cfg.Location())
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, nil, false
	}

	var (
		events []internal.Event
		err    error
	)
	if courseID := r.URL.Query().Get("course_id"); courseID != "" {
		if _, err = s.storage.Course(r.Context(), courseID); errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Course not found")
			return time.Time{}, nil, false
		} else if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load course")
			return time.Time{}, nil, false
		}
		events, err = s.storage.CourseEvents(r.Context(), courseID)
	} else {
		events, err = s.storage.Events(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return time.Time{}, nil, false
	}
	return date, events, true
}

func (s *Server) handleSyncCourse(w http.ResponseWriter, r *http.Request) {
	course, ok := s.findCourse(w, r)
	if !ok {
		return
	}

	report, err := s.syncer.SyncCourse(r.Context(), course)
	switch {
	case errors.Is(err, syncer.ErrNotConnected):
		writeError(w, http.StatusUnauthorized, "Google Calendar is not connected")
		return
	case err != nil:
		s.log.WithError(err).WithField("course_id", course.ID).Error("course sync failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	course, ok := s.findCourse(w, r)
	if !ok {
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//courseplanner//EN")

	now := time.Now()
	for _, ev := range course.Events {
		if ev.Start.IsZero() {
			continue
		}
		vevent := cal.AddEvent(ev.ID)
		vevent.SetDtStampTime(now)
		vevent.SetStartAt(ev.Start)
		vevent.SetEndAt(ev.Start.Add(ev.Duration(time.Hour)))
		vevent.SetSummary(eventSummary(course, ev))
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
		if ev.Notes != "" {
			vevent.SetDescription(ev.Notes)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", course.ID+".ics"))
	_, _ = io.WriteString(w, cal.Serialize())
}

func eventSummary(course *internal.Course, ev internal.Event) string {
	if course.Code == "" {
		return ev.Title
	}
	return strings.TrimSpace(course.Code + " " + ev.Title)
}

// findCourse resolves the {id} path value, writing the error response
// itself when the course cannot be loaded.
func (s *Server) findCourse(w http.ResponseWriter, r *http.Request) (*internal.Course, bool) {
	course, err := s.storage.Course(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		writeError(w, http.StatusNotFound, "Course not found")
		return nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to load course")
		return nil, false
	}
	return course, true
}
