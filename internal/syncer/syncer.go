// Package syncer pushes a course's extracted events into the user's
// remote calendar. Weekly activities (classes, tutorials, labs) are
// expanded into one occurrence per week up to the course's exam
// horizon; assessments sync as single events.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"

	"courseplanner/internal"
)

// ErrNotConnected is returned when no calendar account is stored.
var ErrNotConnected = errors.New("syncer: calendar account not connected")

// Storage is the subset of persistence the syncer needs.
type Storage interface {
	Account(ctx context.Context, platform string) (*internal.Account, error)
	ProviderEventID(ctx context.Context, appEventID string) (string, error)
	LinkEvent(ctx context.Context, appEventID, providerID, courseID string) error
}

// Result is the outcome of pushing one occurrence.
type Result struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"` // created | updated | error
	GCalID  string `json:"gcal_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes a whole course sync.
type Report struct {
	CourseID string   `json:"course_id"`
	Synced   []Result `json:"synced"`
}

type Syncer struct {
	log     *logrus.Entry
	mux     internal.Mux
	storage Storage

	// Platform is the provider to push to; only "google" is registered
	// today.
	Platform string
	// CalendarID is the remote calendar to write into.
	CalendarID string
}

func New(log *logrus.Entry, mux internal.Mux, storage Storage) *Syncer {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Syncer{
		log:        log,
		mux:        mux,
		storage:    storage,
		Platform:   "google",
		CalendarID: "primary",
	}
}

// SyncCourse pushes every event of the course. Individual occurrence
// failures are recorded in the report; only missing credentials or an
// unusable provider abort the whole sync.
func (s *Syncer) SyncCourse(ctx context.Context, course *internal.Course) (*Report, error) {
	provider, err := s.mux.Get(s.Platform)
	if err != nil {
		return nil, err
	}
	acc, err := s.storage.Account(ctx, s.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	report := &Report{CourseID: course.ID, Synced: []Result{}}
	horizon := examHorizon(course.Events)

	for _, ev := range course.Events {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if ev.Start.IsZero() {
			report.Synced = append(report.Synced, Result{
				EventID: ev.ID,
				Status:  "error",
				Error:   "event has no start time",
			})
			continue
		}

		switch internal.Categorize(ev.Type) {
		case internal.CategoryLecture, internal.CategoryLab:
			duration := ev.Duration(time.Hour)
			for idx, occStart := range weeklyOccurrences(ev.Start, horizon) {
				appEventID := fmt.Sprintf("%s_wk%d", ev.ID, idx)
				res := s.pushOccurrence(ctx, provider, acc, ev, appEventID, occStart, occStart.Add(duration))
				report.Synced = append(report.Synced, res)
			}
		default:
			res := s.pushOccurrence(ctx, provider, acc, ev, ev.ID, ev.Start, ev.End)
			report.Synced = append(report.Synced, res)
		}
	}

	s.log.WithFields(logrus.Fields{
		"account":     acc.ID(),
		"course_id":   course.ID,
		"occurrences": len(report.Synced),
	}).Info("course sync finished")
	return report, nil
}

func (s *Syncer) pushOccurrence(
	ctx context.Context,
	provider internal.Provider,
	acc *internal.Account,
	ev internal.Event,
	appEventID string,
	start, end time.Time,
) Result {
	body := &internal.PushEvent{
		Summary:     ev.Title,
		Description: fmt.Sprintf("%s (Course ID: %s)", strings.ToUpper(ev.Type), ev.CourseID),
		Location:    ev.Location,
		Start:       start,
		End:         end,
		Assessment:  internal.Categorize(ev.Type).Assessment(),
		CourseID:    ev.CourseID,
		AppEventID:  appEventID,
	}

	remoteID, err := s.storage.ProviderEventID(ctx, appEventID)
	if err != nil {
		return Result{EventID: appEventID, Status: "error", Error: err.Error()}
	}
	if remoteID == "" {
		// Not linked locally; the event may still exist remotely from
		// an earlier database, so check before inserting a duplicate.
		existing, err := provider.FindByAppEventID(ctx, acc, s.CalendarID, appEventID)
		if err != nil {
			s.log.WithError(err).WithField("app_event_id", appEventID).Warn("remote lookup failed")
		} else if existing != nil {
			remoteID = existing.ID
		}
	}

	var (
		remote *internal.RemoteEvent
		status string
	)
	if remoteID != "" {
		remote, err = provider.UpdateEvent(ctx, acc, s.CalendarID, remoteID, body)
		status = "updated"
	} else {
		remote, err = provider.CreateEvent(ctx, acc, s.CalendarID, body)
		status = "created"
	}
	if err != nil {
		s.log.WithError(err).WithField("app_event_id", appEventID).Warn("push failed")
		return Result{EventID: appEventID, Status: "error", Error: err.Error()}
	}

	if err := s.storage.LinkEvent(ctx, appEventID, remote.ID, ev.CourseID); err != nil {
		return Result{EventID: appEventID, Status: "error", GCalID: remote.ID, Error: err.Error()}
	}
	return Result{EventID: appEventID, Status: status, GCalID: remote.ID}
}

// examHorizon returns the upper bound for weekly expansion: the latest
// final/exam start, or the latest event start when the course lists no
// final.
func examHorizon(events []internal.Event) time.Time {
	var horizon time.Time
	for _, ev := range events {
		if ev.Start.IsZero() {
			continue
		}
		if internal.Categorize(ev.Type) == internal.CategoryFinal && ev.Start.After(horizon) {
			horizon = ev.Start
		}
	}
	if !horizon.IsZero() {
		return horizon
	}
	for _, ev := range events {
		if ev.Start.After(horizon) {
			horizon = ev.Start
		}
	}
	return horizon
}

// weeklyOccurrences expands a weekly pattern from start through until
// (inclusive). A horizon before the start yields just the start.
func weeklyOccurrences(start, until time.Time) []time.Time {
	if !until.After(start) {
		return []time.Time{start}
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Dtstart: start,
		Until:   until,
	})
	if err != nil {
		return []time.Time{start}
	}
	occs := r.All()
	if len(occs) == 0 {
		return []time.Time{start}
	}
	return occs
}
