package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"courseplanner/internal"
)

const DriverName = "sqlite3"

// ErrNotFound is returned when a course or account does not exist.
var ErrNotFound = errors.New("sqlite: not found")

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sql.DB) *Storage {
	s := &Storage{
		db: sqlx.NewDb(db, DriverName),
	}
	err := s.RunMigrations()
	if err != nil {
		panic(fmt.Sprintf("sqlite: running migrations: %v", err))
	}
	return s
}

// AddCourse persists a course together with its events in one
// transaction.
func (s Storage) AddCourse(ctx context.Context, course *internal.Course) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO courses (id, name, code, term, raw_outline_sha, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, course.ID, course.Name, course.Code, course.Term, course.RawOutlineSHA,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}

	for _, ev := range course.Events {
		row := newEventRow(ev)
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO events (id, course_id, title, type, start_at, end_at, location, notes, source_page)
			VALUES (:id, :course_id, :title, :type, :start_at, :end_at, :location, :notes, :source_page)
		`, row)
		if err != nil {
			return fmt.Errorf("inserting event %s: %w", ev.ID, err)
		}
	}
	return tx.Commit()
}

func (s Storage) Courses(ctx context.Context) ([]*internal.Course, error) {
	var rows []Course
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, code, term, raw_outline_sha, created_at
		FROM courses ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}

	res := make([]*internal.Course, 0, len(rows))
	for _, row := range rows {
		course := row.Convert()
		course.Events, err = s.CourseEvents(ctx, course.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, course)
	}
	return res, nil
}

func (s Storage) Course(ctx context.Context, id string) (*internal.Course, error) {
	var row Course
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, code, term, raw_outline_sha, created_at
		FROM courses WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	course := row.Convert()
	course.Events, err = s.CourseEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (s Storage) CourseEvents(ctx context.Context, courseID string) ([]internal.Event, error) {
	var rows []Event
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, course_id, title, type, start_at, end_at, location, notes, source_page
		FROM events WHERE course_id = ? ORDER BY start_at
	`, courseID)
	if err != nil {
		return nil, err
	}
	return convertEvents(rows), nil
}

func (s Storage) Events(ctx context.Context) ([]internal.Event, error) {
	var rows []Event
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, course_id, title, type, start_at, end_at, location, notes, source_page
		FROM events ORDER BY start_at
	`)
	if err != nil {
		return nil, err
	}
	return convertEvents(rows), nil
}

func convertEvents(rows []Event) []internal.Event {
	events := make([]internal.Event, len(rows))
	for i, row := range rows {
		events[i] = row.Convert()
	}
	return events
}

// SaveAccount stores (or replaces) the single account for a platform.
func (s Storage) SaveAccount(ctx context.Context, acc *internal.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (platform, email, auth) VALUES (?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET email=excluded.email, auth=excluded.auth
	`, acc.Platform, acc.Email, acc.Auth)
	return err
}

func (s Storage) Account(ctx context.Context, platform string) (*internal.Account, error) {
	var acc internal.Account
	err := s.db.QueryRowxContext(ctx, `
		SELECT platform, email, auth FROM accounts WHERE platform = ?
	`, platform).Scan(&acc.Platform, &acc.Email, &acc.Auth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s Storage) DeleteAccount(ctx context.Context, platform string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE platform = ?`, platform)
	return err
}

// ProviderEventID returns the remote event id previously linked to an
// app event occurrence, or "" when none is known.
func (s Storage) ProviderEventID(ctx context.Context, appEventID string) (string, error) {
	var providerID string
	err := s.db.GetContext(ctx, &providerID, `
		SELECT provider_id FROM event_links WHERE app_event_id = ?
	`, appEventID)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	return providerID, err
}

func (s Storage) LinkEvent(ctx context.Context, appEventID, providerID, courseID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_links (app_event_id, provider_id, course_id)
		VALUES (?, ?, ?)
		ON CONFLICT(app_event_id) DO UPDATE SET provider_id=excluded.provider_id
	`, appEventID, providerID, courseID)
	return err
}

func (s Storage) UnlinkProviderEvent(ctx context.Context, providerID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM event_links WHERE provider_id = ?
	`, providerID)
	return err
}
