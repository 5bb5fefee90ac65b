package sqlite

import (
	"database/sql"
	"time"

	"courseplanner/internal"
)

type Course struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Code          string `db:"code"`
	Term          string `db:"term"`
	RawOutlineSHA string `db:"raw_outline_sha"`
	CreatedAt     string `db:"created_at"`
}

func (c Course) Convert() *internal.Course {
	return &internal.Course{
		ID:            c.ID,
		Name:          c.Name,
		Code:          c.Code,
		Term:          c.Term,
		RawOutlineSHA: c.RawOutlineSHA,
	}
}

type Event struct {
	ID         string         `db:"id"`
	CourseID   string         `db:"course_id"`
	Title      string         `db:"title"`
	Type       string         `db:"type"`
	StartAt    string         `db:"start_at"`
	EndAt      sql.NullString `db:"end_at"`
	Location   sql.NullString `db:"location"`
	Notes      sql.NullString `db:"notes"`
	SourcePage int            `db:"source_page"`
}

// Convert decodes a stored row into the domain event. Timestamps are
// decoded tolerantly: a corrupted start leaves a zero Start, which the
// layout layer reports as excluded rather than failing the read.
func (e Event) Convert() internal.Event {
	return internal.Event{
		ID:         e.ID,
		CourseID:   e.CourseID,
		Title:      e.Title,
		Type:       e.Type,
		Start:      internal.ParseWireTime(e.StartAt),
		End:        internal.ParseWireTime(e.EndAt.String),
		Location:   e.Location.String,
		Notes:      e.Notes.String,
		SourcePage: e.SourcePage,
	}
}

func newEventRow(ev internal.Event) Event {
	row := Event{
		ID:         ev.ID,
		CourseID:   ev.CourseID,
		Title:      ev.Title,
		Type:       ev.Type,
		StartAt:    ev.Start.Format(time.RFC3339),
		SourcePage: ev.SourcePage,
	}
	if !ev.End.IsZero() {
		row.EndAt = sql.NullString{String: ev.End.Format(time.RFC3339), Valid: true}
	}
	if ev.Location != "" {
		row.Location = sql.NullString{String: ev.Location, Valid: true}
	}
	if ev.Notes != "" {
		row.Notes = sql.NullString{String: ev.Notes, Valid: true}
	}
	return row
}
