package internal

import "time"

// Event is a single dated occurrence extracted from a course outline.
// Events are immutable once extracted; there is no in-app editing.
//
// End is the zero time when the outline gave no end; consumers decide
// what a missing end means (the layout engine clamps to a minimum
// visible duration, the sync engine assumes one hour).
//
// End >= Start is deliberately not enforced: downstream layers must
// tolerate inverted ranges rather than reject them.
type Event struct {
	ID       string
	CourseID string

	Title string
	// Type is the free-text label produced by extraction
	// (e.g. "lecture", "Midterm 1"). Use Categorize to map it onto the
	// fixed Category set.
	Type string

	Start time.Time
	End   time.Time

	Location   string
	Notes      string
	SourcePage int
}

// Duration returns End-Start, or def when End is absent or not after Start.
func (e Event) Duration(def time.Duration) time.Duration {
	if e.End.IsZero() || !e.End.After(e.Start) {
		return def
	}
	return e.End.Sub(e.Start)
}

// Course is a parsed syllabus and the events extracted from it.
type Course struct {
	ID   string
	Name string
	Code string
	Term string

	// RawOutlineSHA fingerprints the uploaded PDF.
	RawOutlineSHA string

	Events []Event
}

// ParseWireTime decodes an RFC3339 timestamp coming from the wire or
// from storage. Malformed values decode to the zero time instead of an
// error so a single bad field never takes down a whole request; callers
// count zero-time events as excluded from placement.
func ParseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
