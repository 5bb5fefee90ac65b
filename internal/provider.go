package internal

import (
	"context"
	"time"
)

// Mux resolves a calendar platform name ("google"; "outlook" and
// "apple" are planned) to its Provider.
type Mux interface {
	Get(platform string) (Provider, error)
	Providers() []string
}

// Iterator walks a paged listing of remote events.
type Iterator interface {
	Next() bool
	Event() *RemoteEvent
	Err() error
}

// EventQuery narrows a remote listing.
type EventQuery struct {
	From       time.Time
	To         time.Time
	SearchText string
	MaxResults int64
}

// PushEvent is the shape of an event pushed to a remote calendar.
type PushEvent struct {
	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time

	// Assessment events get a highlight color on the remote side.
	Assessment bool

	// CourseID and AppEventID are stored as private metadata on the
	// remote event so occurrences can be found and updated on re-sync.
	CourseID   string
	AppEventID string

	// Recurrence holds RFC 5545 RRULE lines, already validated.
	Recurrence []string
}

// RemoteEvent is an event as it exists on the remote calendar.
type RemoteEvent struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	HTMLLink    string
}

// Provider is a remote calendar platform.
type Provider interface {
	// AuthURL returns the URL a browser should visit to grant access.
	AuthURL(state string) string
	// Exchange turns an OAuth authorization code into serialized
	// credentials suitable for Account.Auth.
	Exchange(ctx context.Context, code string) ([]byte, error)
	// Login runs the local-callback browser flow used by the CLI.
	Email(ctx context.Context, auth []byte) (string, error)
	Login(ctx context.Context, openURL func(authURL string)) ([]byte, error)

	Events(ctx context.Context, acc *Account, calendarID string, q EventQuery) (Iterator, error)
	FindByAppEventID(ctx context.Context, acc *Account, calendarID, appEventID string) (*RemoteEvent, error)
	GetEvent(ctx context.Context, acc *Account, calendarID, id string) (*RemoteEvent, error)
	CreateEvent(ctx context.Context, acc *Account, calendarID string, ev *PushEvent) (*RemoteEvent, error)
	UpdateEvent(ctx context.Context, acc *Account, calendarID, id string, ev *PushEvent) (*RemoteEvent, error)
	MoveEvent(ctx context.Context, acc *Account, calendarID, id string, start, end time.Time) (*RemoteEvent, error)
	DeleteEvent(ctx context.Context, acc *Account, calendarID, id string) error
}
