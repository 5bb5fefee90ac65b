package google

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"courseplanner/internal"
)

type eventOrError struct {
	e   *internal.RemoteEvent
	err error
}

type eventIterator struct {
	events  chan eventOrError
	current eventOrError
}

func newEventIterator() *eventIterator {
	return &eventIterator{
		events: make(chan eventOrError),
	}
}

func (it *eventIterator) Next() (ok bool) {
	it.current, ok = <-it.events
	if it.current.err != nil {
		return false
	}
	return ok
}

func (it *eventIterator) Event() *internal.RemoteEvent {
	c := it.current
	if c.e == nil && c.err == nil {
		panic("google: Event() called before Next()")
	}
	return c.e
}

func (it *eventIterator) Err() error {
	return it.current.err
}

func newRemoteEvent(event *calendar.Event) *internal.RemoteEvent {
	return &internal.RemoteEvent{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start:       parseEventTime(event.Start),
		End:         parseEventTime(event.End),
		HTMLLink:    event.HtmlLink,
	}
}

// parseEventTime tolerates both timed and all-day remote events.
func parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		t, _ := time.Parse(time.RFC3339, edt.DateTime)
		return t
	}
	if edt.Date != "" {
		t, _ := time.Parse("2006-01-02", edt.Date)
		return t
	}
	return time.Time{}
}
