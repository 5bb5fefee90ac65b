// Package layout turns a flat event list plus a reference date into a
// renderable month or week grid. It is a pure transformation: no I/O,
// no mutation of inputs, and total over every input shape: malformed
// events are excluded and counted, never a panic.
package layout

import (
	"time"

	"courseplanner/internal"
)

const (
	// MonthGridCells is the fixed cell count of a month grid: 6 weeks
	// of 7 days, padded with adjacent-month days, so the grid never
	// changes size across months.
	MonthGridCells = 42

	// MonthCellEventCap bounds how many events a month cell surfaces
	// directly; the rest becomes an overflow count.
	MonthCellEventCap = 3

	// MinEventMinutes is the minimum visible duration of a week-view
	// block. Zero-duration and inverted ranges clamp to this so short
	// events stay clickable.
	MinEventMinutes = 30
)

// Config carries the knobs a grid computation depends on. The zero
// value is usable: weeks start on Sunday, dates are interpreted in
// time.Local, and "today" is the wall clock.
type Config struct {
	// WeekStart is the first weekday of a grid row. Default Sunday.
	WeekStart time.Weekday
	// Location is the timezone used for day bucketing.
	Location *time.Location
	// Today overrides the current date, for stable output in tests.
	Today time.Time
}

func (c Config) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

func (c Config) today() time.Time {
	t := c.Today
	if t.IsZero() {
		t = time.Now()
	}
	return dateOnly(t.In(c.location()))
}

// MonthCell is one day cell of a month grid.
type MonthCell struct {
	Date time.Time
	// InMonth is true for days belonging to the reference month, false
	// for the leading/trailing padding days.
	InMonth bool
	Today   bool
	// Events holds at most MonthCellEventCap events, in input order.
	Events []internal.Event
	// Overflow is how many further events fall on this day.
	Overflow int
}

// MonthGrid is the 6x7 cell window covering a calendar month.
type MonthGrid struct {
	Cells []MonthCell
	// Excluded counts events that could not be placed because their
	// start timestamp was missing or unparseable.
	Excluded int
}

// WeekEvent is an event positioned inside a week-view day column.
type WeekEvent struct {
	internal.Event
	// OffsetMinutes is minutes between midnight and the event start.
	OffsetMinutes int
	// DurationMinutes is minutes between start and end, clamped to at
	// least MinEventMinutes.
	DurationMinutes int
}

// WeekDay is one day column of a week grid. Unlike month cells, week
// days carry every matching event.
type WeekDay struct {
	Date   time.Time
	Today  bool
	Events []WeekEvent
}

// WeekGrid is the 7-day window covering the week of the reference date.
type WeekGrid struct {
	Days     []WeekDay
	Excluded int
}

// MonthGrid computes the 42-cell grid for the month containing current.
// Cells run from the week start on or before the 1st of the month;
// dates increase strictly by one day. Each event lands in exactly the
// cell matching its start date (time of day ignored), or nowhere if its
// start is unplaceable.
func (c Config) MonthGrid(current time.Time, events []internal.Event) MonthGrid {
	loc := c.location()
	today := c.today()

	monthStart := time.Date(current.Year(), current.Month(), 1, 0, 0, 0, 0, loc)
	gridStart := c.weekStartOf(monthStart)

	byDay, excluded := bucketByDay(events, loc)

	grid := MonthGrid{
		Cells:    make([]MonthCell, 0, MonthGridCells),
		Excluded: excluded,
	}
	for i := 0; i < MonthGridCells; i++ {
		date := gridStart.AddDate(0, 0, i)
		cell := MonthCell{
			Date:    date,
			InMonth: date.Month() == monthStart.Month() && date.Year() == monthStart.Year(),
			Today:   date.Equal(today),
		}
		dayEvents := byDay[dayKey(date)]
		if len(dayEvents) > MonthCellEventCap {
			cell.Events = dayEvents[:MonthCellEventCap:MonthCellEventCap]
			cell.Overflow = len(dayEvents) - MonthCellEventCap
		} else {
			cell.Events = dayEvents
		}
		grid.Cells = append(grid.Cells, cell)
	}
	return grid
}

// WeekGrid computes the 7-day grid for the week containing current,
// positioning every event on its day by minutes from midnight.
func (c Config) WeekGrid(current time.Time, events []internal.Event) WeekGrid {
	loc := c.location()
	today := c.today()
	weekStart := c.weekStartOf(dateOnly(current.In(loc)))

	byDay, excluded := bucketByDay(events, loc)

	grid := WeekGrid{
		Days:     make([]WeekDay, 0, 7),
		Excluded: excluded,
	}
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i)
		day := WeekDay{
			Date:  date,
			Today: date.Equal(today),
		}
		for _, ev := range byDay[dayKey(date)] {
			day.Events = append(day.Events, positionEvent(ev, loc))
		}
		grid.Days = append(grid.Days, day)
	}
	return grid
}

func positionEvent(ev internal.Event, loc *time.Location) WeekEvent {
	start := ev.Start.In(loc)
	midnight := dateOnly(start)

	duration := int(ev.Duration(0) / time.Minute)
	if duration < MinEventMinutes {
		duration = MinEventMinutes
	}
	return WeekEvent{
		Event:           ev,
		OffsetMinutes:   int(start.Sub(midnight) / time.Minute),
		DurationMinutes: duration,
	}
}

// weekStartOf returns the configured week start on or before t. t must
// already be a midnight value in the target location.
func (c Config) weekStartOf(t time.Time) time.Time {
	back := int(t.Weekday() - c.WeekStart)
	if back < 0 {
		back += 7
	}
	return t.AddDate(0, 0, -back)
}

// bucketByDay groups placeable events by their start date, preserving
// input order within each day, and counts the unplaceable rest.
func bucketByDay(events []internal.Event, loc *time.Location) (map[string][]internal.Event, int) {
	byDay := make(map[string][]internal.Event)
	excluded := 0
	for _, ev := range events {
		if ev.Start.IsZero() {
			excluded++
			continue
		}
		key := dayKey(ev.Start.In(loc))
		byDay[key] = append(byDay[key], ev)
	}
	return byDay, excluded
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format(internal.DateFormat)
}
