package internal

import "time"

const DateFormat = "2006-01-02"

// Date is a day-granularity point in time. The zero Date means "not
// set" and callers usually substitute today.
type Date struct {
	time.Time
}

func Today(loc *time.Location) Date {
	return NewDateFromTime(time.Now().In(loc))
}

func NewDateFromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day(), t.Location())
}

func NewDate(year int, month time.Month, day int, loc *time.Location) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

func ParseDate(value string, loc *time.Location) (Date, error) {
	t, err := time.ParseInLocation(DateFormat, value, loc)
	if err != nil {
		return Date{}, err
	}
	return NewDateFromTime(t), nil
}

func (d Date) String() string {
	return d.Format(DateFormat)
}
