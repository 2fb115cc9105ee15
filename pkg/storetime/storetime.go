// Package storetime answers "what day is it at the shop", which decides
// whether a sale price still applies.
package storetime

import "time"

// Clock reports the current instant in the store time zone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a clock for loc; nil means UTC.
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{loc: loc, now: time.Now}
}

// Fixed always reports t, converted to loc. Used by tests.
func Fixed(t time.Time, loc *time.Location) Clock {
	c := New(loc)
	c.now = func() time.Time { return t }
	return c
}

// Now is the current time in the store zone.
func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().In(c.location())
}

// Today is midnight of the current store-local calendar date.
func (c Clock) Today() time.Time {
	y, m, d := c.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location())
}

// ParseDate reads a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

func (c Clock) location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}
