package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// =============================================================================
// DATES - Calendar days normalized to UTC midnight
// =============================================================================

func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the clock part of t, keeping the calendar day as seen in t's
// own location.
func DateOf(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q: %v", ErrInvalidInput, s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// DaysInclusive counts calendar days in [from, to]. Returns 0 when to < from.
func DaysInclusive(from, to time.Time) int {
	f, t := DateOf(from), DateOf(to)
	if t.Before(f) {
		return 0
	}
	return int(t.Sub(f).Hours()/24) + 1
}

func StartOfYear(year int) time.Time { return NewDate(year, time.January, 1) }
func EndOfYear(year int) time.Time { return NewDate(year, time.December, 31) }

// =============================================================================
// TIME OF DAY - Minutes since midnight, "HH:MM" on the wire
// =============================================================================

type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// TimeOfDayOf returns the wall-clock minute of t. Seconds are truncated.
func TimeOfDayOf(t time.Time) TimeOfDay { return NewTimeOfDay(t.Hour(), t.Minute()) }

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Hour() int { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }
func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

// AddMinutes offsets the time of day. The result may fall outside a single
// day; it is only ever compared, never rendered.
func (t TimeOfDay) AddMinutes(n int) TimeOfDay { return t + TimeOfDay(n) }

// On places the time of day on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time of day as "HH:MM" text.
func (t TimeOfDay) Value() (driver.Value, error) { return t.String(), nil }

func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
	case []byte:
		return t.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
	return nil
}
