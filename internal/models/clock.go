package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day stored as minutes since midnight.
type ClockTime int

// MinutesPerDay bounds every ClockTime; 24:00 is allowed as an end time.
const MinutesPerDay = 24 * 60

// NewClockTime builds a ClockTime from hour and minute.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime accepts "HH:MM" or "HH:MM:SS". Seconds are dropped.
func ParseClockTime(raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if len(parts) == 3 {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return 0, fmt.Errorf("invalid second in %q", raw)
		}
	}
	if minute < 0 || minute > 59 || hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time %q out of range", raw)
	}
	return NewClockTime(hour, minute), nil
}

// MustClockTime parses raw and panics on error. Intended for tests and constants.
func MustClockTime(raw string) ClockTime {
	t, err := ParseClockTime(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Hour returns the hour component.
func (t ClockTime) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t ClockTime) Minute() int { return int(t) % 60 }

// Add returns t shifted by d, truncated to whole minutes.
func (t ClockTime) Add(d time.Duration) ClockTime {
	return t + ClockTime(d/time.Minute)
}

// Sub returns the duration between t and u.
func (t ClockTime) Sub(u ClockTime) time.Duration {
	return time.Duration(t-u) * time.Minute
}

// String renders the time as HH:MM.
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalJSON encodes the time as "HH:MM".
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM" or "HH:MM:SS".
func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time in a Postgres TIME column.
func (t ClockTime) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute()), nil
}

// Scan reads a TIME column. lib/pq returns TIME as text; some drivers return
// time.Time anchored at 0000-01-01.
func (t *ClockTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = 0
		return nil
	case time.Time:
		*t = NewClockTime(v.Hour(), v.Minute())
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case int64:
		*t = ClockTime(v)
		return nil
	default:
		return fmt.Errorf("unsupported type %T for ClockTime", value)
	}
}

func (t *ClockTime) scanString(raw string) error {
	// TIME values may carry fractional seconds ("08:00:00.000000").
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		raw = raw[:idx]
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Weekday numbers days Monday-first: Monday = 0 ... Sunday = 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// Valid reports whether the day is within 0..6.
func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

// String returns the upper-case English day name.
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Label returns the capitalised day name used in exported documents.
func (d Weekday) Label() string {
	name := d.String()
	if !d.Valid() {
		return name
	}
	return name[:1] + strings.ToLower(name[1:])
}

// ParseWeekday accepts a number 0..6 or an English day name (full or three letters).
func ParseWeekday(raw string) (Weekday, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(raw); err == nil {
		d := Weekday(n)
		if !d.Valid() {
			return 0, fmt.Errorf("day %d out of range 0-6", n)
		}
		return d, nil
	}
	for i, name := range weekdayNames {
		if raw == name || (len(raw) == 3 && strings.HasPrefix(name, raw)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", raw)
}

// FromTimeWeekday converts Go's Sunday-first weekday.
func FromTimeWeekday(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

// Weekdays lists Monday through Sunday.
func Weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}
