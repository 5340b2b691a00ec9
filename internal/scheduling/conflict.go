// Package scheduling holds the pure timetable logic: interval overlap,
// faculty and room conflict detection, slot generation and the grid layout
// shared by every export renderer. Nothing in this package performs I/O or
// mutates its inputs, so callers may share snapshots across goroutines.
package scheduling

import (
	"errors"
	"fmt"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

// ErrInvalidInterval is returned for intervals whose start is not before their end.
var ErrInvalidInterval = errors.New("start time must be before end time")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start models.ClockTime
	End   models.ClockTime
}

// String renders the interval as HH:MM-HH:MM.
func (i Interval) String() string {
	return fmt.Sprintf("%s-%s", i.Start, i.End)
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

// ValidateInterval rejects empty and inverted intervals.
func ValidateInterval(i Interval) error {
	if i.Start >= i.End {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, i)
	}
	return nil
}

// EntryInterval returns the time range of a schedule entry.
func EntryInterval(e models.ScheduleEntry) Interval {
	return Interval{Start: e.StartTime, End: e.EndTime}
}

// Key extracts the resource an entry occupies.
type Key func(models.ScheduleEntry) string

// Resource keys used by the checker and grid columns.
var (
	ByFaculty Key = func(e models.ScheduleEntry) string { return e.FacultyID }
	ByRoom    Key = func(e models.ScheduleEntry) string { return e.RoomID }
	BySection Key = func(e models.ScheduleEntry) string { return e.ClassSectionID }
)

// Result partitions conflicting entries by the resource they collide on. An
// existing entry appears in both slices when it shares faculty and room.
type Result struct {
	Faculty []models.ScheduleEntry
	Room    []models.ScheduleEntry
}

// HasConflict reports whether any resource is double booked.
func (r Result) HasConflict() bool {
	return len(r.Faculty) > 0 || len(r.Room) > 0
}

// Check validates the candidate interval and returns every existing entry
// that would double book the candidate's faculty or room. Existing entries
// with the candidate's ID are skipped so an update never conflicts with the
// row it replaces.
func Check(candidate models.ScheduleEntry, existing []models.ScheduleEntry) (Result, error) {
	if err := ValidateInterval(EntryInterval(candidate)); err != nil {
		return Result{}, err
	}
	return Result{
		Faculty: FindConflicts(candidate, existing, ByFaculty),
		Room:    FindConflicts(candidate, existing, ByRoom),
	}, nil
}

// FindConflicts returns the existing entries on the candidate's semester and
// day that share key(candidate) and overlap the candidate's interval.
func FindConflicts(candidate models.ScheduleEntry, existing []models.ScheduleEntry, key Key) []models.ScheduleEntry {
	resource := key(candidate)
	if resource == "" {
		return nil
	}
	want := EntryInterval(candidate)

	var conflicts []models.ScheduleEntry
	for _, e := range existing {
		if candidate.ID != "" && e.ID == candidate.ID {
			continue
		}
		if e.DayOfWeek != candidate.DayOfWeek || e.SemesterID != candidate.SemesterID {
			continue
		}
		if key(e) != resource {
			continue
		}
		if Overlaps(EntryInterval(e), want) {
			conflicts = append(conflicts, e)
		}
	}
	return conflicts
}
