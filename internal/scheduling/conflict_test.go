package scheduling

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

func entry(id, start, end string) models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:             id,
		SemesterID:     "sem-1",
		DayOfWeek:      models.Monday,
		StartTime:      models.MustClockTime(start),
		EndTime:        models.MustClockTime(end),
		FacultyID:      "fac-" + id,
		RoomID:         "room-" + id,
		SubjectID:      "subj-1",
		ClassSectionID: "sec-" + id,
		Active:         true,
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	iv := func(s, e string) Interval {
		return Interval{Start: models.MustClockTime(s), End: models.MustClockTime(e)}
	}

	assert.True(t, Overlaps(iv("09:00", "10:00"), iv("09:30", "10:30")))
	assert.True(t, Overlaps(iv("09:00", "12:00"), iv("10:00", "11:00")))
	assert.False(t, Overlaps(iv("09:00", "10:00"), iv("10:00", "11:00")))
	assert.False(t, Overlaps(iv("10:00", "11:00"), iv("09:00", "10:00")))
	assert.False(t, Overlaps(iv("08:00", "09:00"), iv("13:00", "14:00")))
}

func TestValidateIntervalRejectsEmptyAndInverted(t *testing.T) {
	zero := Interval{Start: models.MustClockTime("09:00"), End: models.MustClockTime("09:00")}
	inverted := Interval{Start: models.MustClockTime("10:00"), End: models.MustClockTime("09:00")}

	assert.True(t, errors.Is(ValidateInterval(zero), ErrInvalidInterval))
	assert.True(t, errors.Is(ValidateInterval(inverted), ErrInvalidInterval))
	assert.NoError(t, ValidateInterval(Interval{Start: 0, End: 1}))
}

func TestCheckRejectsZeroDurationRegardlessOfExisting(t *testing.T) {
	candidate := entry("new", "09:00", "09:00")

	_, err := Check(candidate, nil)
	require.ErrorIs(t, err, ErrInvalidInterval)

	_, err = Check(candidate, []models.ScheduleEntry{entry("a", "13:00", "14:00")})
	require.ErrorIs(t, err, ErrInvalidInterval)
}

func TestCheckTouchingIntervalsDoNotConflict(t *testing.T) {
	a := entry("a", "09:00", "10:00")
	b := entry("b", "10:00", "11:00")
	b.FacultyID = a.FacultyID
	b.RoomID = a.RoomID

	result, err := Check(b, []models.ScheduleEntry{a})
	require.NoError(t, err)
	assert.False(t, result.HasConflict())
}

func TestCheckRoomConflict(t *testing.T) {
	a := entry("a", "09:00", "10:00")
	b := entry("b", "09:30", "10:30")
	b.RoomID = a.RoomID

	result, err := Check(b, []models.ScheduleEntry{a})
	require.NoError(t, err)
	assert.Empty(t, result.Faculty)
	require.Len(t, result.Room, 1)
	assert.Equal(t, "a", result.Room[0].ID)
}

func TestCheckFacultyConflict(t *testing.T) {
	a := entry("a", "09:00", "10:00")
	b := entry("b", "08:00", "09:01")
	b.FacultyID = a.FacultyID

	result, err := Check(b, []models.ScheduleEntry{a})
	require.NoError(t, err)
	require.Len(t, result.Faculty, 1)
	assert.Equal(t, "a", result.Faculty[0].ID)
	assert.Empty(t, result.Room)
}

func TestCheckReportsBothCausesIndependently(t *testing.T) {
	a := entry("a", "09:00", "10:00")
	c := entry("c", "09:15", "09:45")
	b := entry("b", "09:00", "11:00")
	b.FacultyID = a.FacultyID
	b.RoomID = c.RoomID

	result, err := Check(b, []models.ScheduleEntry{a, c})
	require.NoError(t, err)
	require.Len(t, result.Faculty, 1)
	require.Len(t, result.Room, 1)
	assert.Equal(t, "a", result.Faculty[0].ID)
	assert.Equal(t, "c", result.Room[0].ID)
}

func TestCheckSameEntryCanConflictOnBothResources(t *testing.T) {
	a := entry("a", "09:00", "10:00")
	b := entry("b", "09:30", "10:30")
	b.FacultyID = a.FacultyID
	b.RoomID = a.RoomID

	result, err := Check(b, []models.ScheduleEntry{a})
	require.NoError(t, err)
	assert.Len(t, result.Faculty, 1)
	assert.Len(t, result.Room, 1)
}

func TestCheckExcludesSelfOnUpdate(t *testing.T) {
	a := entry("a", "09:00", "10:00")

	result, err := Check(a, []models.ScheduleEntry{a})
	require.NoError(t, err)
	assert.False(t, result.HasConflict())
}

func TestCheckIgnoresOtherDaysAndSemesters(t *testing.T) {
	a := entry("a", "09:00", "10:00")
	otherDay := a
	otherDay.ID = "x"
	otherDay.DayOfWeek = models.Tuesday
	otherSemester := a
	otherSemester.ID = "y"
	otherSemester.SemesterID = "sem-2"

	candidate := entry("b", "09:00", "10:00")
	candidate.FacultyID = a.FacultyID
	candidate.RoomID = a.RoomID

	result, err := Check(candidate, []models.ScheduleEntry{otherDay, otherSemester})
	require.NoError(t, err)
	assert.False(t, result.HasConflict())
}

func TestCheckDoesNotMutateInputs(t *testing.T) {
	a := entry("a", "09:00", "10:00")
	existing := []models.ScheduleEntry{a}
	candidate := entry("b", "09:30", "10:30")
	candidate.RoomID = a.RoomID

	_, err := Check(candidate, existing)
	require.NoError(t, err)
	assert.Equal(t, a, existing[0])
	assert.Equal(t, "b", candidate.ID)
}

func TestFindConflictsPropertyOverGrid(t *testing.T) {
	// Every pair of hour-aligned intervals on one faculty: a conflict is
	// reported exactly when the half-open intervals overlap.
	times := []string{"08:00", "09:00", "10:00", "11:00"}
	for i := 0; i < len(times); i++ {
		for j := i + 1; j < len(times); j++ {
			for k := 0; k < len(times); k++ {
				for l := k + 1; l < len(times); l++ {
					a := entry("a", times[i], times[j])
					b := entry("b", times[k], times[l])
					b.FacultyID = a.FacultyID

					got := FindConflicts(b, []models.ScheduleEntry{a}, ByFaculty)
					want := Overlaps(EntryInterval(a), EntryInterval(b))
					assert.Equal(t, want, len(got) == 1, "%s vs %s", EntryInterval(a), EntryInterval(b))
				}
			}
		}
	}
}

func TestFindConflictsSkipsEmptyKey(t *testing.T) {
	a := entry("a", "09:00", "10:00")
	a.RoomID = ""
	b := entry("b", "09:00", "10:00")
	b.RoomID = ""

	assert.Empty(t, FindConflicts(b, []models.ScheduleEntry{a}, ByRoom))
}
