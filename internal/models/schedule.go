package models

import "time"

// ScheduleEntry assigns a subject, faculty member, room and class section to a
// weekly time range within a semester.
type ScheduleEntry struct {
	ID             string    `db:"id" json:"id"`
	SemesterID     string    `db:"semester_id" json:"semester_id"`
	DayOfWeek      Weekday   `db:"day_of_week" json:"day_of_week"`
	StartTime      ClockTime `db:"start_time" json:"start_time"`
	EndTime        ClockTime `db:"end_time" json:"end_time"`
	FacultyID      string    `db:"faculty_id" json:"faculty_id"`
	RoomID         string    `db:"room_id" json:"room_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	ClassSectionID string    `db:"class_section_id" json:"class_section_id"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleEntryDetail is a schedule entry joined with the labels renderers
// and notifications print.
type ScheduleEntryDetail struct {
	ScheduleEntry
	SubjectCode  string `db:"subject_code" json:"subject_code"`
	SubjectName  string `db:"subject_name" json:"subject_name"`
	FacultyName  string `db:"faculty_name" json:"faculty_name"`
	FacultyEmail string `db:"faculty_email" json:"-"`
	RoomCode     string `db:"room_code" json:"room_code"`
	SectionName  string `db:"section_name" json:"section_name"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	SemesterID     string
	DayOfWeek      *Weekday
	FacultyID      string
	RoomID         string
	ClassSectionID string
	Active         *bool
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// ConflictCandidateFilter selects the entries a candidate must be checked
// against: same semester and day, sharing the faculty or the room.
type ConflictCandidateFilter struct {
	SemesterID string
	DayOfWeek  Weekday
	FacultyID  string
	RoomID     string
	ExcludeID  string
}

// Conflict dimensions.
const (
	ConflictFaculty = "FACULTY"
	ConflictRoom    = "ROOM"
)

// ScheduleConflict describes an existing entry that collides with a candidate.
type ScheduleConflict struct {
	ScheduleID     string    `json:"schedule_id"`
	Dimension      string    `json:"dimension"`
	ResourceID     string    `json:"resource_id"`
	SemesterID     string    `json:"semester_id"`
	DayOfWeek      Weekday   `json:"day_of_week"`
	StartTime      ClockTime `json:"start_time"`
	EndTime        ClockTime `json:"end_time"`
	FacultyID      string    `json:"faculty_id"`
	RoomID         string    `json:"room_id"`
	SubjectID      string    `json:"subject_id"`
	ClassSectionID string    `json:"class_section_id"`
}

// ScheduleConflictError is returned when a candidate collides with existing entries.
type ScheduleConflictError struct {
	Type     string             `json:"type"`
	Message  string             `json:"message"`
	Conflict ScheduleConflict   `json:"conflict"`
	Errors   []ScheduleConflict `json:"errors,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// ConflictReport is the dry-run response of the conflict check endpoint.
type ConflictReport struct {
	Valid    bool               `json:"valid"`
	Interval string             `json:"interval"`
	Faculty  []ScheduleConflict `json:"faculty_conflicts"`
	Room     []ScheduleConflict `json:"room_conflicts"`
}
