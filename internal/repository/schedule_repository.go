package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/pkg/database"
)

const scheduleColumns = "id, semester_id, day_of_week, start_time, end_time, faculty_id, room_id, subject_id, class_section_id, active, created_at, updated_at"

const scheduleDetailSelect = `SELECT s.id, s.semester_id, s.day_of_week, s.start_time, s.end_time, s.faculty_id, s.room_id, s.subject_id, s.class_section_id, s.active, s.created_at, s.updated_at,
subj.code AS subject_code, subj.name AS subject_name, f.full_name AS faculty_name, f.email AS faculty_email, rm.code AS room_code, cs.name AS section_name
FROM schedule_entries s
JOIN subjects subj ON subj.id = s.subject_id
JOIN faculty f ON f.id = s.faculty_id
JOIN rooms rm ON rm.id = s.room_id
JOIN class_sections cs ON cs.id = s.class_section_id`

// ScheduleWriter is the set of operations available while a schedule
// transaction holds the (semester, day) lock.
type ScheduleWriter interface {
	Lock(ctx context.Context, semesterID string, day models.Weekday) error
	FindConflictCandidates(ctx context.Context, filter models.ConflictCandidateFilter) ([]models.ScheduleEntry, error)
	Insert(ctx context.Context, entry *models.ScheduleEntry) error
	Update(ctx context.Context, entry *models.ScheduleEntry) error
}

// ScheduleRepository provides persistence for schedule entries.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func scheduleWhere(filter models.ScheduleFilter, prefix string) whereBuilder {
	var where whereBuilder
	if filter.SemesterID != "" {
		where.add(prefix+"semester_id = ?", filter.SemesterID)
	}
	if filter.DayOfWeek != nil {
		where.add(prefix+"day_of_week = ?", int(*filter.DayOfWeek))
	}
	if filter.FacultyID != "" {
		where.add(prefix+"faculty_id = ?", filter.FacultyID)
	}
	if filter.RoomID != "" {
		where.add(prefix+"room_id = ?", filter.RoomID)
	}
	if filter.ClassSectionID != "" {
		where.add(prefix+"class_section_id = ?", filter.ClassSectionID)
	}
	if filter.Active != nil {
		where.add(prefix+"active = ?", *filter.Active)
	}
	return where
}

func scheduleOrder(filter models.ScheduleFilter, prefix string) string {
	allowedSorts := map[string]bool{
		prefix + "day_of_week": true,
		prefix + "start_time":  true,
		prefix + "end_time":    true,
		prefix + "created_at":  true,
	}
	clause := orderClause(prefix+filter.SortBy, filter.SortOrder, allowedSorts, prefix+"day_of_week", "ASC")
	if !allowedSorts[prefix+filter.SortBy] || filter.SortBy == "day_of_week" {
		clause += ", " + prefix + "start_time ASC"
	}
	return clause
}

func schedulePage(filter models.ScheduleFilter) models.ListQuery {
	return models.ListQuery{Page: filter.Page, PageSize: filter.PageSize}
}

// List returns schedule entries with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, int, error) {
	where := scheduleWhere(filter, "")
	query := fmt.Sprintf("SELECT %s FROM schedule_entries %s %s %s", scheduleColumns, where.clause(), scheduleOrder(filter, ""), pageClause(schedulePage(filter)))

	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schedule_entries "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return entries, total, nil
}

// ListDetails returns every matching entry joined with its labels, unpaginated.
// Grid building, exports and timetables read through it.
func (r *ScheduleRepository) ListDetails(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntryDetail, error) {
	where := scheduleWhere(filter, "s.")
	query := fmt.Sprintf("%s %s %s", scheduleDetailSelect, where.clause(), scheduleOrder(filter, "s."))

	var entries []models.ScheduleEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, where.args...); err != nil {
		return nil, fmt.Errorf("list schedule details: %w", err)
	}
	return entries, nil
}

// FindByID loads a schedule entry by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, "SELECT "+scheduleColumns+" FROM schedule_entries WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindDetailByID loads a schedule entry with its labels.
func (r *ScheduleRepository) FindDetailByID(ctx context.Context, id string) (*models.ScheduleEntryDetail, error) {
	var entry models.ScheduleEntryDetail
	if err := r.db.GetContext(ctx, &entry, scheduleDetailSelect+" WHERE s.id = $1", id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindConflictCandidates runs outside a transaction, for dry-run checks.
func (r *ScheduleRepository) FindConflictCandidates(ctx context.Context, filter models.ConflictCandidateFilter) ([]models.ScheduleEntry, error) {
	return findConflictCandidates(ctx, r.db, filter)
}

// WithinTx runs fn in a transaction. Writers call Lock first so concurrent
// writes to the same semester and day are serialised.
func (r *ScheduleRepository) WithinTx(ctx context.Context, fn func(w ScheduleWriter) error) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&scheduleTx{tx: tx})
	})
}

// SetActive toggles the active flag of an entry.
func (r *ScheduleRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE schedule_entries SET active = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set schedule active: %w", err)
	}
	return nil
}

// Delete removes a schedule entry permanently.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", translatePQ(err))
	}
	return nil
}

type scheduleTx struct {
	tx *sqlx.Tx
}

// Lock takes a transaction-scoped advisory lock on (semester, day).
func (t *scheduleTx) Lock(ctx context.Context, semesterID string, day models.Weekday) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(semesterID, day)); err != nil {
		return fmt.Errorf("lock schedule day: %w", err)
	}
	return nil
}

func (t *scheduleTx) FindConflictCandidates(ctx context.Context, filter models.ConflictCandidateFilter) ([]models.ScheduleEntry, error) {
	return findConflictCandidates(ctx, t.tx, filter)
}

func (t *scheduleTx) Insert(ctx context.Context, entry *models.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO schedule_entries (id, semester_id, day_of_week, start_time, end_time, faculty_id, room_id, subject_id, class_section_id, active, created_at, updated_at)
VALUES (:id, :semester_id, :day_of_week, :start_time, :end_time, :faculty_id, :room_id, :subject_id, :class_section_id, :active, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create schedule: %w", translatePQ(err))
	}
	return nil
}

func (t *scheduleTx) Update(ctx context.Context, entry *models.ScheduleEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_entries SET semester_id = :semester_id, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time,
faculty_id = :faculty_id, room_id = :room_id, subject_id = :subject_id, class_section_id = :class_section_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update schedule: %w", translatePQ(err))
	}
	return nil
}

func findConflictCandidates(ctx context.Context, q sqlx.QueryerContext, filter models.ConflictCandidateFilter) ([]models.ScheduleEntry, error) {
	const query = `SELECT ` + scheduleColumns + ` FROM schedule_entries
WHERE active = TRUE AND semester_id = $1 AND day_of_week = $2 AND (faculty_id = $3 OR room_id = $4) AND id::text <> $5
ORDER BY start_time ASC`
	var entries []models.ScheduleEntry
	if err := sqlx.SelectContext(ctx, q, &entries, query, filter.SemesterID, int(filter.DayOfWeek), filter.FacultyID, filter.RoomID, filter.ExcludeID); err != nil {
		return nil, fmt.Errorf("find schedule conflicts: %w", err)
	}
	return entries, nil
}

// lockKey folds (semester, day) into the bigint pg_advisory_xact_lock expects.
func lockKey(semesterID string, day models.Weekday) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(semesterID))
	_, _ = h.Write([]byte{byte(day)})
	return int64(h.Sum64())
}
