package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/repository"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

// scheduleStoreStub keeps entries in memory. WithinTx restores the previous
// state when fn fails, so tests observe rollback semantics.
type scheduleStoreStub struct {
	entries   map[string]models.ScheduleEntry
	order     []string
	locks     []dayLock
	insertErr error
	detailErr error
	seq       int
}

func newScheduleStore(entries ...models.ScheduleEntry) *scheduleStoreStub {
	s := &scheduleStoreStub{entries: map[string]models.ScheduleEntry{}}
	for _, e := range entries {
		s.entries[e.ID] = e
		s.order = append(s.order, e.ID)
	}
	return s
}

func (s *scheduleStoreStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, int, error) {
	var out []models.ScheduleEntry
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out, len(out), nil
}

func (s *scheduleStoreStub) ListDetails(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntryDetail, error) {
	var out []models.ScheduleEntryDetail
	for _, id := range s.order {
		e := s.entries[id]
		if filter.SemesterID != "" && e.SemesterID != filter.SemesterID {
			continue
		}
		if filter.FacultyID != "" && e.FacultyID != filter.FacultyID {
			continue
		}
		if filter.Active != nil && e.Active != *filter.Active {
			continue
		}
		out = append(out, models.ScheduleEntryDetail{ScheduleEntry: e})
	}
	return out, nil
}

func (s *scheduleStoreStub) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *scheduleStoreStub) FindDetailByID(ctx context.Context, id string) (*models.ScheduleEntryDetail, error) {
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	e, ok := s.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ScheduleEntryDetail{ScheduleEntry: e, FacultyEmail: e.FacultyID + "@college.edu"}, nil
}

func (s *scheduleStoreStub) FindConflictCandidates(ctx context.Context, filter models.ConflictCandidateFilter) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	for _, id := range s.order {
		e := s.entries[id]
		if !e.Active || e.SemesterID != filter.SemesterID || e.DayOfWeek != filter.DayOfWeek || e.ID == filter.ExcludeID {
			continue
		}
		if e.FacultyID == filter.FacultyID || e.RoomID == filter.RoomID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *scheduleStoreStub) WithinTx(ctx context.Context, fn func(w repository.ScheduleWriter) error) error {
	saved := make(map[string]models.ScheduleEntry, len(s.entries))
	for k, v := range s.entries {
		saved[k] = v
	}
	savedOrder := append([]string(nil), s.order...)
	if err := fn(s); err != nil {
		s.entries = saved
		s.order = savedOrder
		return err
	}
	return nil
}

func (s *scheduleStoreStub) Lock(ctx context.Context, semesterID string, day models.Weekday) error {
	s.locks = append(s.locks, dayLock{semesterID: semesterID, day: day})
	return nil
}

func (s *scheduleStoreStub) Insert(ctx context.Context, entry *models.ScheduleEntry) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.seq++
	entry.ID = fmt.Sprintf("new-%d", s.seq)
	s.entries[entry.ID] = *entry
	s.order = append(s.order, entry.ID)
	return nil
}

func (s *scheduleStoreStub) Update(ctx context.Context, entry *models.ScheduleEntry) error {
	s.entries[entry.ID] = *entry
	return nil
}

func (s *scheduleStoreStub) SetActive(ctx context.Context, id string, active bool) error {
	e := s.entries[id]
	e.Active = active
	s.entries[id] = e
	return nil
}

func (s *scheduleStoreStub) Delete(ctx context.Context, id string) error {
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

type gridInvalidatorStub struct {
	semesters []string
}

func (g *gridInvalidatorStub) InvalidateSemester(ctx context.Context, semesterID string) {
	g.semesters = append(g.semesters, semesterID)
}

type notifierStub struct {
	kinds   []models.NotificationKind
	faculty []string
}

func (n *notifierStub) NotifyScheduleChange(ctx context.Context, kind models.NotificationKind, entry models.ScheduleEntryDetail) {
	n.kinds = append(n.kinds, kind)
	n.faculty = append(n.faculty, entry.FacultyID)
}

func existingEntry(id, start, end, faculty, room string) models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:             id,
		SemesterID:     "sem-1",
		DayOfWeek:      models.Monday,
		StartTime:      models.MustClockTime(start),
		EndTime:        models.MustClockTime(end),
		FacultyID:      faculty,
		RoomID:         room,
		SubjectID:      "subj-1",
		ClassSectionID: "sec-1",
		Active:         true,
	}
}

func scheduleReq(start, end, faculty, room string) ScheduleRequest {
	day := models.Monday
	return ScheduleRequest{
		SemesterID:     "sem-1",
		DayOfWeek:      &day,
		StartTime:      models.MustClockTime(start),
		EndTime:        models.MustClockTime(end),
		FacultyID:      faculty,
		RoomID:         room,
		SubjectID:      "subj-2",
		ClassSectionID: "sec-2",
	}
}

type scheduleFixture struct {
	store    *scheduleStoreStub
	grids    *gridInvalidatorStub
	notifier *notifierStub
	audit    *auditStub
	metrics  *MetricsService
	svc      *ScheduleService
}

func newScheduleFixture(entries ...models.ScheduleEntry) *scheduleFixture {
	f := &scheduleFixture{
		store:    newScheduleStore(entries...),
		grids:    &gridInvalidatorStub{},
		notifier: &notifierStub{},
		audit:    &auditStub{},
		metrics:  NewMetricsService(),
	}
	f.svc = NewScheduleService(ScheduleServiceParams{
		Repo:     f.store,
		Audit:    f.audit,
		Grids:    f.grids,
		Notifier: f.notifier,
		Metrics:  f.metrics,
		Logger:   zap.NewNop(),
	})
	return f
}

func TestScheduleServiceCreateWithoutConflict(t *testing.T) {
	f := newScheduleFixture(existingEntry("a", "09:00", "10:00", "fac-1", "room-1"))

	entry, err := f.svc.Create(context.Background(), scheduleReq("10:00", "11:00", "fac-1", "room-1"), adminActor)
	require.NoError(t, err)
	assert.Equal(t, "new-1", entry.ID)
	assert.True(t, entry.Active)
	assert.Equal(t, []dayLock{{semesterID: "sem-1", day: models.Monday}}, f.store.locks)
	assert.Equal(t, []string{"sem-1"}, f.grids.semesters)
	assert.Equal(t, []models.NotificationKind{models.NotificationScheduleCreated}, f.notifier.kinds)
	assert.Equal(t, []string{models.AuditActionCreate}, f.audit.actions())
}

func TestScheduleServiceCreateRoomConflict(t *testing.T) {
	f := newScheduleFixture(existingEntry("a", "09:00", "10:00", "fac-1", "room-1"))

	_, err := f.svc.Create(context.Background(), scheduleReq("09:30", "10:30", "fac-2", "room-1"), adminActor)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRoomConflict.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
	body, ok := appErr.Details.(*models.ScheduleConflictError)
	require.True(t, ok)
	assert.Equal(t, models.ConflictRoom, body.Type)
	assert.Equal(t, "a", body.Conflict.ScheduleID)
	assert.Equal(t, "room-1", body.Conflict.ResourceID)
	assert.Empty(t, body.Errors)

	assert.Len(t, f.store.entries, 1)
	assert.Empty(t, f.grids.semesters)
	assert.Empty(t, f.notifier.kinds)
}

func TestScheduleServiceFacultyConflictIsPrimary(t *testing.T) {
	f := newScheduleFixture(
		existingEntry("a", "09:00", "10:00", "fac-1", "room-9"),
		existingEntry("c", "09:15", "09:45", "fac-9", "room-2"),
	)

	_, err := f.svc.Create(context.Background(), scheduleReq("09:00", "11:00", "fac-1", "room-2"), adminActor)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrFacultyConflict.Code, appErr.Code)
	body := appErr.Details.(*models.ScheduleConflictError)
	assert.Equal(t, "a", body.Conflict.ScheduleID)
	assert.Equal(t, "fac-1", body.Conflict.ResourceID)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, models.ConflictRoom, body.Errors[0].Dimension)
	assert.Equal(t, "c", body.Errors[0].ScheduleID)

	var conflictErr *models.ScheduleConflictError
	assert.True(t, errors.As(err, &conflictErr))
}

func TestScheduleServiceRejectsZeroDuration(t *testing.T) {
	f := newScheduleFixture()

	_, err := f.svc.Create(context.Background(), scheduleReq("09:00", "09:00", "fac-1", "room-1"), adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidInterval.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
	assert.Empty(t, f.store.locks)
}

func TestScheduleServiceValidationRequiresDay(t *testing.T) {
	f := newScheduleFixture()
	req := scheduleReq("09:00", "10:00", "fac-1", "room-1")
	req.DayOfWeek = nil

	_, err := f.svc.Create(context.Background(), req, adminActor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "day_of_week")
}

func TestScheduleServiceMissingReferenceIsNotFound(t *testing.T) {
	f := newScheduleFixture()
	f.store.insertErr = fmt.Errorf("create schedule: %w", fmt.Errorf("%w: schedule_entries_room_id_fkey", repository.ErrReferenced))

	_, err := f.svc.Create(context.Background(), scheduleReq("09:00", "10:00", "fac-1", "room-x"), adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceUpdateExcludesItself(t *testing.T) {
	f := newScheduleFixture(existingEntry("a", "09:00", "10:00", "fac-1", "room-1"))

	entry, err := f.svc.Update(context.Background(), "a", scheduleReq("09:30", "10:30", "fac-1", "room-1"), adminActor)
	require.NoError(t, err)
	assert.Equal(t, "a", entry.ID)
	assert.Equal(t, models.MustClockTime("09:30"), f.store.entries["a"].StartTime)
	assert.Equal(t, []models.NotificationKind{models.NotificationScheduleUpdated}, f.notifier.kinds)
}

func TestScheduleServiceUpdateNotifiesPreviousFaculty(t *testing.T) {
	f := newScheduleFixture(existingEntry("a", "09:00", "10:00", "fac-1", "room-1"))

	_, err := f.svc.Update(context.Background(), "a", scheduleReq("09:00", "10:00", "fac-2", "room-1"), adminActor)
	require.NoError(t, err)
	assert.Equal(t, []string{"fac-1", "fac-2"}, f.notifier.faculty)
}

func TestScheduleServiceUpdateLogsPreviousDetailFailure(t *testing.T) {
	f := newScheduleFixture(existingEntry("a", "09:00", "10:00", "fac-1", "room-1"))
	core, logs := observer.New(zap.WarnLevel)
	f.svc = NewScheduleService(ScheduleServiceParams{
		Repo:     f.store,
		Audit:    f.audit,
		Grids:    f.grids,
		Notifier: f.notifier,
		Metrics:  f.metrics,
		Logger:   zap.New(core),
	})
	f.store.detailErr = errors.New("connection reset")

	entry, err := f.svc.Update(context.Background(), "a", scheduleReq("09:00", "10:00", "fac-2", "room-1"), adminActor)
	require.NoError(t, err)
	assert.Equal(t, "fac-2", entry.FacultyID)
	assert.Empty(t, f.notifier.faculty)
	assert.Equal(t, 1, logs.FilterMessage("failed to load previous schedule detail").Len())
}

func TestScheduleServiceUpdateNotFound(t *testing.T) {
	f := newScheduleFixture()

	_, err := f.svc.Update(context.Background(), "missing", scheduleReq("09:00", "10:00", "fac-1", "room-1"), adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceDeactivateFreesResources(t *testing.T) {
	f := newScheduleFixture(existingEntry("a", "09:00", "10:00", "fac-1", "room-1"))

	entry, err := f.svc.Deactivate(context.Background(), "a", adminActor)
	require.NoError(t, err)
	assert.False(t, entry.Active)

	_, err = f.svc.Create(context.Background(), scheduleReq("09:00", "10:00", "fac-1", "room-1"), adminActor)
	require.NoError(t, err)
	assert.Equal(t, []string{models.AuditActionDeactivate, models.AuditActionCreate}, f.audit.actions())
}

func TestScheduleServiceDelete(t *testing.T) {
	f := newScheduleFixture(existingEntry("a", "09:00", "10:00", "fac-1", "room-1"))

	require.NoError(t, f.svc.Delete(context.Background(), "a", adminActor))
	assert.Empty(t, f.store.entries)
	assert.Equal(t, []models.NotificationKind{models.NotificationScheduleDeleted}, f.notifier.kinds)

	err := f.svc.Delete(context.Background(), "a", adminActor)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCheckReport(t *testing.T) {
	f := newScheduleFixture(
		existingEntry("a", "09:00", "10:00", "fac-1", "room-1"),
		existingEntry("b", "10:00", "11:00", "fac-2", "room-2"),
	)

	report, err := f.svc.Check(context.Background(), scheduleReq("09:30", "10:30", "fac-1", "room-2"), "")
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, "09:30-10:30", report.Interval)
	require.Len(t, report.Faculty, 1)
	assert.Equal(t, "a", report.Faculty[0].ScheduleID)
	require.Len(t, report.Room, 1)
	assert.Equal(t, "b", report.Room[0].ScheduleID)
	assert.Len(t, f.store.entries, 2)

	report, err = f.svc.Check(context.Background(), scheduleReq("09:00", "10:00", "fac-1", "room-1"), "a")
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.NotNil(t, report.Faculty)
}

func TestScheduleServiceBulkAtomicRollsBack(t *testing.T) {
	f := newScheduleFixture()
	req := BulkScheduleRequest{Items: []ScheduleRequest{
		scheduleReq("08:00", "09:00", "fac-1", "room-1"),
		scheduleReq("08:30", "09:30", "fac-2", "room-1"),
	}}

	_, err := f.svc.BulkCreate(context.Background(), req, adminActor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRoomConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "item 1")
	assert.Empty(t, f.store.entries)
	assert.Empty(t, f.notifier.kinds)
}

func TestScheduleServiceBulkAtomicMissingReferenceIsNotFound(t *testing.T) {
	f := newScheduleFixture()
	f.store.insertErr = fmt.Errorf("create schedule: %w", fmt.Errorf("%w: schedule_entries_faculty_id_fkey", repository.ErrReferenced))
	req := BulkScheduleRequest{Items: []ScheduleRequest{scheduleReq("08:00", "09:00", "fac-x", "room-1")}}

	_, err := f.svc.BulkCreate(context.Background(), req, adminActor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Contains(t, appErr.Message, "item 0")
	assert.Empty(t, f.store.entries)
}

func TestScheduleServiceBulkPartial(t *testing.T) {
	f := newScheduleFixture()
	bad := scheduleReq("10:00", "09:00", "fac-3", "room-3")
	req := BulkScheduleRequest{PartialOnError: true, Items: []ScheduleRequest{
		scheduleReq("08:00", "09:00", "fac-1", "room-1"),
		scheduleReq("08:30", "09:30", "fac-1", "room-2"),
		bad,
		scheduleReq("09:00", "10:00", "fac-1", "room-1"),
	}}

	result, err := f.svc.BulkCreate(context.Background(), req, adminActor)
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.Equal(t, appErrors.ErrFacultyConflict.Code, result.Failed[0].Error.Code)
	assert.Equal(t, 2, result.Failed[1].Index)
	assert.Equal(t, appErrors.ErrInvalidInterval.Code, result.Failed[1].Error.Code)
	assert.Equal(t, []string{"sem-1"}, f.grids.semesters)
	assert.Len(t, f.notifier.kinds, 2)
}

func TestScheduleServiceTimetableUsesActiveSemester(t *testing.T) {
	inactive := existingEntry("b", "11:00", "12:00", "fac-1", "room-1")
	inactive.Active = false
	other := existingEntry("c", "11:00", "12:00", "fac-1", "room-1")
	other.SemesterID = "sem-2"
	f := newScheduleFixture(existingEntry("a", "09:00", "10:00", "fac-1", "room-1"), inactive, other)
	f.svc.semesters = &semesterRepoStub{items: map[string]*models.Semester{"sem-1": {ID: "sem-1", IsActive: true}}}

	entries, err := f.svc.ForFaculty(context.Background(), "fac-1", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)
}

func TestLockOrderIsStable(t *testing.T) {
	a := existingEntry("a", "09:00", "10:00", "f", "r")
	b := a
	b.DayOfWeek = models.Friday
	c := a
	c.SemesterID = "sem-0"

	keys := lockOrder([]models.ScheduleEntry{b, a, c, a})
	assert.Equal(t, []dayLock{
		{semesterID: "sem-0", day: models.Monday},
		{semesterID: "sem-1", day: models.Monday},
		{semesterID: "sem-1", day: models.Friday},
	}, keys)
}
