package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/repository"
	"github.com/noah-isme/college-scheduling-api/internal/scheduling"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

type scheduleStore interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, int, error)
	ListDetails(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntryDetail, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	FindDetailByID(ctx context.Context, id string) (*models.ScheduleEntryDetail, error)
	FindConflictCandidates(ctx context.Context, filter models.ConflictCandidateFilter) ([]models.ScheduleEntry, error)
	WithinTx(ctx context.Context, fn func(w repository.ScheduleWriter) error) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type activeSemesterReader interface {
	FindActive(ctx context.Context) (*models.Semester, error)
}

// gridInvalidator drops cached grids of a semester after schedule writes.
type gridInvalidator interface {
	InvalidateSemester(ctx context.Context, semesterID string)
}

// scheduleNotifier tells the affected faculty member about a schedule change.
type scheduleNotifier interface {
	NotifyScheduleChange(ctx context.Context, kind models.NotificationKind, entry models.ScheduleEntryDetail)
}

// ScheduleRequest is the create and update payload for schedule entries.
type ScheduleRequest struct {
	SemesterID     string           `json:"semester_id" validate:"required"`
	DayOfWeek      *models.Weekday  `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime      models.ClockTime `json:"start_time" swaggertype:"string" example:"09:00" validate:"min=0,max=1440"`
	EndTime        models.ClockTime `json:"end_time" swaggertype:"string" example:"10:30" validate:"min=0,max=1440"`
	FacultyID      string           `json:"faculty_id" validate:"required"`
	RoomID         string           `json:"room_id" validate:"required"`
	SubjectID      string           `json:"subject_id" validate:"required"`
	ClassSectionID string           `json:"class_section_id" validate:"required"`
	Active         *bool            `json:"active"`
}

// BulkScheduleRequest creates several entries at once.
type BulkScheduleRequest struct {
	Items          []ScheduleRequest `json:"items" validate:"required,min=1,max=200,dive"`
	PartialOnError bool              `json:"partial_on_error"`
}

// BulkScheduleFailure reports why one bulk item was rejected.
type BulkScheduleFailure struct {
	Index int              `json:"index"`
	Error *appErrors.Error `json:"error"`
}

// BulkScheduleResult summarises a bulk create.
type BulkScheduleResult struct {
	Created []models.ScheduleEntry `json:"created"`
	Failed  []BulkScheduleFailure  `json:"failed,omitempty"`
}

// ScheduleServiceParams groups constructor dependencies.
type ScheduleServiceParams struct {
	Repo      scheduleStore
	Semesters activeSemesterReader
	Audit     auditRecorder
	Grids     gridInvalidator
	Notifier  scheduleNotifier
	Metrics   *MetricsService
	Validator *validation.Validator
	Logger    *zap.Logger
}

// ScheduleService coordinates schedule writes with conflict detection.
type ScheduleService struct {
	repo      scheduleStore
	semesters activeSemesterReader
	audit     auditRecorder
	grids     gridInvalidator
	notifier  scheduleNotifier
	metrics   *MetricsService
	validator *validation.Validator
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(params ScheduleServiceParams) *ScheduleService {
	return &ScheduleService{
		repo:      params.Repo,
		semesters: params.Semesters,
		audit:     params.Audit,
		grids:     params.Grids,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		validator: defaultValidator(params.Validator),
		logger:    defaultLogger(params.Logger),
	}
}

// List returns schedule entries with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := models.ListQuery{Page: filter.Page, PageSize: filter.PageSize}
	return entries, page.Pagination(total), nil
}

// Get returns a schedule entry with its labels.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleEntryDetail, error) {
	entry, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "schedule", "load")
	}
	return entry, nil
}

// ForFaculty returns the active timetable of a faculty member.
func (s *ScheduleService) ForFaculty(ctx context.Context, facultyID, semesterID string) ([]models.ScheduleEntryDetail, error) {
	return s.timetable(ctx, models.ScheduleFilter{FacultyID: facultyID}, semesterID)
}

// ForRoom returns the active timetable of a room.
func (s *ScheduleService) ForRoom(ctx context.Context, roomID, semesterID string) ([]models.ScheduleEntryDetail, error) {
	return s.timetable(ctx, models.ScheduleFilter{RoomID: roomID}, semesterID)
}

// ForSection returns the active timetable of a class section.
func (s *ScheduleService) ForSection(ctx context.Context, sectionID, semesterID string) ([]models.ScheduleEntryDetail, error) {
	return s.timetable(ctx, models.ScheduleFilter{ClassSectionID: sectionID}, semesterID)
}

func (s *ScheduleService) timetable(ctx context.Context, filter models.ScheduleFilter, semesterID string) ([]models.ScheduleEntryDetail, error) {
	semesterID, err := s.resolveSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}
	active := true
	filter.SemesterID = semesterID
	filter.Active = &active
	entries, err := s.repo.ListDetails(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return entries, nil
}

// resolveSemester falls back to the active semester when none is given.
func (s *ScheduleService) resolveSemester(ctx context.Context, semesterID string) (string, error) {
	if semesterID != "" || s.semesters == nil {
		return semesterID, nil
	}
	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "no active semester")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active semester")
	}
	return semester.ID, nil
}

// Create inserts a schedule entry after the conflict check.
func (s *ScheduleService) Create(ctx context.Context, req ScheduleRequest, actor Actor) (*models.ScheduleEntry, error) {
	entry, err := s.entryFromRequest(req, "invalid schedule payload")
	if err != nil {
		return nil, err
	}
	entry.Active = req.Active == nil || *req.Active

	if err := s.save(ctx, &entry, false); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "schedules", entry.ID, nil, entry)
	s.invalidate(ctx, entry.SemesterID)
	s.notify(ctx, models.NotificationScheduleCreated, entry.ID)
	return &entry, nil
}

// Update replaces a schedule entry. The entry never conflicts with itself.
func (s *ScheduleService) Update(ctx context.Context, id string, req ScheduleRequest, actor Actor) (*models.ScheduleEntry, error) {
	entry, err := s.entryFromRequest(req, "invalid schedule payload")
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "schedule", "load")
	}
	var previous *models.ScheduleEntryDetail
	if existing.FacultyID != entry.FacultyID {
		if previous, err = s.repo.FindDetailByID(ctx, id); err != nil {
			s.logger.Warn("failed to load previous schedule detail", zap.String("schedule_id", id), zap.Error(err))
			previous = nil
		}
	}

	entry.ID = existing.ID
	entry.CreatedAt = existing.CreatedAt
	entry.Active = existing.Active
	if req.Active != nil {
		entry.Active = *req.Active
	}

	if err := s.save(ctx, &entry, true); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "schedules", id, existing, entry)
	s.invalidate(ctx, existing.SemesterID, entry.SemesterID)
	if previous != nil {
		s.notifyDetail(ctx, models.NotificationScheduleDeleted, *previous)
	}
	s.notify(ctx, models.NotificationScheduleUpdated, entry.ID)
	return &entry, nil
}

// Deactivate marks an entry inactive. Inactive entries no longer block
// their faculty or room.
func (s *ScheduleService) Deactivate(ctx context.Context, id string, actor Actor) (*models.ScheduleEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "schedule", "load")
	}
	if !entry.Active {
		return entry, nil
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate schedule")
	}
	old := *entry
	entry.Active = false
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDeactivate, "schedules", id, old, entry)
	s.invalidate(ctx, entry.SemesterID)
	s.notify(ctx, models.NotificationScheduleDeactivated, id)
	return entry, nil
}

// Delete removes a schedule entry permanently.
func (s *ScheduleService) Delete(ctx context.Context, id string, actor Actor) error {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return repoError(err, "schedule", "load")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "schedule", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "schedules", id, detail.ScheduleEntry, nil)
	s.invalidate(ctx, detail.SemesterID)
	if detail.Active {
		s.notifyDetail(ctx, models.NotificationScheduleDeleted, *detail)
	}
	return nil
}

// Check is the dry-run conflict check. excludeID names the entry being
// edited, if any.
func (s *ScheduleService) Check(ctx context.Context, req ScheduleRequest, excludeID string) (*models.ConflictReport, error) {
	entry, err := s.entryFromRequest(req, "invalid schedule payload")
	if err != nil {
		return nil, err
	}
	entry.ID = excludeID

	existing, err := s.repo.FindConflictCandidates(ctx, candidateFilter(entry))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}
	result, err := scheduling.Check(entry, existing)
	if err != nil {
		return nil, intervalError(err)
	}
	return &models.ConflictReport{
		Valid:    !result.HasConflict(),
		Interval: scheduling.EntryInterval(entry).String(),
		Faculty:  toConflicts(result.Faculty, models.ConflictFaculty),
		Room:     toConflicts(result.Room, models.ConflictRoom),
	}, nil
}

// BulkCreate inserts several entries. Without partial mode the batch is
// atomic: the first rejected item rolls back the whole batch. In partial
// mode each item is saved on its own and failures are reported per index.
func (s *ScheduleService) BulkCreate(ctx context.Context, req BulkScheduleRequest, actor Actor) (*BulkScheduleResult, error) {
	if err := s.validator.Check(req, "invalid bulk schedule payload"); err != nil {
		return nil, err
	}
	entries := make([]models.ScheduleEntry, len(req.Items))
	invalid := make([]error, len(req.Items))
	for i, item := range req.Items {
		entry, err := s.entryFromRequest(item, "invalid schedule entry")
		if err != nil {
			if !req.PartialOnError {
				return nil, itemError(i, err)
			}
			invalid[i] = err
			continue
		}
		entry.Active = item.Active == nil || *item.Active
		entries[i] = entry
	}

	var result *BulkScheduleResult
	if req.PartialOnError {
		result = s.bulkPartial(ctx, entries, invalid)
	} else {
		var err error
		if result, err = s.bulkAtomic(ctx, entries); err != nil {
			return nil, err
		}
	}

	semesters := make([]string, 0, len(result.Created))
	for _, entry := range result.Created {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "schedules", entry.ID, nil, entry)
		semesters = append(semesters, entry.SemesterID)
	}
	s.invalidate(ctx, semesters...)
	for _, entry := range result.Created {
		s.notify(ctx, models.NotificationScheduleCreated, entry.ID)
	}
	return result, nil
}

func (s *ScheduleService) bulkPartial(ctx context.Context, entries []models.ScheduleEntry, invalid []error) *BulkScheduleResult {
	result := &BulkScheduleResult{Created: []models.ScheduleEntry{}}
	for i := range entries {
		if invalid[i] != nil {
			result.Failed = append(result.Failed, BulkScheduleFailure{Index: i, Error: appErrors.FromError(invalid[i])})
			continue
		}
		entry := entries[i]
		if err := s.save(ctx, &entry, false); err != nil {
			result.Failed = append(result.Failed, BulkScheduleFailure{Index: i, Error: appErrors.FromError(err)})
			continue
		}
		result.Created = append(result.Created, entry)
	}
	return result
}

func (s *ScheduleService) bulkAtomic(ctx context.Context, entries []models.ScheduleEntry) (*BulkScheduleResult, error) {
	created := make([]models.ScheduleEntry, 0, len(entries))
	err := s.repo.WithinTx(ctx, func(w repository.ScheduleWriter) error {
		for _, key := range lockOrder(entries) {
			if err := w.Lock(ctx, key.semesterID, key.day); err != nil {
				return err
			}
		}
		for i := range entries {
			entry := entries[i]
			if err := s.checkAndWrite(ctx, w, &entry, false); err != nil {
				return itemError(i, s.writeError(err, "create"))
			}
			created = append(created, entry)
		}
		return nil
	})
	if err != nil {
		return nil, s.writeError(err, "create")
	}
	return &BulkScheduleResult{Created: created}, nil
}

// save runs the locked check-then-write transaction for one entry.
func (s *ScheduleService) save(ctx context.Context, entry *models.ScheduleEntry, update bool) error {
	err := s.repo.WithinTx(ctx, func(w repository.ScheduleWriter) error {
		if err := w.Lock(ctx, entry.SemesterID, entry.DayOfWeek); err != nil {
			return err
		}
		return s.checkAndWrite(ctx, w, entry, update)
	})
	if err != nil {
		action := "create"
		if update {
			action = "update"
		}
		return s.writeError(err, action)
	}
	return nil
}

// checkAndWrite must run while the (semester, day) lock is held. Inactive
// entries occupy nothing and skip the check.
func (s *ScheduleService) checkAndWrite(ctx context.Context, w repository.ScheduleWriter, entry *models.ScheduleEntry, update bool) error {
	if entry.Active {
		existing, err := w.FindConflictCandidates(ctx, candidateFilter(*entry))
		if err != nil {
			return err
		}
		result, err := scheduling.Check(*entry, existing)
		if err != nil {
			return intervalError(err)
		}
		if result.HasConflict() {
			s.recordConflicts(result)
			return conflictError(result)
		}
	}
	if update {
		return w.Update(ctx, entry)
	}
	return w.Insert(ctx, entry)
}

func (s *ScheduleService) writeError(err error, action string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repository.ErrReferenced) {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "referenced semester, faculty, room, subject or class section not found")
	}
	return repoError(err, "schedule", action)
}

func (s *ScheduleService) entryFromRequest(req ScheduleRequest, message string) (models.ScheduleEntry, error) {
	if err := s.validator.Check(req, message); err != nil {
		return models.ScheduleEntry{}, err
	}
	entry := models.ScheduleEntry{
		SemesterID:     req.SemesterID,
		DayOfWeek:      *req.DayOfWeek,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		FacultyID:      req.FacultyID,
		RoomID:         req.RoomID,
		SubjectID:      req.SubjectID,
		ClassSectionID: req.ClassSectionID,
	}
	if err := scheduling.ValidateInterval(scheduling.EntryInterval(entry)); err != nil {
		return models.ScheduleEntry{}, intervalError(err)
	}
	return entry, nil
}

func (s *ScheduleService) recordConflicts(result scheduling.Result) {
	if len(result.Faculty) > 0 {
		s.metrics.RecordConflict(models.ConflictFaculty)
	}
	if len(result.Room) > 0 {
		s.metrics.RecordConflict(models.ConflictRoom)
	}
}

func (s *ScheduleService) invalidate(ctx context.Context, semesterIDs ...string) {
	if s.grids == nil {
		return
	}
	seen := make(map[string]bool, len(semesterIDs))
	for _, id := range semesterIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		s.grids.InvalidateSemester(ctx, id)
	}
}

func (s *ScheduleService) notify(ctx context.Context, kind models.NotificationKind, entryID string) {
	if s.notifier == nil {
		return
	}
	detail, err := s.repo.FindDetailByID(ctx, entryID)
	if err != nil {
		s.logger.Warn("failed to load schedule for notification", zap.String("schedule_id", entryID), zap.Error(err))
		return
	}
	s.notifyDetail(ctx, kind, *detail)
}

func (s *ScheduleService) notifyDetail(ctx context.Context, kind models.NotificationKind, detail models.ScheduleEntryDetail) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyScheduleChange(ctx, kind, detail)
}

func candidateFilter(entry models.ScheduleEntry) models.ConflictCandidateFilter {
	return models.ConflictCandidateFilter{
		SemesterID: entry.SemesterID,
		DayOfWeek:  entry.DayOfWeek,
		FacultyID:  entry.FacultyID,
		RoomID:     entry.RoomID,
		ExcludeID:  entry.ID,
	}
}

type dayLock struct {
	semesterID string
	day        models.Weekday
}

// lockOrder returns the distinct (semester, day) pairs in a stable order so
// concurrent batches take their locks in the same sequence.
func lockOrder(entries []models.ScheduleEntry) []dayLock {
	seen := make(map[dayLock]bool)
	var keys []dayLock
	for _, e := range entries {
		key := dayLock{semesterID: e.SemesterID, day: e.DayOfWeek}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].semesterID != keys[j].semesterID {
			return keys[i].semesterID < keys[j].semesterID
		}
		return keys[i].day < keys[j].day
	})
	return keys
}

func intervalError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrInvalidInterval.Code, appErrors.ErrInvalidInterval.Status, appErrors.ErrInvalidInterval.Message)
}

func itemError(index int, err error) error {
	appErr := appErrors.FromError(err)
	return appErrors.Clone(appErr, fmt.Sprintf("item %d: %s", index, appErr.Message))
}

// conflictError builds the 409 response. A faculty conflict is the primary
// error when both resources are busy; every other collision goes in Errors.
func conflictError(result scheduling.Result) error {
	faculty := toConflicts(result.Faculty, models.ConflictFaculty)
	room := toConflicts(result.Room, models.ConflictRoom)

	base := appErrors.ErrRoomConflict
	var primary models.ScheduleConflict
	var rest []models.ScheduleConflict
	if len(faculty) > 0 {
		base = appErrors.ErrFacultyConflict
		primary = faculty[0]
		rest = append(append(rest, faculty[1:]...), room...)
	} else {
		primary = room[0]
		rest = append(rest, room[1:]...)
	}

	body := &models.ScheduleConflictError{
		Type:     primary.Dimension,
		Message:  base.Message,
		Conflict: primary,
		Errors:   rest,
	}
	return appErrors.Wrap(body, base.Code, base.Status, base.Message).WithDetails(body)
}

func toConflicts(entries []models.ScheduleEntry, dimension string) []models.ScheduleConflict {
	out := make([]models.ScheduleConflict, 0, len(entries))
	for _, e := range entries {
		resource := e.RoomID
		if dimension == models.ConflictFaculty {
			resource = e.FacultyID
		}
		out = append(out, models.ScheduleConflict{
			ScheduleID:     e.ID,
			Dimension:      dimension,
			ResourceID:     resource,
			SemesterID:     e.SemesterID,
			DayOfWeek:      e.DayOfWeek,
			StartTime:      e.StartTime,
			EndTime:        e.EndTime,
			FacultyID:      e.FacultyID,
			RoomID:         e.RoomID,
			SubjectID:      e.SubjectID,
			ClassSectionID: e.ClassSectionID,
		})
	}
	return out
}
