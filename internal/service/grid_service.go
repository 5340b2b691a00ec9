package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/scheduling"
	"github.com/noah-isme/college-scheduling-api/pkg/config"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

type scheduleDetailLister interface {
	ListDetails(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntryDetail, error)
}

// GridServiceConfig is the parsed timetable window.
type GridServiceConfig struct {
	Window    scheduling.Window
	SlotWidth time.Duration
	Policy    scheduling.SlotPolicy
	CacheTTL  time.Duration
}

// GridConfigFrom parses the grid section of the process configuration.
func GridConfigFrom(cfg config.GridConfig) (GridServiceConfig, error) {
	start, err := models.ParseClockTime(cfg.DayStart)
	if err != nil {
		return GridServiceConfig{}, fmt.Errorf("GRID_DAY_START: %w", err)
	}
	end, err := models.ParseClockTime(cfg.DayEnd)
	if err != nil {
		return GridServiceConfig{}, fmt.Errorf("GRID_DAY_END: %w", err)
	}
	policy, err := scheduling.ParseSlotPolicy(cfg.SlotPolicy)
	if err != nil {
		return GridServiceConfig{}, fmt.Errorf("GRID_SLOT_POLICY: %w", err)
	}
	out := GridServiceConfig{
		Window:    scheduling.Window{Start: start, End: end},
		SlotWidth: time.Duration(cfg.SlotMinutes) * time.Minute,
		Policy:    policy,
		CacheTTL:  cfg.CacheTTL,
	}
	if _, err := scheduling.GenerateSlots(out.Window, out.SlotWidth, out.Policy); err != nil {
		return GridServiceConfig{}, err
	}
	return out, nil
}

// GridRequest selects one grid, or a week of grids when Day is nil.
type GridRequest struct {
	SemesterID string
	Mode       models.GridMode
	Day        *models.Weekday
	ColumnID   string
}

// DayGrid is the timetable of one day. Cell entry indexes point into Entries.
type DayGrid struct {
	Day      models.Weekday               `json:"day"`
	DayLabel string                       `json:"day_label"`
	Grid     scheduling.Grid              `json:"grid"`
	Entries  []models.ScheduleEntryDetail `json:"entries"`
}

// GridView is the grid response shared by the JSON endpoint and the exporters.
type GridView struct {
	SemesterID string          `json:"semester_id"`
	Mode       models.GridMode `json:"mode"`
	ColumnID   string          `json:"column_id,omitempty"`
	Days       []DayGrid       `json:"days"`
	// Cached is set when the view came from the grid cache.
	Cached bool `json:"-"`
}

// GridService builds timetable grids and caches them in Redis.
type GridService struct {
	schedules scheduleDetailLister
	cache     *CacheService
	cfg       GridServiceConfig
	logger    *zap.Logger
}

// NewGridService constructs a GridService.
func NewGridService(schedules scheduleDetailLister, cache *CacheService, cfg GridServiceConfig, logger *zap.Logger) *GridService {
	if cfg.SlotWidth <= 0 {
		cfg.SlotWidth = 30 * time.Minute
	}
	if cfg.Window.End <= cfg.Window.Start {
		cfg.Window = scheduling.Window{Start: models.NewClockTime(7, 0), End: models.NewClockTime(21, 0)}
	}
	if cfg.Policy == "" {
		cfg.Policy = scheduling.SlotPolicyClamp
	}
	return &GridService{schedules: schedules, cache: cache, cfg: cfg, logger: defaultLogger(logger)}
}

// Slots returns the configured time slots.
func (s *GridService) Slots() ([]scheduling.Slot, error) {
	return scheduling.GenerateSlots(s.cfg.Window, s.cfg.SlotWidth, s.cfg.Policy)
}

// Build lays out the active entries of a semester. Without a day it returns
// Monday to Friday plus any weekend day that has classes.
func (s *GridService) Build(ctx context.Context, req GridRequest) (*GridView, error) {
	if req.SemesterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester_id is required")
	}
	if req.Mode == "" {
		req.Mode = models.GridModeRoom
	}
	key, ok := gridKey(req.Mode)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grid mode %q", req.Mode))
	}
	if req.Day != nil && !req.Day.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day must be between 0 and 6")
	}

	view, hit, err := Cached(ctx, s.cache, gridCacheKey(req), s.cfg.CacheTTL, func(ctx context.Context) (*GridView, error) {
		return s.layout(ctx, req, key)
	})
	if err != nil {
		return nil, err
	}
	view.Cached = hit
	return view, nil
}

func (s *GridService) layout(ctx context.Context, req GridRequest, key scheduling.Key) (*GridView, error) {
	slots, err := s.Slots()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid grid configuration")
	}

	active := true
	details, err := s.schedules.ListDetails(ctx, models.ScheduleFilter{SemesterID: req.SemesterID, Active: &active})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}
	if req.ColumnID != "" {
		details = filterByColumn(details, req.Mode, req.ColumnID)
	}
	columns := gridColumns(details, req.Mode)

	view := &GridView{SemesterID: req.SemesterID, Mode: req.Mode, ColumnID: req.ColumnID, Days: []DayGrid{}}
	for _, day := range gridDays(details, req.Day) {
		dayDetails := detailsForDay(details, day)
		entries := make([]models.ScheduleEntry, len(dayDetails))
		for i, d := range dayDetails {
			entries[i] = d.ScheduleEntry
		}
		view.Days = append(view.Days, DayGrid{
			Day:      day,
			DayLabel: day.Label(),
			Grid:     scheduling.Layout(entries, slots, columns, key),
			Entries:  dayDetails,
		})
	}
	return view, nil
}

// InvalidateSemester drops every cached grid of the semester.
func (s *GridService) InvalidateSemester(ctx context.Context, semesterID string) {
	s.cache.Invalidate(ctx, fmt.Sprintf("grid:%s:*", semesterID))
}

func gridCacheKey(req GridRequest) string {
	day := "week"
	if req.Day != nil {
		day = fmt.Sprintf("%d", int(*req.Day))
	}
	column := req.ColumnID
	if column == "" {
		column = "all"
	}
	return fmt.Sprintf("grid:%s:%s:%s:%s", req.SemesterID, req.Mode, day, column)
}

func gridKey(mode models.GridMode) (scheduling.Key, bool) {
	switch mode {
	case models.GridModeRoom:
		return scheduling.ByRoom, true
	case models.GridModeFaculty:
		return scheduling.ByFaculty, true
	case models.GridModeSection:
		return scheduling.BySection, true
	}
	return nil, false
}

func columnOf(d models.ScheduleEntryDetail, mode models.GridMode) scheduling.Column {
	switch mode {
	case models.GridModeFaculty:
		return scheduling.Column{ID: d.FacultyID, Label: d.FacultyName}
	case models.GridModeSection:
		return scheduling.Column{ID: d.ClassSectionID, Label: d.SectionName}
	default:
		return scheduling.Column{ID: d.RoomID, Label: d.RoomCode}
	}
}

// gridColumns lists the distinct resources of the entries, sorted by label.
func gridColumns(details []models.ScheduleEntryDetail, mode models.GridMode) []scheduling.Column {
	seen := make(map[string]bool)
	columns := []scheduling.Column{}
	for _, d := range details {
		col := columnOf(d, mode)
		if col.ID == "" || seen[col.ID] {
			continue
		}
		seen[col.ID] = true
		if col.Label == "" {
			col.Label = col.ID
		}
		columns = append(columns, col)
	}
	sort.SliceStable(columns, func(i, j int) bool {
		if columns[i].Label != columns[j].Label {
			return columns[i].Label < columns[j].Label
		}
		return columns[i].ID < columns[j].ID
	})
	return columns
}

func filterByColumn(details []models.ScheduleEntryDetail, mode models.GridMode, columnID string) []models.ScheduleEntryDetail {
	var out []models.ScheduleEntryDetail
	for _, d := range details {
		if columnOf(d, mode).ID == columnID {
			out = append(out, d)
		}
	}
	return out
}

func gridDays(details []models.ScheduleEntryDetail, day *models.Weekday) []models.Weekday {
	if day != nil {
		return []models.Weekday{*day}
	}
	used := make(map[models.Weekday]bool)
	for _, d := range details {
		used[d.DayOfWeek] = true
	}
	var days []models.Weekday
	for _, d := range models.Weekdays() {
		if d <= models.Friday || used[d] {
			days = append(days, d)
		}
	}
	return days
}

func detailsForDay(details []models.ScheduleEntryDetail, day models.Weekday) []models.ScheduleEntryDetail {
	out := []models.ScheduleEntryDetail{}
	for _, d := range details {
		if d.DayOfWeek == day {
			out = append(out, d)
		}
	}
	return out
}
