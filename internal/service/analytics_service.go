package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

// teachingDays is the denominator week used for utilization ratios.
const teachingDays = 5

// ResourceLoad is the weekly load of one room, faculty member or section.
type ResourceLoad struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Entries     int     `json:"entries"`
	Minutes     int     `json:"minutes"`
	Utilization float64 `json:"utilization"`
}

// UtilizationReport aggregates active entries of a semester by resource.
type UtilizationReport struct {
	SemesterID    string         `json:"semester_id"`
	WindowMinutes int            `json:"window_minutes"`
	TotalEntries  int            `json:"total_entries"`
	Rooms         []ResourceLoad `json:"rooms"`
	Faculty       []ResourceLoad `json:"faculty"`
	Sections      []ResourceLoad `json:"sections"`
	Cached        bool           `json:"-"`
}

// AnalyticsService computes read-only schedule analytics with cache integration.
type AnalyticsService struct {
	schedules scheduleDetailLister
	cache     *CacheService
	cfg       GridServiceConfig
	logger    *zap.Logger
}

// NewAnalyticsService constructs an analytics service. cfg supplies the
// daily window the utilization ratio is measured against.
func NewAnalyticsService(schedules scheduleDetailLister, cache *CacheService, cfg GridServiceConfig, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{schedules: schedules, cache: cache, cfg: cfg, logger: defaultLogger(logger)}
}

// Utilization reports weekly minutes per room, faculty member and section.
// Utilization is minutes over the grid window of a five-day week.
func (s *AnalyticsService) Utilization(ctx context.Context, semesterID string) (*UtilizationReport, error) {
	if semesterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester_id is required")
	}

	// Kept under the grid namespace so schedule writes invalidate it too.
	cacheKey := fmt.Sprintf("grid:%s:analytics:utilization", semesterID)
	report, hit, err := Cached(ctx, s.cache, cacheKey, s.cfg.CacheTTL, func(ctx context.Context) (*UtilizationReport, error) {
		return s.utilization(ctx, semesterID)
	})
	if err != nil {
		return nil, err
	}
	report.Cached = hit
	return report, nil
}

func (s *AnalyticsService) utilization(ctx context.Context, semesterID string) (*UtilizationReport, error) {
	active := true
	details, err := s.schedules.ListDetails(ctx, models.ScheduleFilter{SemesterID: semesterID, Active: &active})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}

	window := int(s.cfg.Window.End - s.cfg.Window.Start)
	report := &UtilizationReport{
		SemesterID:    semesterID,
		WindowMinutes: window,
		TotalEntries:  len(details),
	}
	rooms := newLoadTable()
	faculty := newLoadTable()
	sections := newLoadTable()
	for _, d := range details {
		minutes := int(d.EndTime - d.StartTime)
		rooms.add(d.RoomID, d.RoomCode, minutes)
		faculty.add(d.FacultyID, d.FacultyName, minutes)
		sections.add(d.ClassSectionID, d.SectionName, minutes)
	}
	capacity := window * teachingDays
	report.Rooms = rooms.rows(capacity)
	report.Faculty = faculty.rows(capacity)
	report.Sections = sections.rows(capacity)

	s.logger.Debug("utilization computed", zap.String("semester_id", semesterID), zap.Int("entries", len(details)))
	return report, nil
}

type loadTable struct {
	order []string
	byID  map[string]*ResourceLoad
}

func newLoadTable() *loadTable {
	return &loadTable{byID: map[string]*ResourceLoad{}}
}

func (t *loadTable) add(id, label string, minutes int) {
	row, ok := t.byID[id]
	if !ok {
		row = &ResourceLoad{ID: id, Label: label}
		t.byID[id] = row
		t.order = append(t.order, id)
	}
	row.Entries++
	row.Minutes += minutes
}

// rows returns the loads busiest first, ties broken by label.
func (t *loadTable) rows(capacity int) []ResourceLoad {
	out := make([]ResourceLoad, 0, len(t.order))
	for _, id := range t.order {
		row := *t.byID[id]
		if capacity > 0 {
			row.Utilization = float64(row.Minutes) / float64(capacity)
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Minutes != out[j].Minutes {
			return out[i].Minutes > out[j].Minutes
		}
		return out[i].Label < out[j].Label
	})
	return out
}
