package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

func TestAnalyticsUtilization(t *testing.T) {
	lister := &detailListerStub{details: []models.ScheduleEntryDetail{
		gridDetail("a", models.Monday, "08:00", "10:00", "r1", "A-101"),
		gridDetail("b", models.Tuesday, "09:00", "10:00", "r1", "A-101"),
		gridDetail("c", models.Monday, "09:00", "10:00", "r2", "B-201"),
	}}
	svc := NewAnalyticsService(lister, nil, testGridConfig(t), zap.NewNop())

	report, err := svc.Utilization(context.Background(), "sem-1")
	require.NoError(t, err)

	assert.Equal(t, 300, report.WindowMinutes)
	assert.Equal(t, 3, report.TotalEntries)

	require.Len(t, report.Rooms, 2)
	assert.Equal(t, "r1", report.Rooms[0].ID)
	assert.Equal(t, 2, report.Rooms[0].Entries)
	assert.Equal(t, 180, report.Rooms[0].Minutes)
	assert.InDelta(t, 0.12, report.Rooms[0].Utilization, 1e-9)
	assert.Equal(t, "B-201", report.Rooms[1].Label)

	require.Len(t, report.Faculty, 3)
	assert.Equal(t, []string{"fac-a", "fac-b", "fac-c"}, []string{report.Faculty[0].ID, report.Faculty[1].ID, report.Faculty[2].ID})

	require.Len(t, report.Sections, 1)
	assert.Equal(t, 240, report.Sections[0].Minutes)
}

func TestAnalyticsUtilizationCachedUntilScheduleWrite(t *testing.T) {
	lister := &detailListerStub{details: []models.ScheduleEntryDetail{
		gridDetail("a", models.Monday, "08:00", "09:00", "r1", "A-101"),
	}}
	repo := newMemoryCache()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	cfg := testGridConfig(t)
	svc := NewAnalyticsService(lister, cache, cfg, zap.NewNop())
	grids := NewGridService(lister, cache, cfg, zap.NewNop())

	first, err := svc.Utilization(context.Background(), "sem-1")
	require.NoError(t, err)
	second, err := svc.Utilization(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, lister.calls)
	assert.Contains(t, repo.data, "grid:sem-1:analytics:utilization")

	grids.InvalidateSemester(context.Background(), "sem-1")
	_, err = svc.Utilization(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)
}

func TestAnalyticsUtilizationRequiresSemester(t *testing.T) {
	svc := NewAnalyticsService(&detailListerStub{}, nil, testGridConfig(t), nil)

	_, err := svc.Utilization(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
