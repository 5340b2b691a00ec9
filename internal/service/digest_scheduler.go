package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const digestRunTimeout = 10 * time.Minute

type weeklyDigestSender interface {
	SendWeeklyDigests(ctx context.Context) (int, error)
}

// DigestScheduler runs the weekly faculty digest on a cron schedule.
type DigestScheduler struct {
	cron   *cron.Cron
	sender weeklyDigestSender
	logger *zap.Logger
}

// NewDigestScheduler validates spec (standard five-field cron syntax) and
// registers the digest run.
func NewDigestScheduler(spec string, sender weeklyDigestSender, logger *zap.Logger) (*DigestScheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("DIGEST_CRON %q: %w", spec, err)
	}
	s := &DigestScheduler{cron: cron.New(), sender: sender, logger: defaultLogger(logger)}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule digest: %w", err)
	}
	return s, nil
}

// Start begins the cron loop in its own goroutine.
func (s *DigestScheduler) Start() {
	s.cron.Start()
	s.logger.Info("digest scheduler started", zap.Time("next_run", s.Next()))
}

// Stop halts scheduling and waits for a running digest to finish.
func (s *DigestScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next reports the next scheduled run.
func (s *DigestScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *DigestScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), digestRunTimeout)
	defer cancel()
	n, err := s.sender.SendWeeklyDigests(ctx)
	if err != nil {
		s.logger.Error("weekly digest run failed", zap.Error(err))
		return
	}
	s.logger.Info("weekly digest run finished", zap.Int("queued", n))
}
