package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/jobs"
	"github.com/noah-isme/college-scheduling-api/pkg/mailer"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
}

type facultyDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	ListActive(ctx context.Context) ([]models.Faculty, error)
}

// notificationPublisher hands an encoded NotificationMessage to a transport.
type notificationPublisher interface {
	Publish(ctx context.Context, messageID string, body []byte) error
}

// QueuePublisher is the memory transport: messages go to the in-process job queue.
type QueuePublisher struct {
	queue jobDispatcher
}

// NewQueuePublisher wraps a job queue as a notification transport.
func NewQueuePublisher(queue jobDispatcher) *QueuePublisher {
	return &QueuePublisher{queue: queue}
}

// Publish enqueues the message as a notification job.
func (p *QueuePublisher) Publish(ctx context.Context, messageID string, body []byte) error {
	return p.queue.Enqueue(ctx, jobs.Job{ID: messageID, Kind: jobs.KindNotification, Payload: body})
}

// NotificationServiceParams groups the notification service collaborators.
// API processes set Publisher; the mail worker only needs Sender.
type NotificationServiceParams struct {
	Repo      notificationStore
	Faculty   facultyDirectory
	Schedules scheduleDetailLister
	Semesters activeSemesterReader
	Publisher notificationPublisher
	Sender    mailer.Sender
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// NotificationService records faculty emails, publishes them to the
// configured transport and delivers them through the mailer.
type NotificationService struct {
	repo      notificationStore
	faculty   facultyDirectory
	schedules scheduleDetailLister
	semesters activeSemesterReader
	publisher notificationPublisher
	sender    mailer.Sender
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService constructs the service.
func NewNotificationService(params NotificationServiceParams) *NotificationService {
	return &NotificationService{
		repo:      params.Repo,
		faculty:   params.Faculty,
		schedules: params.Schedules,
		semesters: params.Semesters,
		publisher: params.Publisher,
		sender:    params.Sender,
		metrics:   params.Metrics,
		logger:    defaultLogger(params.Logger),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NotifyScheduleChange emails the faculty member of entry. Failures are
// logged, they never fail the schedule write that triggered them.
func (s *NotificationService) NotifyScheduleChange(ctx context.Context, kind models.NotificationKind, entry models.ScheduleEntryDetail) {
	if entry.FacultyEmail == "" {
		s.logger.Warn("faculty has no email, notification skipped", zap.String("faculty_id", entry.FacultyID), zap.String("schedule_id", entry.ID))
		return
	}
	subject, text, html, err := renderChange(kind, entry)
	if err != nil {
		s.logger.Error("render schedule notification", zap.String("schedule_id", entry.ID), zap.Error(err))
		return
	}
	msg := models.NotificationMessage{
		FacultyID:     entry.FacultyID,
		Kind:          kind,
		Recipient:     entry.FacultyEmail,
		RecipientName: entry.FacultyName,
		Subject:       subject,
		Body:          text,
		HTMLBody:      html,
	}
	if _, err := s.enqueue(ctx, msg); err != nil {
		s.logger.Warn("schedule notification not queued", zap.String("schedule_id", entry.ID), zap.String("kind", string(kind)), zap.Error(err))
	}
}

// SendDigest queues the weekly timetable of one faculty member for the active semester.
func (s *NotificationService) SendDigest(ctx context.Context, facultyID string) (*models.Notification, error) {
	faculty, err := s.faculty.FindByID(ctx, facultyID)
	if err != nil {
		return nil, repoError(err, "faculty", "load")
	}
	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		return nil, repoError(err, "active semester", "load")
	}
	return s.sendDigest(ctx, *faculty, *semester)
}

// SendWeeklyDigests queues a digest for every active faculty member with at
// least one class. It returns the number of digests queued.
func (s *NotificationService) SendWeeklyDigests(ctx context.Context) (int, error) {
	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		return 0, repoError(err, "active semester", "load")
	}
	faculty, err := s.faculty.ListActive(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}
	sent := 0
	for _, f := range faculty {
		n, err := s.sendDigest(ctx, f, *semester)
		if err != nil {
			s.logger.Warn("weekly digest failed", zap.String("faculty_id", f.ID), zap.Error(err))
			continue
		}
		if n != nil {
			sent++
		}
	}
	s.logger.Info("weekly digests queued", zap.Int("count", sent), zap.String("semester_id", semester.ID))
	return sent, nil
}

func (s *NotificationService) sendDigest(ctx context.Context, faculty models.Faculty, semester models.Semester) (*models.Notification, error) {
	active := true
	entries, err := s.schedules.ListDetails(ctx, models.ScheduleFilter{SemesterID: semester.ID, FacultyID: faculty.ID, Active: &active})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if len(entries) == 0 {
		return nil, nil
	}
	subject, text, html, err := renderDigest(faculty, semester, entries)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render digest")
	}
	return s.enqueue(ctx, models.NotificationMessage{
		FacultyID:     faculty.ID,
		Kind:          models.NotificationWeeklyDigest,
		Recipient:     faculty.Email,
		RecipientName: faculty.FullName,
		Subject:       subject,
		Body:          text,
		HTMLBody:      html,
	})
}

// enqueue persists a PENDING notification and publishes it.
func (s *NotificationService) enqueue(ctx context.Context, msg models.NotificationMessage) (*models.Notification, error) {
	n := &models.Notification{
		FacultyID: msg.FacultyID,
		Kind:      msg.Kind,
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    models.NotificationPending,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record notification")
	}
	msg.NotificationID = n.ID

	body, err := json.Marshal(msg)
	if err == nil {
		err = s.publish(ctx, n.ID, body)
	}
	if err != nil {
		s.markFailed(ctx, n.ID, err.Error())
		s.metrics.RecordNotification(string(msg.Kind), "failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue notification")
	}
	s.metrics.RecordNotification(string(msg.Kind), "queued")
	return n, nil
}

func (s *NotificationService) publish(ctx context.Context, id string, body []byte) error {
	if s.publisher == nil {
		return fmt.Errorf("no notification transport configured")
	}
	return s.publisher.Publish(ctx, id, body)
}

// Deliver sends one message and records the outcome.
func (s *NotificationService) Deliver(ctx context.Context, msg models.NotificationMessage) error {
	if s.sender == nil {
		return fmt.Errorf("no mail sender configured")
	}
	err := s.sender.Send(ctx, mailer.Message{
		To:      msg.Recipient,
		ToName:  msg.RecipientName,
		Subject: msg.Subject,
		Text:    msg.Body,
		HTML:    msg.HTMLBody,
	})
	if err != nil {
		s.markFailed(ctx, msg.NotificationID, err.Error())
		s.metrics.RecordNotification(string(msg.Kind), "failed")
		return err
	}
	if msg.NotificationID != "" {
		if err := s.repo.MarkSent(ctx, msg.NotificationID, s.now()); err != nil {
			s.logger.Warn("failed to mark notification sent", zap.String("notification_id", msg.NotificationID), zap.Error(err))
		}
	}
	s.metrics.RecordNotification(string(msg.Kind), "sent")
	s.logger.Info("notification delivered", zap.String("notification_id", msg.NotificationID), zap.String("kind", string(msg.Kind)))
	return nil
}

// HandleJob is the memory transport handler for the job queue.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	return s.HandleDelivery(ctx, job.Payload)
}

// HandleDelivery decodes a transport message and delivers it. Undecodable
// bodies are permanent failures.
func (s *NotificationService) HandleDelivery(ctx context.Context, body []byte) error {
	var msg models.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return jobs.Permanent(fmt.Errorf("decode notification: %w", err))
	}
	if msg.Recipient == "" {
		return jobs.Permanent(fmt.Errorf("notification %s has no recipient", msg.NotificationID))
	}
	return s.Deliver(ctx, msg)
}

// List returns recorded notifications, newest first.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, models.ListQuery{Page: filter.Page, PageSize: filter.PageSize}.Pagination(total), nil
}

func (s *NotificationService) markFailed(ctx context.Context, id, reason string) {
	if id == "" {
		return
	}
	if err := s.repo.MarkFailed(ctx, id, reason); err != nil {
		s.logger.Warn("failed to mark notification failed", zap.String("notification_id", id), zap.Error(err))
	}
}
