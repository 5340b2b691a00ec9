package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

const notificationColumns = "id, faculty_id, kind, recipient, subject, body, status, attempts, last_error, created_at, sent_at"

// NotificationRepository records faculty emails and their delivery state.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a pending notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (` + notificationColumns + `)
VALUES (:id, :faculty_id, :kind, :recipient, :subject, :body, :status, :attempts, :last_error, :created_at, :sent_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkSent records a successful delivery.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	const query = `UPDATE notifications SET status = $1, attempts = attempts + 1, last_error = NULL, sent_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, models.NotificationSent, sentAt, id); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `UPDATE notifications SET status = $1, attempts = attempts + 1, last_error = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, models.NotificationFailed, reason, id); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

// List returns notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var where whereBuilder
	if filter.FacultyID != "" {
		where.add("faculty_id = ?", filter.FacultyID)
	}
	if filter.Kind != "" {
		where.add("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}

	page := models.ListQuery{Page: filter.Page, PageSize: filter.PageSize}
	query := fmt.Sprintf("SELECT %s FROM notifications %s ORDER BY created_at DESC %s", notificationColumns, where.clause(), pageClause(page))

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}
