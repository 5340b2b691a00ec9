package models

import "time"

// NotificationKind identifies why a faculty member was emailed.
type NotificationKind string

const (
	NotificationScheduleCreated     NotificationKind = "SCHEDULE_CREATED"
	NotificationScheduleUpdated     NotificationKind = "SCHEDULE_UPDATED"
	NotificationScheduleDeactivated NotificationKind = "SCHEDULE_DEACTIVATED"
	NotificationScheduleDeleted     NotificationKind = "SCHEDULE_DELETED"
	NotificationWeeklyDigest        NotificationKind = "WEEKLY_DIGEST"
)

// NotificationStatus tracks delivery.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// Notification is a persisted email sent, or queued, for a faculty member.
type Notification struct {
	ID        string             `db:"id" json:"id"`
	FacultyID string             `db:"faculty_id" json:"faculty_id"`
	Kind      NotificationKind   `db:"kind" json:"kind"`
	Recipient string             `db:"recipient" json:"recipient"`
	Subject   string             `db:"subject" json:"subject"`
	Body      string             `db:"body" json:"body"`
	Status    NotificationStatus `db:"status" json:"status"`
	Attempts  int                `db:"attempts" json:"attempts"`
	LastError *string            `db:"last_error" json:"last_error,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	SentAt    *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
}

// NotificationFilter defines list options for sent notifications.
type NotificationFilter struct {
	FacultyID string
	Kind      NotificationKind
	Status    NotificationStatus
	Page      int
	PageSize  int
}

// NotificationMessage is the transport payload handed to the mail worker.
type NotificationMessage struct {
	NotificationID string           `json:"notification_id"`
	FacultyID      string           `json:"faculty_id"`
	Kind           NotificationKind `json:"kind"`
	Recipient      string           `json:"recipient"`
	RecipientName  string           `json:"recipient_name"`
	Subject        string           `json:"subject"`
	Body           string           `json:"body"`
	HTMLBody       string           `json:"html_body,omitempty"`
}
