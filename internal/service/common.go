package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/repository"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

// auditRecorder persists audit trail entries.
type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Actor identifies who performed a mutation and from where.
type Actor struct {
	UserID string
	Role   models.UserRole
	Email  string
	Meta   models.RequestMeta
}

func defaultValidator(v *validation.Validator) *validation.Validator {
	if v == nil {
		return validation.MustNew()
	}
	return v
}

func defaultLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// recordAudit writes an audit entry. Failures are logged, never returned.
func recordAudit(ctx context.Context, recorder auditRecorder, logger *zap.Logger, actor Actor, action, resource, resourceID string, oldValues, newValues interface{}) {
	if recorder == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		OldValues: auditPayload(oldValues),
		NewValues: auditPayload(newValues),
		IPAddress: actor.Meta.IP,
		UserAgent: actor.Meta.UserAgent,
	}
	if actor.UserID != "" {
		uid := actor.UserID
		entry.UserID = &uid
	}
	if resourceID != "" {
		rid := resourceID
		entry.ResourceID = &rid
	}
	if err := recorder.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("resource", resource), zap.String("action", action), zap.Error(err))
	}
}

func auditPayload(v interface{}) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// repoError maps repository failures onto API errors for the named resource.
func repoError(err error, resource, action string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, resource+" already exists")
	case errors.Is(err, repository.ErrReferenced):
		if action == "delete" {
			return appErrors.Wrap(err, appErrors.ErrInUse.Code, appErrors.ErrInUse.Status, resource+" is still referenced")
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "referenced record does not exist")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to %s %s", action, resource))
	}
}
