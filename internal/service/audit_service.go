package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"updown/internal/models"
	"updown/internal/repository"
)

// AuditService appends best-effort audit records. Failures are logged and
// swallowed so the audit trail never blocks a trade.
type AuditService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

type AuditContext struct {
	UserID    *uint64
	IPAddress string
	UserAgent string
}

func (s *AuditService) Record(ctx context.Context, ac AuditContext, action string, details map[string]any) {
	if s == nil || s.Repo == nil || action == "" {
		return
	}
	var raw []byte
	if details != nil {
		raw, _ = json.Marshal(details)
	}
	entry := &models.AuditEntry{
		UserID:    ac.UserID,
		Action:    action,
		Details:   datatypes.JSON(raw),
		IPAddress: ac.IPAddress,
		UserAgent: ac.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.InsertAuditEntry(ctx, entry); err != nil && s.Logger != nil {
		s.Logger.Warn("audit insert failed", zap.String("action", action), zap.Error(err))
	}
}
