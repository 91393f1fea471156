package service

import (
	"context"
	"encoding/json"

	"einvoice/internal/logger"
	"einvoice/internal/model"
	"einvoice/internal/repository"

	"go.uber.org/zap"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, actor Actor, action string, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs pages through the organization's audit trail, newest first
func (s *auditService) GetAuditLogs(ctx context.Context, actor Actor, action string, page, limit int) ([]AuditLogResponse, int64, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return nil, 0, err
	}

	logs, total, err := s.repo.List(ctx, orgID, action, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}

// auditor writes audit rows. Inside a transaction a failed write aborts the
// transaction; record only logs the failure.
type auditor struct {
	repo repository.AuditRepository
}

func (a auditor) entry(actor Actor, action, entityID, entityName string, details map[string]interface{}) *model.AuditLog {
	raw, _ := json.Marshal(details)
	return &model.AuditLog{
		OrganizationID: actor.OrganizationID,
		UserID:         actor.userRef(),
		Action:         action,
		EntityID:       entityID,
		EntityName:     entityName,
		Details:        string(raw),
	}
}

func (a auditor) write(ctx context.Context, actor Actor, action, entityID, entityName string, details map[string]interface{}) error {
	return a.repo.Log(ctx, a.entry(actor, action, entityID, entityName, details))
}

func (a auditor) record(ctx context.Context, actor Actor, action, entityID, entityName string, details map[string]interface{}) {
	if err := a.write(ctx, actor, action, entityID, entityName, details); err != nil {
		logger.FromContext(ctx).Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
