// internal/services/audit_service.go
package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type AuditService struct {
	db *gorm.DB
	wg sync.WaitGroup
}

type AuditEntry struct {
	Actor        *workflow.Principal
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	FromStatus   string
	ToStatus     string
	Details      map[string]interface{}
	IPAddress    string
	UserAgent    string
}

type AuditSearchParams struct {
	utils.PaginationParams
	ActorID      *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

func (e AuditEntry) toModel() *models.AuditLog {
	log := &models.AuditLog{
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		FromStatus:   e.FromStatus,
		ToStatus:     e.ToStatus,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
	}
	if e.Actor != nil {
		id := e.Actor.UserID
		log.ActorID = &id
		log.ActorRole = string(e.Actor.Role)
	}
	if len(e.Details) > 0 {
		log.Details = datatypes.JSONMap(e.Details)
	}
	return log
}

// Record writes entry inside tx under a savepoint. A failed write is logged
// and rolled back to the savepoint so the enclosing transaction survives.
func (s *AuditService) Record(tx *gorm.DB, entry AuditEntry) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(entry.toModel()).Error
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"action":      entry.Action,
			"resource_id": entry.ResourceID,
		}).Error("Failed to write audit log")
	}
}

// RecordAsync writes entry outside any request transaction.
func (s *AuditService) RecordAsync(entry AuditEntry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.db.Create(entry.toModel()).Error; err != nil {
			logrus.WithError(err).WithField("action", entry.Action).Error("Failed to create audit log")
		}
	}()
}

// Wait blocks until pending asynchronous writes finish.
func (s *AuditService) Wait() {
	s.wg.Wait()
}

// List returns audit entries. Non-admin callers only see their own actions.
func (s *AuditService) List(p workflow.Principal, params *AuditSearchParams) ([]models.AuditLog, int64, error) {
	query := s.db.Model(&models.AuditLog{})

	if p.Role != workflow.RoleAdmin {
		query = query.Where("actor_id = ?", p.UserID)
	} else if params.ActorID != nil {
		query = query.Where("actor_id = ?", *params.ActorID)
	}
	if params.Action != "" {
		query = query.Where("action = ?", params.Action)
	}
	if params.ResourceType != "" {
		query = query.Where("resource_type = ?", params.ResourceType)
	}
	if params.ResourceID != nil {
		query = query.Where("resource_id = ?", *params.ResourceID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("failed to count audit logs", err)
	}

	var logs []models.AuditLog
	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "action"})
	if err := utils.ApplyPagination(query, params.PaginationParams).Find(&logs).Error; err != nil {
		return nil, 0, internalError("failed to list audit logs", err)
	}

	return logs, total, nil
}
