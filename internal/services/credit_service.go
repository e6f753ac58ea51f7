// internal/services/credit_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type CreditService struct {
	db                  *gorm.DB
	registry            RegistryClient
	notificationService *NotificationService
	auditService        *AuditService
}

type CreditSearchParams struct {
	utils.PaginationParams
	Status  *models.CreditStatus
	Policy  *credits.Policy
	Flagged *bool
}

type CreditSummary struct {
	TotalCredits    float64 `json:"total_credits"`
	ApprovedCredits float64 `json:"approved_credits"`
	PendingCredits  float64 `json:"pending_credits"`
	ApprovedHours   float64 `json:"approved_hours"`
	Records         int64   `json:"records"`
	PushedRecords   int64   `json:"pushed_records"`
}

func NewCreditService(db *gorm.DB, registry RegistryClient, notificationService *NotificationService, auditService *AuditService) *CreditService {
	return &CreditService{
		db:                  db,
		registry:            registry,
		notificationService: notificationService,
		auditService:        auditService,
	}
}

func scopeCredits(query *gorm.DB, p workflow.Principal) *gorm.DB {
	switch p.Role {
	case workflow.RoleAdmin:
		return query
	case workflow.RoleStudent:
		return query.Where("credit_records.student_id = ?", p.UserID)
	case workflow.RoleCompany:
		sub := query.Session(&gorm.Session{NewDB: true}).
			Model(&models.Application{}).
			Select("applications.id").
			Joins("JOIN internships ON internships.id = applications.internship_id").
			Where("internships.company_id = ?", p.UserID)
		return query.Where("credit_records.application_id IN (?)", sub)
	case workflow.RoleInstitute:
		if p.InstituteID == nil {
			return query.Where("1 = 0")
		}
		return query.Where("credit_records.institute_id = ?", *p.InstituteID)
	}
	return query.Where("1 = 0")
}

func (s *CreditService) List(p workflow.Principal, params *CreditSearchParams) ([]models.CreditRecord, int64, error) {
	query := scopeCredits(s.db.Model(&models.CreditRecord{}), p)

	if params.Status != nil {
		query = query.Where("credit_records.status = ?", *params.Status)
	}
	if params.Policy != nil {
		query = query.Where("credit_records.policy_type = ?", *params.Policy)
	}
	if params.Flagged != nil {
		query = query.Where("credit_records.is_flagged = ?", *params.Flagged)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("failed to count credit records", err)
	}

	var records []models.CreditRecord
	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "credits_calculated", "hours"})
	if err := utils.ApplyPagination(query, params.PaginationParams).
		Preload("Application.Internship").Preload("Student").Preload("Institute").
		Find(&records).Error; err != nil {
		return nil, 0, internalError("failed to list credit records", err)
	}

	return records, total, nil
}

// Summary totals a student's credits. Rejected records are excluded.
func (s *CreditService) Summary(p workflow.Principal) (*CreditSummary, error) {
	if p.Role != workflow.RoleStudent {
		return nil, forbidden("credit summary is only available to students")
	}

	var records []models.CreditRecord
	if err := s.db.Where("student_id = ?", p.UserID).Find(&records).Error; err != nil {
		return nil, internalError("failed to load credit records", err)
	}

	approved, pending, hours := decimal.Zero, decimal.Zero, decimal.Zero
	summary := &CreditSummary{}
	for _, r := range records {
		summary.Records++
		if r.IsPushedToExternalRegistry {
			summary.PushedRecords++
		}
		switch r.Status {
		case models.CreditStatusApproved:
			approved = approved.Add(decimal.NewFromFloat(r.CreditsCalculated))
			hours = hours.Add(decimal.NewFromFloat(r.Hours))
		case models.CreditStatusPending:
			pending = pending.Add(decimal.NewFromFloat(r.CreditsCalculated))
		}
	}

	summary.ApprovedCredits = approved.Round(2).InexactFloat64()
	summary.PendingCredits = pending.Round(2).InexactFloat64()
	summary.TotalCredits = approved.Add(pending).Round(2).InexactFloat64()
	summary.ApprovedHours = hours.Round(2).InexactFloat64()
	return summary, nil
}

// PushToRegistry submits an approved credit record to the external registry.
// The pushed flag is set with a compare-and-swap so a record is pushed at most
// once even under concurrent requests.
func (s *CreditService) PushToRegistry(ctx context.Context, p workflow.Principal, applicationID uuid.UUID) (*models.CreditRecord, error) {
	if p.Role != workflow.RoleInstitute {
		return nil, forbidden("only institutes can push credits to the registry")
	}

	var record models.CreditRecord
	if err := s.db.Preload("Student").Preload("Application.Internship").
		Where("application_id = ?", applicationID).First(&record).Error; err != nil {
		return nil, translate(err, "credit record")
	}
	if !p.BelongsTo(record.InstituteID) {
		return nil, forbidden("student is affiliated with another institute")
	}
	if record.Status != models.CreditStatusApproved {
		return nil, invalidTransition("only approved credits can be pushed")
	}
	if record.IsPushedToExternalRegistry {
		return nil, invalidTransition("credits were already pushed")
	}
	if record.Student == nil || record.Student.RegistryID == "" {
		return nil, validationError("student has no registry (APAAR) id")
	}

	title := ""
	if record.Application != nil && record.Application.Internship != nil {
		title = record.Application.Internship.Title
	}
	approvedAt := record.UpdatedAt
	if record.ReviewedAt != nil {
		approvedAt = *record.ReviewedAt
	}
	sub := RegistrySubmission{
		CreditRecordID: record.ID,
		ApplicationID:  record.ApplicationID,
		StudentID:      record.Student.RegistryID,
		Policy:         string(record.PolicyType),
		Hours:          record.Hours,
		Credits:        record.CreditsCalculated,
		Title:          title,
		ApprovedAt:     approvedAt,
	}
	if record.InstituteID != nil {
		sub.InstituteID = record.InstituteID.String()
	}

	receipt, err := s.registry.Push(ctx, sub)
	if err != nil {
		logrus.WithError(err).WithField("credit_record_id", record.ID).Error("Registry push failed")
		return nil, newError(KindUpstream, "credit registry is unavailable", err)
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CreditRecord{}).
			Where("id = ? AND status = ? AND is_pushed_to_external_registry = ?", record.ID, models.CreditStatusApproved, false).
			Updates(map[string]interface{}{
				"is_pushed_to_external_registry": true,
				"pushed_at":                      now,
				"registry_receipt":               receipt,
			})
		if res.Error != nil {
			return internalError("failed to update credit record", res.Error)
		}
		if res.RowsAffected == 0 {
			return invalidTransition("credits were already pushed")
		}

		s.auditService.Record(tx, AuditEntry{
			Actor:        &p,
			Action:       "push_to_registry",
			ResourceType: "credit_record",
			ResourceID:   &record.ID,
			Details:      map[string]interface{}{"receipt": receipt, "application_id": applicationID.String()},
		})
		s.notificationService.OnRegistryPush(tx, &record, title)
		return nil
	})
	if err != nil {
		return nil, err
	}

	record.IsPushedToExternalRegistry = true
	record.PushedAt = &now
	record.RegistryReceipt = receipt
	return &record, nil
}
