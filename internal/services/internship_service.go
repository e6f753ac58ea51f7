// internal/services/internship_service.go
package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type InternshipService struct {
	db           *gorm.DB
	auditService *AuditService
}

type CreateInternshipRequest struct {
	Title         string     `json:"title" validate:"notblank,max=255"`
	Description   string     `json:"description" validate:"max=10000"`
	Policy        string     `json:"policy" validate:"required,policy"`
	ExpectedHours float64    `json:"expected_hours" validate:"gte=0"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

type UpdateInternshipRequest struct {
	Title         *string    `json:"title,omitempty" validate:"omitempty,notblank,max=255"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,max=10000"`
	Policy        *string    `json:"policy,omitempty" validate:"omitempty,policy"`
	ExpectedHours *float64   `json:"expected_hours,omitempty" validate:"omitempty,gte=0"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

type InternshipSearchParams struct {
	utils.PaginationParams
	Mine   bool
	Policy *credits.Policy
	Search string
}

func NewInternshipService(db *gorm.DB, auditService *AuditService) *InternshipService {
	return &InternshipService{db: db, auditService: auditService}
}

func (s *InternshipService) Create(p workflow.Principal, req *CreateInternshipRequest) (*models.Internship, error) {
	if p.Role != workflow.RoleCompany {
		return nil, forbidden("only companies can post internships")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(KindValidation, "validation failed", err)
	}
	policy, err := credits.ParsePolicy(req.Policy)
	if err != nil {
		return nil, translate(err, "internship")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, validationError("end_date must not be before start_date")
	}

	internship := &models.Internship{
		CompanyID:     p.UserID,
		Title:         req.Title,
		Description:   req.Description,
		Policy:        policy,
		ExpectedHours: req.ExpectedHours,
		IsOpen:        true,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(internship).Error; err != nil {
			return translate(err, "internship")
		}
		s.auditService.Record(tx, AuditEntry{
			Actor:        &p,
			Action:       "create_internship",
			ResourceType: "internship",
			ResourceID:   &internship.ID,
			Details:      map[string]interface{}{"policy": string(policy)},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return internship, nil
}

func (s *InternshipService) loadOwned(tx *gorm.DB, p workflow.Principal, id uuid.UUID) (*models.Internship, error) {
	if p.Role != workflow.RoleCompany {
		return nil, forbidden("only the owning company can modify an internship")
	}
	var internship models.Internship
	if err := tx.Where("id = ?", id).First(&internship).Error; err != nil {
		return nil, translate(err, "internship")
	}
	if internship.CompanyID != p.UserID {
		return nil, forbidden("internship belongs to another company")
	}
	return &internship, nil
}

// Update edits an internship. Once any application exists the internship is
// frozen apart from the open/closed toggle.
func (s *InternshipService) Update(p workflow.Principal, id uuid.UUID, req *UpdateInternshipRequest) (*models.Internship, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(KindValidation, "validation failed", err)
	}

	var internship *models.Internship
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		internship, err = s.loadOwned(tx, p, id)
		if err != nil {
			return err
		}

		var applications int64
		if err := tx.Model(&models.Application{}).Where("internship_id = ?", id).Count(&applications).Error; err != nil {
			return internalError("failed to count applications", err)
		}
		if applications > 0 {
			return newError(KindConflict, "internship cannot be edited once applications exist", nil)
		}

		if req.Title != nil {
			internship.Title = *req.Title
		}
		if req.Description != nil {
			internship.Description = *req.Description
		}
		if req.Policy != nil {
			policy, err := credits.ParsePolicy(*req.Policy)
			if err != nil {
				return translate(err, "internship")
			}
			internship.Policy = policy
		}
		if req.ExpectedHours != nil {
			internship.ExpectedHours = *req.ExpectedHours
		}
		if req.StartDate != nil {
			internship.StartDate = req.StartDate
		}
		if req.EndDate != nil {
			internship.EndDate = req.EndDate
		}
		if internship.StartDate != nil && internship.EndDate != nil && internship.EndDate.Before(*internship.StartDate) {
			return validationError("end_date must not be before start_date")
		}

		if err := tx.Save(internship).Error; err != nil {
			return internalError("failed to update internship", err)
		}
		s.auditService.Record(tx, AuditEntry{
			Actor:        &p,
			Action:       "update_internship",
			ResourceType: "internship",
			ResourceID:   &internship.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return internship, nil
}

// Toggle flips the open flag; it is always permitted for the owner.
func (s *InternshipService) Toggle(p workflow.Principal, id uuid.UUID) (*models.Internship, error) {
	var internship *models.Internship
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		internship, err = s.loadOwned(tx, p, id)
		if err != nil {
			return err
		}
		internship.IsOpen = !internship.IsOpen
		if err := tx.Model(internship).Update("is_open", internship.IsOpen).Error; err != nil {
			return internalError("failed to toggle internship", err)
		}
		s.auditService.Record(tx, AuditEntry{
			Actor:        &p,
			Action:       "toggle_internship",
			ResourceType: "internship",
			ResourceID:   &internship.ID,
			Details:      map[string]interface{}{"is_open": internship.IsOpen},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return internship, nil
}

func (s *InternshipService) Get(p workflow.Principal, id uuid.UUID) (*models.Internship, error) {
	var internship models.Internship
	if err := s.db.Preload("Company").Where("id = ?", id).First(&internship).Error; err != nil {
		return nil, translate(err, "internship")
	}
	if p.Role == workflow.RoleStudent && !internship.IsOpen {
		return nil, notFound("internship")
	}
	return &internship, nil
}

// List shows open internships to students and everything to other roles.
func (s *InternshipService) List(p workflow.Principal, params *InternshipSearchParams) ([]models.Internship, int64, error) {
	query := s.db.Model(&models.Internship{})

	switch {
	case p.Role == workflow.RoleStudent:
		query = query.Where("is_open = ?", true)
	case p.Role == workflow.RoleCompany && params.Mine:
		query = query.Where("company_id = ?", p.UserID)
	}
	if params.Policy != nil {
		query = query.Where("policy = ?", *params.Policy)
	}
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("(title LIKE ? OR description LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("failed to count internships", err)
	}

	var internships []models.Internship
	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "title", "expected_hours"})
	if err := utils.ApplyPagination(query, params.PaginationParams).Preload("Company").
		Find(&internships).Error; err != nil {
		return nil, 0, internalError("failed to list internships", err)
	}

	return internships, total, nil
}
