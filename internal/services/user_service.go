// internal/services/user_service.go
package services

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type UserService struct {
	db *gorm.DB
}

type UpdateUserProfileRequest struct {
	FullName   *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	RegistryID *string `json:"registry_id,omitempty" validate:"omitempty,max=64"`
}

type AdminUserFilter struct {
	utils.PaginationParams
	Role        *workflow.Role
	InstituteID *uuid.UUID
	Search      string
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UpdateProfile edits the caller's own profile. The registry id is only
// meaningful for students.
func (s *UserService) UpdateProfile(p workflow.Principal, req *UpdateUserProfileRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(KindValidation, "validation failed", err)
	}
	if req.RegistryID != nil && p.Role != workflow.RoleStudent {
		return nil, validationError("only students carry a registry id")
	}

	var user models.User
	if err := s.db.Where("id = ?", p.UserID).First(&user).Error; err != nil {
		return nil, translate(err, "user")
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.RegistryID != nil {
		updates["registry_id"] = strings.TrimSpace(*req.RegistryID)
	}
	if len(updates) > 0 {
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, internalError("failed to update profile", err)
		}
	}

	if err := s.db.Preload("Institute").Where("id = ?", p.UserID).First(&user).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// List is the admin user directory.
func (s *UserService) List(filter *AdminUserFilter) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{})

	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.InstituteID != nil {
		query = query.Where("institute_id = ?", *filter.InstituteID)
	}
	if filter.Search != "" {
		searchTerm := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("(LOWER(username) LIKE ? OR LOWER(email) LIKE ?)", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("failed to count users", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "username", "email", "role"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var users []models.User
	if err := query.Preload("Institute").Find(&users).Error; err != nil {
		return nil, 0, internalError("failed to fetch users", err)
	}

	return users, total, nil
}
