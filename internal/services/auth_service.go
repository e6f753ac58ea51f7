// internal/services/auth_service.go
package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/config"
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

type LoginRequest struct {
	// Login accepts a username or an email address.
	Login    string `json:"login" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username      string `json:"username" validate:"required,username"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8,max=72"`
	FullName      string `json:"full_name" validate:"max=255"`
	Role          string `json:"role" validate:"required,oneof=student company institute"`
	InstituteName string `json:"institute_name" validate:"required_if=Role student,required_if=Role institute,max=255"`
	RegistryID    string `json:"registry_id" validate:"max=64"`
}

type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{
		db:  db,
		cfg: cfg,
	}
}

// Register creates a student, company or institute account. Admin accounts
// are only ever seeded.
func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	if strings.EqualFold(strings.TrimSpace(req.Role), string(workflow.RoleAdmin)) {
		return nil, forbidden("admin accounts cannot be self-registered")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(KindValidation, "validation failed", err)
	}
	role, err := workflow.ParseRole(req.Role)
	if err != nil {
		return nil, validationError(err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user := &models.User{
		Username:   req.Username,
		Email:      email,
		FullName:   strings.TrimSpace(req.FullName),
		Role:       role,
		RegistryID: strings.TrimSpace(req.RegistryID),
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, internalError("failed to hash password", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).
			Where("email = ? OR username = ?", email, req.Username).
			Count(&existing).Error; err != nil {
			return internalError("failed to check existing users", err)
		}
		if existing > 0 {
			return newError(KindConflict, "a user with this username or email already exists", nil)
		}

		if name := strings.TrimSpace(req.InstituteName); name != "" && role != workflow.RoleCompany {
			institute, err := findOrCreateInstitute(tx, name)
			if err != nil {
				return err
			}
			if role == workflow.RoleInstitute {
				if err := ensureUnclaimed(tx, institute.ID); err != nil {
					return err
				}
			}
			user.InstituteID = &institute.ID
		}

		if err := tx.Create(user).Error; err != nil {
			return translate(err, "user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

func findOrCreateInstitute(tx *gorm.DB, name string) (*models.Institute, error) {
	var institute models.Institute
	err := tx.Where("LOWER(name) = LOWER(?)", name).First(&institute).Error
	if err == nil {
		return &institute, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internalError("failed to look up institute", err)
	}
	institute = models.Institute{Name: name}
	if err := tx.Create(&institute).Error; err != nil {
		return nil, translate(err, "institute")
	}
	return &institute, nil
}

// ensureUnclaimed refuses a second self-registered institute account for the
// same institute. Further staff accounts are provisioned through seeding.
func ensureUnclaimed(tx *gorm.DB, instituteID uuid.UUID) error {
	var staff int64
	if err := tx.Model(&models.User{}).
		Where("role = ? AND institute_id = ?", workflow.RoleInstitute, instituteID).
		Count(&staff).Error; err != nil {
		return internalError("failed to check institute accounts", err)
	}
	if staff > 0 {
		return newError(KindConflict, "institute already has a registered account", nil)
	}
	return nil
}

func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(KindValidation, "validation failed", err)
	}

	login := strings.TrimSpace(req.Login)
	var user models.User
	if err := s.db.Where("username = ? OR email = ?", login, strings.ToLower(login)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, internalError("database error", err)
	}

	if err := user.CheckPassword(req.Password); err != nil {
		return nil, errInvalidCredentials
	}

	now := time.Now()
	user.LastLoginAt = &now
	s.db.Model(&user).Update("last_login_at", now)

	return s.issue(&user)
}

var errInvalidCredentials = newError(KindUnauthorized, "invalid username or password", nil)

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(user.Principal(), user.Username, s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, internalError("failed to generate access token", err)
	}

	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.cfg.JWT.AccessTokenTTL * 3600,
	}, nil
}

func (s *AuthService) Me(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Institute").Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}
