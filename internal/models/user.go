// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/abc-portal/internship-credits/internal/workflow"
)

type User struct {
	BaseModel
	Username     string        `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email        string        `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string        `json:"-" gorm:"size:255;not null"`
	FullName     string        `json:"full_name" gorm:"size:255"`
	Role         workflow.Role `json:"role" gorm:"type:varchar(20);not null;index"`
	InstituteID  *uuid.UUID    `json:"institute_id,omitempty" gorm:"type:uuid;index"`
	// RegistryID is the student's identifier at the external academic credit
	// registry (APAAR). Required before credits can be pushed.
	RegistryID  string     `json:"registry_id,omitempty" gorm:"size:64"`
	LastLoginAt *time.Time `json:"last_login_at"`

	// Relationships
	Institute *Institute `json:"institute,omitempty" gorm:"foreignKey:InstituteID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// Principal returns the identity carried in access tokens for u.
func (u *User) Principal() workflow.Principal {
	return workflow.Principal{UserID: u.ID, Role: u.Role, InstituteID: u.InstituteID}
}

type Institute struct {
	BaseModel
	Name string `json:"name" gorm:"uniqueIndex;size:255;not null"`
	Code string `json:"code,omitempty" gorm:"size:50;index"`
}
