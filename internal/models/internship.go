// internal/models/internship.go
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type Internship struct {
	BaseModel
	CompanyID     uuid.UUID      `json:"company_id" gorm:"type:uuid;not null;index"`
	Title         string         `json:"title" gorm:"size:255;not null"`
	Description   string         `json:"description" gorm:"type:text"`
	Policy        credits.Policy `json:"policy" gorm:"type:varchar(10);not null;index"`
	ExpectedHours float64        `json:"expected_hours"`
	IsOpen        bool           `json:"is_open" gorm:"index"`
	StartDate     *time.Time     `json:"start_date"`
	EndDate       *time.Time     `json:"end_date"`

	// Relationships
	Company *User `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
}

type Application struct {
	BaseModel
	InternshipID uuid.UUID       `json:"internship_id" gorm:"type:uuid;not null;index"`
	StudentID    uuid.UUID       `json:"student_id" gorm:"type:uuid;not null;index"`
	InstituteID  *uuid.UUID      `json:"institute_id" gorm:"type:uuid;index"`
	Status       workflow.Status `json:"status" gorm:"type:varchar(20);not null;index"`
	// HoursWorked is written once, on completion.
	HoursWorked *float64 `json:"hours_worked"`
	// CreditsAwarded is provisional in institute_review and exception.
	CreditsAwarded *float64   `json:"credits_awarded"`
	Reason         *string    `json:"reason" gorm:"type:text"`
	ProofKey       string     `json:"proof_key,omitempty" gorm:"size:512"`
	DecidedAt      *time.Time `json:"decided_at"`

	// Actions lists the events the reader may trigger next; filled on reads.
	Actions []workflow.Event `json:"actions,omitempty" gorm:"-"`

	// Relationships
	Internship   *Internship   `json:"internship,omitempty" gorm:"foreignKey:InternshipID"`
	Student      *User         `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Institute    *Institute    `json:"institute,omitempty" gorm:"foreignKey:InstituteID"`
	CreditRecord *CreditRecord `json:"credit_record,omitempty" gorm:"foreignKey:ApplicationID"`
}

type CreditRecord struct {
	BaseModel
	ApplicationID     uuid.UUID      `json:"application_id" gorm:"type:uuid;not null;uniqueIndex"`
	StudentID         uuid.UUID      `json:"student_id" gorm:"type:uuid;not null;index"`
	InstituteID       *uuid.UUID     `json:"institute_id" gorm:"type:uuid;index"`
	PolicyType        credits.Policy `json:"policy_type" gorm:"type:varchar(10);index"`
	Hours             float64        `json:"hours" gorm:"not null"`
	CreditsCalculated float64        `json:"credits_calculated" gorm:"not null"`
	IsLow             bool           `json:"is_low"`
	IsFlagged         bool           `json:"is_flagged"`
	Status            CreditStatus   `json:"status" gorm:"type:varchar(20);not null;index"`
	Remarks           string         `json:"remarks,omitempty" gorm:"type:text"`
	ReviewedBy        *uuid.UUID     `json:"reviewed_by" gorm:"type:uuid"`
	ReviewedAt        *time.Time     `json:"reviewed_at"`

	IsPushedToExternalRegistry bool       `json:"is_pushed_to_external_registry"`
	PushedAt                   *time.Time `json:"pushed_at"`
	RegistryReceipt            string     `json:"registry_receipt,omitempty" gorm:"size:128"`

	// Relationships
	Application *Application `json:"application,omitempty" gorm:"foreignKey:ApplicationID"`
	Student     *User        `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Institute   *Institute   `json:"institute,omitempty" gorm:"foreignKey:InstituteID"`
}
