// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/abc-portal/internship-credits/internal/workflow"
)

// Notification is addressed either to a single user (RecipientID) or to every
// user of a role within an institute (RecipientRole + InstituteID).
type Notification struct {
	BaseModel
	RecipientID   *uuid.UUID    `json:"recipient_id" gorm:"type:uuid;index"`
	RecipientRole workflow.Role `json:"recipient_role" gorm:"type:varchar(20);not null;index"`
	InstituteID   *uuid.UUID    `json:"institute_id,omitempty" gorm:"type:uuid;index"`
	ApplicationID *uuid.UUID    `json:"application_id,omitempty" gorm:"type:uuid;index"`
	Event         string        `json:"event" gorm:"size:50"`
	Message       string        `json:"message" gorm:"type:text;not null"`
	IsRead        bool          `json:"is_read" gorm:"index"`
	ReadAt        *time.Time    `json:"read_at"`
}

// NotificationRead is one user's read receipt for a notification addressed to
// a whole institute. Shared rows never flip their own IsRead.
type NotificationRead struct {
	NotificationID uuid.UUID `json:"notification_id" gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey;index"`
	ReadAt         time.Time `json:"read_at" gorm:"not null"`
}

type AuditLog struct {
	BaseModel
	ActorID      *uuid.UUID        `json:"actor_id" gorm:"type:uuid;index"`
	ActorRole    string            `json:"actor_role" gorm:"size:20;index"`
	Action       string            `json:"action" gorm:"size:100;not null;index"`
	ResourceType string            `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID        `json:"resource_id" gorm:"type:uuid;index"`
	FromStatus   string            `json:"from_status,omitempty" gorm:"size:20"`
	ToStatus     string            `json:"to_status,omitempty" gorm:"size:20"`
	Details      datatypes.JSONMap `json:"details"`
	IPAddress    string            `json:"ip_address" gorm:"size:45"`
	UserAgent    string            `json:"user_agent" gorm:"type:text"`
}
