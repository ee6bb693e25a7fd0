package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/pkg/enums"
)

// RoleAssignmentSaga tracks one role-assignment request end to end, keyed by
// the correlation id carried on the bus. RequestedRole keeps the raw string
// from the request so the outcome event can echo it unchanged.
type RoleAssignmentSaga struct {
	CorrelationID uuid.UUID       `gorm:"column:correlation_id;type:uuid;primaryKey"`
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	RequestedRole string          `gorm:"column:requested_role;type:text;not null"`
	State         enums.SagaState `gorm:"column:state;type:saga_state_enum;not null;default:'requested'"`
	Reason        *string         `gorm:"column:reason"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
