package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/pkg/enums"
)

// RoleAssignment grants a role to a user. The unique (user_id, role) pair is
// the idempotency anchor for the assignment command.
type RoleAssignment struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_role_assignments_user_role"`
	Role      enums.UserRole `gorm:"column:role;type:user_role_enum;not null;uniqueIndex:ux_role_assignments_user_role"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
