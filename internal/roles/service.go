package roles

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/coachhubvn/coachhub-backend/pkg/db"
	"github.com/coachhubvn/coachhub-backend/pkg/db/models"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
)

// Service executes the local role-assignment command.
type Service interface {
	// Assign grants the role inside the caller's transaction. Granting a role
	// the user already holds is a no-op success, which makes the command safe
	// to re-drive on duplicate deliveries.
	Assign(ctx context.Context, tx *gorm.DB, userID uuid.UUID, role enums.UserRole) error
}

type service struct {
	repo Repository
}

// NewService returns the role-assignment command executor.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("role repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Assign(ctx context.Context, tx *gorm.DB, userID uuid.UUID, role enums.UserRole) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
	}

	repo := s.repo.WithTx(tx)

	held, err := repo.HasAssignment(ctx, userID, role)
	if err != nil {
		return fmt.Errorf("check role assignment: %w", err)
	}
	if held {
		return nil
	}

	err = repo.CreateAssignment(ctx, &models.RoleAssignment{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_role_assignments_user_role") {
			return nil
		}
		return fmt.Errorf("create role assignment: %w", err)
	}
	return nil
}
