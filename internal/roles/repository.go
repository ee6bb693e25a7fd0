package roles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coachhubvn/coachhub-backend/pkg/db/models"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
)

// Repository manages role assignments and their saga rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAssignment(ctx context.Context, assignment *models.RoleAssignment) error
	HasAssignment(ctx context.Context, userID uuid.UUID, role enums.UserRole) (bool, error)
	GetSaga(ctx context.Context, correlationID uuid.UUID) (*models.RoleAssignmentSaga, error)
	CreateSagaIfAbsent(ctx context.Context, saga *models.RoleAssignmentSaga) error
	UpdateSagaState(ctx context.Context, correlationID uuid.UUID, state enums.SagaState, reason *string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a role repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.RoleAssignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *repository) HasAssignment(ctx context.Context, userID uuid.UUID, role enums.UserRole) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RoleAssignment{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) GetSaga(ctx context.Context, correlationID uuid.UUID) (*models.RoleAssignmentSaga, error) {
	var saga models.RoleAssignmentSaga
	err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&saga).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &saga, nil
}

// CreateSagaIfAbsent inserts the saga row, silently keeping the existing row
// when a concurrent delivery already created it.
func (r *repository) CreateSagaIfAbsent(ctx context.Context, saga *models.RoleAssignmentSaga) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "correlation_id"}},
			DoNothing: true,
		}).
		Create(saga).Error
}

func (r *repository) UpdateSagaState(ctx context.Context, correlationID uuid.UUID, state enums.SagaState, reason *string) error {
	updates := map[string]any{"state": state}
	if reason != nil {
		updates["reason"] = *reason
	}
	return r.db.WithContext(ctx).
		Model(&models.RoleAssignmentSaga{}).
		Where("correlation_id = ?", correlationID).
		Updates(updates).Error
}
