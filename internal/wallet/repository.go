package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coachhubvn/coachhub-backend/pkg/db/models"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
)

// Repository manages persistence for journals, ledger entries and balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateJournal(ctx context.Context, journal *models.WalletJournal) error
	GetJournal(ctx context.Context, id uuid.UUID) (*models.WalletJournal, error)
	GetJournalByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.WalletJournal, error)
	GetLatestJournalByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.WalletJournal, error)
	UpdateJournalStatus(ctx context.Context, id uuid.UUID, status enums.JournalStatus, postedAt *time.Time) error
	CreateEntries(ctx context.Context, entries []models.WalletLedgerEntry) error
	ListEntriesByJournal(ctx context.Context, journalID uuid.UUID) ([]models.WalletLedgerEntry, error)
	EnsureBalance(ctx context.Context, walletID uuid.UUID, accountType enums.WalletAccountType) error
	LockBalance(ctx context.Context, walletID uuid.UUID, accountType enums.WalletAccountType) (*models.WalletBalance, error)
	AddToBalance(ctx context.Context, walletID uuid.UUID, accountType enums.WalletAccountType, deltaVND int64) error
	GetBalance(ctx context.Context, walletID uuid.UUID, accountType enums.WalletAccountType) (*models.WalletBalance, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateJournal(ctx context.Context, journal *models.WalletJournal) error {
	if journal.ID == uuid.Nil {
		journal.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(journal).Error
}

func (r *repository) GetJournal(ctx context.Context, id uuid.UUID) (*models.WalletJournal, error) {
	var journal models.WalletJournal
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&journal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &journal, nil
}

func (r *repository) GetJournalByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.WalletJournal, error) {
	var journal models.WalletJournal
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&journal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &journal, nil
}

func (r *repository) GetLatestJournalByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.WalletJournal, error) {
	var journal models.WalletJournal
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		First(&journal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &journal, nil
}

func (r *repository) UpdateJournalStatus(ctx context.Context, id uuid.UUID, status enums.JournalStatus, postedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if postedAt != nil {
		updates["posted_at"] = *postedAt
	}
	return r.db.WithContext(ctx).
		Model(&models.WalletJournal{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CreateEntries(ctx context.Context, entries []models.WalletLedgerEntry) error {
	if len(entries) == 0 {
		return errors.New("entries required")
	}
	for i := range entries {
		if entries[i].ID == uuid.Nil {
			entries[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListEntriesByJournal(ctx context.Context, journalID uuid.UUID) ([]models.WalletLedgerEntry, error) {
	var entries []models.WalletLedgerEntry
	err := r.db.WithContext(ctx).
		Where("journal_id = ?", journalID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) EnsureBalance(ctx context.Context, walletID uuid.UUID, accountType enums.WalletAccountType) error {
	balance := models.WalletBalance{
		ID:          uuid.New(),
		WalletID:    walletID,
		AccountType: accountType,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet_id"}, {Name: "account_type"}},
			DoNothing: true,
		}).
		Create(&balance).Error
}

func (r *repository) LockBalance(ctx context.Context, walletID uuid.UUID, accountType enums.WalletAccountType) (*models.WalletBalance, error) {
	query := r.db.WithContext(ctx)
	// sqlite (used by tests) has no row locks; the whole db is a single writer.
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var balance models.WalletBalance
	err := query.
		Where("wallet_id = ? AND account_type = ?", walletID, accountType).
		First(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) AddToBalance(ctx context.Context, walletID uuid.UUID, accountType enums.WalletAccountType, deltaVND int64) error {
	return r.db.WithContext(ctx).
		Model(&models.WalletBalance{}).
		Where("wallet_id = ? AND account_type = ?", walletID, accountType).
		Updates(map[string]any{
			"balance_vnd": gorm.Expr("balance_vnd + ?", deltaVND),
			"updated_at":  time.Now(),
		}).Error
}

func (r *repository) GetBalance(ctx context.Context, walletID uuid.UUID, accountType enums.WalletAccountType) (*models.WalletBalance, error) {
	var balance models.WalletBalance
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND account_type = ?", walletID, accountType).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}
