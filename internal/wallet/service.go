package wallet

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/db/models"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
)

// Service posts double-entry journals against wallet balances.
type Service interface {
	// PostJournal inserts the journal's entries and applies the net delta to
	// each affected balance inside the caller's transaction. The journal row is
	// created when it has no id yet. Entries must balance or nothing is written.
	PostJournal(ctx context.Context, tx *gorm.DB, journal *models.WalletJournal, entries []models.WalletLedgerEntry) error
	// FailJournal marks a pending journal failed without touching balances.
	FailJournal(ctx context.Context, tx *gorm.DB, journalID uuid.UUID) error
	Balance(ctx context.Context, walletID uuid.UUID) (int64, error)
	AccountTypeFor(walletID uuid.UUID) enums.WalletAccountType
}

type service struct {
	repo Repository
	cfg  config.WalletConfig
}

// NewService wires the wallet service with its repository and platform wallets.
func NewService(repo Repository, cfg config.WalletConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if cfg.PlatformCashWallet() == uuid.Nil || cfg.RevenueWallet() == uuid.Nil {
		return nil, fmt.Errorf("platform wallet ids required")
	}
	return &service{repo: repo, cfg: cfg}, nil
}

// AccountTypeFor maps a wallet id onto its balance account. The two platform
// wallets are clearing accounts; everything else is a user-facing balance.
func (s *service) AccountTypeFor(walletID uuid.UUID) enums.WalletAccountType {
	switch walletID {
	case s.cfg.PlatformCashWallet():
		return enums.WalletAccountPlatformCash
	case s.cfg.RevenueWallet():
		return enums.WalletAccountPlatformRevenue
	default:
		return enums.WalletAccountAvailable
	}
}

func (s *service) PostJournal(ctx context.Context, tx *gorm.DB, journal *models.WalletJournal, entries []models.WalletLedgerEntry) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if journal == nil {
		return fmt.Errorf("journal required")
	}
	if journal.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("journal %s already %s", journal.ID, journal.Status))
	}
	if err := validateEntries(entries); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)

	if journal.ID == uuid.Nil {
		journal.Status = enums.JournalStatusPending
		if err := repo.CreateJournal(ctx, journal); err != nil {
			return fmt.Errorf("create journal: %w", err)
		}
	}

	deltas := map[uuid.UUID]int64{}
	for i := range entries {
		entries[i].JournalID = journal.ID
		switch entries[i].Direction {
		case enums.EntryDirectionCredit:
			deltas[entries[i].WalletID] += entries[i].AmountVND
		case enums.EntryDirectionDebit:
			deltas[entries[i].WalletID] -= entries[i].AmountVND
		}
	}

	// Balance rows lock in ascending wallet id order so concurrent postings
	// touching the same wallets cannot form a deadlock cycle.
	walletIDs := make([]uuid.UUID, 0, len(deltas))
	for walletID := range deltas {
		walletIDs = append(walletIDs, walletID)
	}
	sort.Slice(walletIDs, func(i, j int) bool {
		return bytes.Compare(walletIDs[i][:], walletIDs[j][:]) < 0
	})

	for _, walletID := range walletIDs {
		accountType := s.AccountTypeFor(walletID)
		if err := repo.EnsureBalance(ctx, walletID, accountType); err != nil {
			return fmt.Errorf("ensure balance %s: %w", walletID, err)
		}
		if _, err := repo.LockBalance(ctx, walletID, accountType); err != nil {
			return fmt.Errorf("lock balance %s: %w", walletID, err)
		}
	}

	if err := repo.CreateEntries(ctx, entries); err != nil {
		return fmt.Errorf("create entries: %w", err)
	}

	for _, walletID := range walletIDs {
		if err := repo.AddToBalance(ctx, walletID, s.AccountTypeFor(walletID), deltas[walletID]); err != nil {
			return fmt.Errorf("apply balance delta %s: %w", walletID, err)
		}
	}

	now := time.Now()
	if err := repo.UpdateJournalStatus(ctx, journal.ID, enums.JournalStatusPosted, &now); err != nil {
		return fmt.Errorf("mark journal posted: %w", err)
	}
	journal.Status = enums.JournalStatusPosted
	journal.PostedAt = &now
	return nil
}

func (s *service) FailJournal(ctx context.Context, tx *gorm.DB, journalID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if journalID == uuid.Nil {
		return fmt.Errorf("journal id required")
	}
	return s.repo.WithTx(tx).UpdateJournalStatus(ctx, journalID, enums.JournalStatusFailed, nil)
}

func (s *service) Balance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	if walletID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	balance, err := s.repo.GetBalance(ctx, walletID, s.AccountTypeFor(walletID))
	if err != nil {
		return 0, err
	}
	if balance == nil {
		return 0, nil
	}
	return balance.BalanceVND, nil
}

func validateEntries(entries []models.WalletLedgerEntry) error {
	if len(entries) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "journal requires at least one entry pair")
	}
	var debits, credits int64
	for _, entry := range entries {
		if entry.AmountVND <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "entry amounts must be positive")
		}
		if entry.WalletID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "entry wallet id is required")
		}
		switch entry.Direction {
		case enums.EntryDirectionDebit:
			debits += entry.AmountVND
		case enums.EntryDirectionCredit:
			credits += entry.AmountVND
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid entry direction %q", entry.Direction))
		}
	}
	if debits != credits {
		return pkgerrors.New(pkgerrors.CodeInvariant,
			fmt.Sprintf("unbalanced journal: debits %d != credits %d", debits, credits))
	}
	return nil
}
