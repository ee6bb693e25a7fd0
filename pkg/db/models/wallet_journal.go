package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/pkg/enums"
)

// WalletJournal is one logical wallet-affecting operation. It owns its ledger
// entries and is the unit that posts atomically or not at all.
type WalletJournal struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID  uuid.UUID           `gorm:"column:wallet_id;type:uuid;not null;index"`
	BookingID *uuid.UUID          `gorm:"column:booking_id;type:uuid;index"`
	PaymentID *uuid.UUID          `gorm:"column:payment_id;type:uuid;index"`
	Type      enums.JournalType   `gorm:"column:type;type:journal_type_enum;not null"`
	Status    enums.JournalStatus `gorm:"column:status;type:journal_status_enum;not null;default:'pending'"`
	PostedAt  *time.Time          `gorm:"column:posted_at"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Entries []WalletLedgerEntry `gorm:"foreignKey:JournalID"`
}
