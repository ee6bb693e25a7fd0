package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/pkg/enums"
)

// WalletLedgerEntry is one side of a double-entry posting. Amounts are always
// positive; direction carries the sign.
type WalletLedgerEntry struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	JournalID   uuid.UUID            `gorm:"column:journal_id;type:uuid;not null;index"`
	WalletID    uuid.UUID            `gorm:"column:wallet_id;type:uuid;not null;index"`
	AmountVND   int64                `gorm:"column:amount_vnd;not null"`
	Direction   enums.EntryDirection `gorm:"column:direction;type:entry_direction_enum;not null"`
	Description string               `gorm:"column:description;type:text;not null"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}
