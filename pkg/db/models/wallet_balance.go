package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/pkg/enums"
)

// WalletBalance caches the net of all posted ledger entries for a wallet.
// Mutated only inside the journal-posting transaction, so it never disagrees
// with the entries it summarizes.
type WalletBalance struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID    uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null;uniqueIndex:ux_wallet_balances_wallet_account"`
	AccountType enums.WalletAccountType `gorm:"column:account_type;type:wallet_account_type_enum;not null;uniqueIndex:ux_wallet_balances_wallet_account"`
	BalanceVND  int64                   `gorm:"column:balance_vnd;not null;default:0"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
