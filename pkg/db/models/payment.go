package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/pkg/enums"
)

// Payment records one gateway-legged money movement. Created pending at
// initiation time and mutated only by callback reconciliation.
type Payment struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	BookingID     *uuid.UUID           `gorm:"column:booking_id;type:uuid;index"`
	WalletID      *uuid.UUID           `gorm:"column:wallet_id;type:uuid;index"`
	Gateway       enums.PaymentGateway `gorm:"column:gateway;type:payment_gateway_enum;not null"`
	Flow          enums.PaymentFlow    `gorm:"column:flow;type:payment_flow_enum;not null"`
	AmountVND     int64                `gorm:"column:amount_vnd;not null"`
	Status        enums.PaymentStatus  `gorm:"column:status;type:payment_status_enum;not null;default:'pending'"`
	GatewayRef    string               `gorm:"column:gateway_ref;type:text;not null;uniqueIndex:ux_payments_gateway_ref"`
	FailureReason *string              `gorm:"column:failure_reason"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
