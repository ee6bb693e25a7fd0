package payloads

import (
	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/pkg/enums"
)

// RoleAssignmentRequestedEvent is the inbound request that starts a
// role-assignment saga. Role stays a raw string so the outcome can echo
// whatever the requesting service sent.
type RoleAssignmentRequestedEvent struct {
	CorrelationID uuid.UUID `json:"correlationId"`
	CoachID       uuid.UUID `json:"coachId"`
	Role          string    `json:"role"`
}

// RoleAssignedEvent reports a successful role assignment back to the requester.
type RoleAssignedEvent struct {
	CorrelationID uuid.UUID `json:"correlationId"`
	CoachID       uuid.UUID `json:"coachId"`
	Role          string    `json:"role"`
}

// RoleAssignFailedEvent reports a failed role assignment back to the requester.
type RoleAssignFailedEvent struct {
	CorrelationID uuid.UUID `json:"correlationId"`
	CoachID       uuid.UUID `json:"coachId"`
	Role          string    `json:"role"`
	Reason        string    `json:"reason"`
}

// PaymentSucceededEvent is emitted once a gateway callback reconciles a
// payment as succeeded and its journal has posted.
type PaymentSucceededEvent struct {
	PaymentID uuid.UUID            `json:"paymentId"`
	BookingID *uuid.UUID           `json:"bookingId,omitempty"`
	WalletID  *uuid.UUID           `json:"walletId,omitempty"`
	Gateway   enums.PaymentGateway `json:"gateway"`
	AmountVND int64                `json:"amountVnd"`
}

// PaymentFailedEvent is emitted when reconciliation marks a payment failed.
type PaymentFailedEvent struct {
	PaymentID uuid.UUID            `json:"paymentId"`
	BookingID *uuid.UUID           `json:"bookingId,omitempty"`
	WalletID  *uuid.UUID           `json:"walletId,omitempty"`
	Gateway   enums.PaymentGateway `json:"gateway"`
	AmountVND int64                `json:"amountVnd"`
	Reason    string               `json:"reason,omitempty"`
}
