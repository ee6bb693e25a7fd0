package enums

import "fmt"

// PaymentFlow describes which money movement a payment performs.
type PaymentFlow string

const (
	PaymentFlowDepositWallet    PaymentFlow = "deposit_wallet"
	PaymentFlowWithdrawWallet   PaymentFlow = "withdraw_wallet"
	PaymentFlowBookingByWallet  PaymentFlow = "booking_by_wallet"
	PaymentFlowBookingByGateway PaymentFlow = "booking_by_gateway"
)

var validPaymentFlows = []PaymentFlow{
	PaymentFlowDepositWallet,
	PaymentFlowWithdrawWallet,
	PaymentFlowBookingByWallet,
	PaymentFlowBookingByGateway,
}

// String implements fmt.Stringer.
func (f PaymentFlow) String() string {
	return string(f)
}

// IsValid reports whether the value is a known PaymentFlow.
func (f PaymentFlow) IsValid() bool {
	for _, candidate := range validPaymentFlows {
		if candidate == f {
			return true
		}
	}
	return false
}

// HasGatewayLeg reports whether the flow requires a round-trip with an
// external gateway before the money moves. Only wallet-funded bookings
// settle entirely inside the ledger.
func (f PaymentFlow) HasGatewayLeg() bool {
	return f != PaymentFlowBookingByWallet
}

// ParsePaymentFlow converts raw input into a PaymentFlow.
func ParsePaymentFlow(value string) (PaymentFlow, error) {
	for _, candidate := range validPaymentFlows {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment flow %q", value)
}
