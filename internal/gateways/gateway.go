package gateways

import (
	"context"
	"fmt"

	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
)

// CheckoutRequest carries the fields every gateway needs to open a hosted
// checkout session for a payment.
type CheckoutRequest struct {
	OrderRef    string
	AmountVND   int64
	Description string
	ReturnURL   string
	IPNURL      string
}

// CheckoutResponse is the gateway-agnostic view of a created checkout session.
// GatewayMeta holds provider-specific fields the client may need verbatim.
type CheckoutResponse struct {
	PayURL      string
	Deeplink    string
	QRCode      string
	GatewayMeta map[string]string
}

// Gateway is the per-provider strategy: open a checkout, verify a callback.
// VerifyCallback must reject any tampered or unsigned parameter set before the
// caller mutates local state.
type Gateway interface {
	Name() enums.PaymentGateway
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
	VerifyCallback(params map[string]string) error
	// CallbackRef extracts the order reference from a verified callback payload.
	CallbackRef(params map[string]string) string
	// CallbackSucceeded reports the outcome a verified callback carries.
	CallbackSucceeded(params map[string]string) bool
	// CallbackReason returns the provider's human-readable outcome message.
	CallbackReason(params map[string]string) string
}

// Registry resolves a gateway strategy from its enum value.
type Registry struct {
	gateways map[enums.PaymentGateway]Gateway
}

// NewRegistry indexes the provided gateways by name.
func NewRegistry(gateways ...Gateway) *Registry {
	indexed := make(map[enums.PaymentGateway]Gateway, len(gateways))
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		indexed[gw.Name()] = gw
	}
	return &Registry{gateways: indexed}
}

// Resolve returns the strategy for the named gateway.
func (r *Registry) Resolve(name enums.PaymentGateway) (Gateway, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway registry not configured")
	}
	gw, ok := r.gateways[name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment gateway %q", name))
	}
	return gw, nil
}

func validateCheckoutRequest(req CheckoutRequest) error {
	if req.OrderRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	if req.AmountVND <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout amount must be positive")
	}
	return nil
}
