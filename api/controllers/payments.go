package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/api/middleware"
	"github.com/coachhubvn/coachhub-backend/api/responses"
	"github.com/coachhubvn/coachhub-backend/api/validators"
	"github.com/coachhubvn/coachhub-backend/internal/payments"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
)

type initiatePaymentRequest struct {
	AmountVND     int64      `json:"amountVnd" validate:"required,gt=0"`
	Flow          string     `json:"flow" validate:"required"`
	Gateway       string     `json:"gateway" validate:"omitempty,oneof=momo payos vnpay"`
	BookingID     *uuid.UUID `json:"bookingId"`
	WalletID      *uuid.UUID `json:"walletId"`
	PayeeWalletID *uuid.UUID `json:"payeeWalletId"`
	Description   string     `json:"description" validate:"omitempty,max=255"`
	ReturnURL     string     `json:"returnUrl" validate:"omitempty,url"`
}

type initiatePaymentResponse struct {
	PaymentID   *uuid.UUID        `json:"paymentId,omitempty"`
	JournalID   uuid.UUID         `json:"journalId"`
	Status      string            `json:"status"`
	PayURL      string            `json:"payUrl,omitempty"`
	Deeplink    string            `json:"deeplink,omitempty"`
	QRCode      string            `json:"qrCode,omitempty"`
	GatewayMeta map[string]string `json:"gatewayMeta,omitempty"`
}

// InitiatePayment opens a payment for the authenticated user and returns the
// gateway checkout payload alongside the local record identifiers.
func InitiatePayment(service payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user identity"))
			return
		}

		flow, err := enums.ParsePaymentFlow(body.Flow)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment flow"))
			return
		}

		result, err := service.Initiate(r.Context(), payments.InitiateRequest{
			UserID:        userID,
			BookingID:     body.BookingID,
			WalletID:      body.WalletID,
			PayeeWalletID: body.PayeeWalletID,
			Gateway:       enums.PaymentGateway(body.Gateway),
			Flow:          flow,
			AmountVND:     body.AmountVND,
			Description:   body.Description,
			ReturnURL:     body.ReturnURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := initiatePaymentResponse{
			PaymentID: result.PaymentID,
			JournalID: result.JournalID,
			Status:    result.Status.String(),
		}
		if result.Checkout != nil {
			resp.PayURL = result.Checkout.PayURL
			resp.Deeplink = result.Checkout.Deeplink
			resp.QRCode = result.Checkout.QRCode
			resp.GatewayMeta = result.Checkout.GatewayMeta
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// BookingPaymentStatus returns the latest payment status for a booking.
func BookingPaymentStatus(service payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := uuid.Parse(chi.URLParam(r, "bookingId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid booking id"))
			return
		}

		status, err := service.Status(r.Context(), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"bookingId": bookingID.String(),
			"status":    status.String(),
		})
	}
}
