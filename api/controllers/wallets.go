package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/api/responses"
	"github.com/coachhubvn/coachhub-backend/internal/wallet"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
)

// WalletBalance returns the current balance of a wallet in whole dong.
func WalletBalance(service wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := uuid.Parse(chi.URLParam(r, "walletId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet id"))
			return
		}

		balance, err := service.Balance(r.Context(), walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"walletId":   walletID.String(),
			"balanceVnd": balance,
		})
	}
}
