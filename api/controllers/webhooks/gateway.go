package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coachhubvn/coachhub-backend/api/responses"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
)

type PaymentReconciler interface {
	Reconcile(ctx context.Context, gateway string, params map[string]string) error
}

// GatewayCallback receives IPN and return callbacks from payment gateways.
// Momo and PayOS post JSON bodies, VNPay redirects the customer back with
// query parameters; both shapes are flattened into one parameter map before
// the signature check.
func GatewayCallback(svc PaymentReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		gateway := chi.URLParam(r, "gateway")
		params := map[string]string{}
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}

		if r.Body != nil {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
				return
			}
			if len(body) > 0 {
				fields := map[string]any{}
				if err := json.Unmarshal(body, &fields); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode callback body"))
					return
				}
				for key, value := range fields {
					params[key] = flattenCallbackValue(value)
				}
			}
		}

		if err := svc.Reconcile(ctx, gateway, params); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("%s callback reconciled", gateway))
		}
		responses.WriteSuccess(w, nil)
	}
}

// flattenCallbackValue renders a decoded JSON value the way the gateway signed
// it. Gateways sign integer amounts and result codes without a decimal point,
// so whole floats drop the fraction.
func flattenCallbackValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
