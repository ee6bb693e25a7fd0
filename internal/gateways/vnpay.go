package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
)

const (
	vnpVersion     = "2.1.0"
	vnpCommandPay  = "pay"
	vnpCurrency    = "VND"
	vnpLocale      = "vn"
	vnpDateLayout  = "20060102150405"
	vnpSuccessCode = "00"
)

var (
	errVNPayCredentialsRequired = errors.New("vnpay tmn code and hash secret are required")
	errVNPayLoggerRequired      = errors.New("vnpay logger is required")
)

// VNPayGateway builds signed redirect URLs for VNPay hosted checkout. VNPay
// has no server-side create call; the checkout is the URL itself, signed with
// HMAC-SHA512 over the sorted url-encoded query string. Return and IPN
// callbacks are verified the same way.
type VNPayGateway struct {
	cfg    config.VNPayConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewVNPayGateway validates the VNPay credentials and builds the strategy.
func NewVNPayGateway(cfg config.VNPayConfig, logg *logger.Logger) (*VNPayGateway, error) {
	if logg == nil {
		return nil, errVNPayLoggerRequired
	}
	if strings.TrimSpace(cfg.TmnCode) == "" || strings.TrimSpace(cfg.HashSecret) == "" {
		return nil, errVNPayCredentialsRequired
	}
	return &VNPayGateway{cfg: cfg, logger: logg, now: time.Now}, nil
}

func (g *VNPayGateway) Name() enums.PaymentGateway {
	return enums.PaymentGatewayVNPay
}

func (g *VNPayGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return nil, err
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = g.cfg.ReturnURL
	}

	created := g.now()
	params := map[string]string{
		"vnp_Version":    vnpVersion,
		"vnp_Command":    vnpCommandPay,
		"vnp_TmnCode":    g.cfg.TmnCode,
		// VNPay expresses amounts in hundredths of a dong.
		"vnp_Amount":     fmt.Sprintf("%d", req.AmountVND*100),
		"vnp_CurrCode":   vnpCurrency,
		"vnp_TxnRef":     req.OrderRef,
		"vnp_OrderInfo":  req.Description,
		"vnp_OrderType":  "other",
		"vnp_Locale":     vnpLocale,
		"vnp_ReturnUrl":  returnURL,
		"vnp_CreateDate": created.Format(vnpDateLayout),
		"vnp_ExpireDate": created.Add(15 * time.Minute).Format(vnpDateLayout),
	}

	query := canonicalVNPayQuery(params)
	signature := signHMACSHA512(g.cfg.HashSecret, query)
	payURL := fmt.Sprintf("%s?%s&vnp_SecureHash=%s", g.cfg.PayURL, query, signature)

	ctx = g.logger.WithFields(ctx, map[string]any{
		"gateway":   "vnpay",
		"order_ref": req.OrderRef,
		"amount":    req.AmountVND,
	})
	g.logger.Info(ctx, "vnpay checkout url built")

	return &CheckoutResponse{
		PayURL: payURL,
		GatewayMeta: map[string]string{
			"vnp_TxnRef":     req.OrderRef,
			"vnp_CreateDate": params["vnp_CreateDate"],
		},
	}, nil
}

// VerifyCallback strips the delivered hash, rebuilds the canonical query over
// the remaining vnp_ fields and compares HMAC-SHA512 digests.
func (g *VNPayGateway) VerifyCallback(params map[string]string) error {
	provided := params["vnp_SecureHash"]
	if provided == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "vnpay callback missing secure hash")
	}

	signable := make(map[string]string, len(params))
	for key, value := range params {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if strings.HasPrefix(key, "vnp_") {
			signable[key] = value
		}
	}

	expected := signHMACSHA512(g.cfg.HashSecret, canonicalVNPayQuery(signable))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "vnpay callback signature mismatch")
	}
	return nil
}

func (g *VNPayGateway) CallbackRef(params map[string]string) string {
	return params["vnp_TxnRef"]
}

func (g *VNPayGateway) CallbackSucceeded(params map[string]string) bool {
	return params["vnp_ResponseCode"] == vnpSuccessCode
}

func (g *VNPayGateway) CallbackReason(params map[string]string) string {
	if params["vnp_ResponseCode"] == vnpSuccessCode {
		return ""
	}
	return "vnpay response code " + params["vnp_ResponseCode"]
}

func canonicalVNPayQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+url.QueryEscape(params[key]))
	}
	return strings.Join(pairs, "&")
}

func signHMACSHA512(secret, raw string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
