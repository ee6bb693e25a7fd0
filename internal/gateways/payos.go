package gateways

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
)

var (
	errPayOSCredentialsRequired = errors.New("payos client id, api key and checksum key are required")
	errPayOSLoggerRequired      = errors.New("payos logger is required")
)

// PayOSGateway creates PayOS payment requests and verifies webhook payloads.
// Requests are signed with HMAC-SHA256 over the five documented fields in
// alphabetical order; webhooks are signed over every delivered field sorted by
// key.
type PayOSGateway struct {
	cfg    config.PayOSConfig
	http   *http.Client
	logger *logger.Logger
}

// NewPayOSGateway validates the PayOS credentials and builds the strategy.
func NewPayOSGateway(cfg config.PayOSConfig, logg *logger.Logger) (*PayOSGateway, error) {
	if logg == nil {
		return nil, errPayOSLoggerRequired
	}
	if strings.TrimSpace(cfg.ClientID) == "" ||
		strings.TrimSpace(cfg.APIKey) == "" ||
		strings.TrimSpace(cfg.ChecksumKey) == "" {
		return nil, errPayOSCredentialsRequired
	}
	return &PayOSGateway{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logg,
	}, nil
}

func (g *PayOSGateway) Name() enums.PaymentGateway {
	return enums.PaymentGatewayPayOS
}

type payosCreateRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	Signature   string `json:"signature"`
}

type payosCreateResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		CheckoutURL   string `json:"checkoutUrl"`
		QRCode        string `json:"qrCode"`
		PaymentLinkID string `json:"paymentLinkId"`
	} `json:"data"`
}

func (g *PayOSGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return nil, err
	}

	// PayOS requires a numeric order code; the order ref carries one.
	orderCode, err := strconv.ParseInt(req.OrderRef, 10, 64)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payos order reference must be numeric")
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = g.cfg.ReturnURL
	}

	raw := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		req.AmountVND, g.cfg.CancelURL, req.Description, orderCode, returnURL)

	body := payosCreateRequest{
		OrderCode:   orderCode,
		Amount:      req.AmountVND,
		Description: req.Description,
		ReturnURL:   returnURL,
		CancelURL:   g.cfg.CancelURL,
		Signature:   signHMACSHA256(g.cfg.ChecksumKey, raw),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payos checkout request")
	}

	ctx = g.logger.WithFields(ctx, map[string]any{
		"gateway":   "payos",
		"order_ref": req.OrderRef,
		"amount":    req.AmountVND,
	})
	g.logger.Info(ctx, "payos checkout request")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payos checkout request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", g.cfg.ClientID)
	httpReq.Header.Set("x-api-key", g.cfg.APIKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		g.logger.Error(ctx, "payos checkout call failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payos checkout failed")
	}
	defer resp.Body.Close()

	var decoded payosCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payos checkout response")
	}
	if resp.StatusCode >= http.StatusBadRequest || decoded.Code != "00" {
		g.logger.Error(ctx, "payos checkout rejected",
			fmt.Errorf("status=%d code=%s desc=%s", resp.StatusCode, decoded.Code, decoded.Desc))
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("payos checkout rejected: %s", decoded.Desc))
	}

	g.logger.Info(ctx, "payos checkout created")
	return &CheckoutResponse{
		PayURL: decoded.Data.CheckoutURL,
		QRCode: decoded.Data.QRCode,
		GatewayMeta: map[string]string{
			"paymentLinkId": decoded.Data.PaymentLinkID,
		},
	}, nil
}

// VerifyCallback recomputes the webhook signature over all delivered fields
// sorted by key and joined as key=value pairs.
func (g *PayOSGateway) VerifyCallback(params map[string]string) error {
	provided := params["signature"]
	if provided == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "payos callback missing signature")
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "signature" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}
	raw := strings.Join(pairs, "&")

	if !hmac.Equal([]byte(signHMACSHA256(g.cfg.ChecksumKey, raw)), []byte(provided)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "payos callback signature mismatch")
	}
	return nil
}

func (g *PayOSGateway) CallbackRef(params map[string]string) string {
	return params["orderCode"]
}

func (g *PayOSGateway) CallbackSucceeded(params map[string]string) bool {
	return params["code"] == "00"
}

func (g *PayOSGateway) CallbackReason(params map[string]string) string {
	return params["desc"]
}
