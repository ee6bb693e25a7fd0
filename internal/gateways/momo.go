package gateways

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
)

const momoRequestType = "captureWallet"

var (
	errMomoCredentialsRequired = errors.New("momo partner code, access key and secret key are required")
	errMomoLoggerRequired      = errors.New("momo logger is required")
)

// MomoGateway opens Momo hosted checkouts and verifies IPN callbacks. Both the
// create request and the callback are signed with HMAC-SHA256 over a canonical
// alphabetically ordered parameter string.
type MomoGateway struct {
	cfg    config.MomoConfig
	http   *http.Client
	logger *logger.Logger
}

// NewMomoGateway validates the Momo credentials and builds the strategy.
func NewMomoGateway(cfg config.MomoConfig, logg *logger.Logger) (*MomoGateway, error) {
	if logg == nil {
		return nil, errMomoLoggerRequired
	}
	if strings.TrimSpace(cfg.PartnerCode) == "" ||
		strings.TrimSpace(cfg.AccessKey) == "" ||
		strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errMomoCredentialsRequired
	}
	return &MomoGateway{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logg,
	}, nil
}

func (g *MomoGateway) Name() enums.PaymentGateway {
	return enums.PaymentGatewayMomo
}

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	Amount      int64  `json:"amount"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	Deeplink   string `json:"deeplink"`
	QRCodeURL  string `json:"qrCodeUrl"`
	RequestID  string `json:"requestId"`
}

func (g *MomoGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = g.cfg.ReturnURL
	}
	ipnURL := req.IPNURL
	if ipnURL == "" {
		ipnURL = g.cfg.IPNURL
	}

	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&ipnUrl=%s&orderId=%s&orderInfo=%s&partnerCode=%s&redirectUrl=%s&requestId=%s&requestType=%s",
		g.cfg.AccessKey, req.AmountVND, "", ipnURL, req.OrderRef, req.Description,
		g.cfg.PartnerCode, returnURL, requestID, momoRequestType,
	)

	body := momoCreateRequest{
		PartnerCode: g.cfg.PartnerCode,
		RequestID:   requestID,
		OrderID:     req.OrderRef,
		OrderInfo:   req.Description,
		Amount:      req.AmountVND,
		RedirectURL: returnURL,
		IPNURL:      ipnURL,
		RequestType: momoRequestType,
		Lang:        "vi",
		Signature:   signHMACSHA256(g.cfg.SecretKey, raw),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode momo checkout request")
	}

	ctx = g.logger.WithFields(ctx, map[string]any{
		"gateway":   "momo",
		"order_ref": req.OrderRef,
		"amount":    req.AmountVND,
	})
	g.logger.Info(ctx, "momo checkout request")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build momo checkout request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		g.logger.Error(ctx, "momo checkout call failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "momo checkout failed")
	}
	defer resp.Body.Close()

	var decoded momoCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode momo checkout response")
	}
	if resp.StatusCode >= http.StatusBadRequest || decoded.ResultCode != 0 {
		g.logger.Error(ctx, "momo checkout rejected",
			fmt.Errorf("status=%d result_code=%d message=%s", resp.StatusCode, decoded.ResultCode, decoded.Message))
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("momo checkout rejected: %s", decoded.Message))
	}

	g.logger.Info(ctx, "momo checkout created")
	return &CheckoutResponse{
		PayURL:   decoded.PayURL,
		Deeplink: decoded.Deeplink,
		QRCode:   decoded.QRCodeURL,
		GatewayMeta: map[string]string{
			"requestId": requestID,
		},
	}, nil
}

// VerifyCallback recomputes the IPN signature from the canonical field order
// Momo documents and compares it against the delivered signature.
func (g *MomoGateway) VerifyCallback(params map[string]string) error {
	provided := params["signature"]
	if provided == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "momo callback missing signature")
	}

	raw := fmt.Sprintf(
		"accessKey=%s&amount=%s&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%s&resultCode=%s&transId=%s",
		g.cfg.AccessKey, params["amount"], params["extraData"], params["message"],
		params["orderId"], params["orderInfo"], params["orderType"], params["partnerCode"],
		params["payType"], params["requestId"], params["responseTime"],
		params["resultCode"], params["transId"],
	)

	if !hmac.Equal([]byte(signHMACSHA256(g.cfg.SecretKey, raw)), []byte(provided)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "momo callback signature mismatch")
	}
	return nil
}

func (g *MomoGateway) CallbackRef(params map[string]string) string {
	return params["orderId"]
}

func (g *MomoGateway) CallbackSucceeded(params map[string]string) bool {
	code, err := strconv.Atoi(params["resultCode"])
	return err == nil && code == 0
}

func (g *MomoGateway) CallbackReason(params map[string]string) string {
	return params["message"]
}

func signHMACSHA256(secret, raw string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
