package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "gateways-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

func newTestMomo(t *testing.T) *MomoGateway {
	t.Helper()
	gw, err := NewMomoGateway(config.MomoConfig{
		PartnerCode: "MOMOTEST",
		AccessKey:   "access-key",
		SecretKey:   "secret-key",
		ReturnURL:   "https://app.example.com/return",
		IPNURL:      "https://app.example.com/ipn",
	}, newTestLogger())
	if err != nil {
		t.Fatalf("new momo gateway: %v", err)
	}
	return gw
}

func TestRegistryResolvesKnownGateways(t *testing.T) {
	registry := NewRegistry(newTestMomo(t))

	gw, err := registry.Resolve(enums.PaymentGatewayMomo)
	if err != nil {
		t.Fatalf("resolve momo: %v", err)
	}
	if gw.Name() != enums.PaymentGatewayMomo {
		t.Fatalf("expected momo, got %s", gw.Name())
	}
}

func TestRegistryRejectsUnknownGateway(t *testing.T) {
	registry := NewRegistry(newTestMomo(t))

	_, err := registry.Resolve(enums.PaymentGateway("stripe"))
	if err == nil {
		t.Fatal("expected error for unknown gateway")
	}
	kinded := pkgerrors.As(err)
	if kinded == nil || kinded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMomoVerifyCallbackRoundTrip(t *testing.T) {
	gw := newTestMomo(t)

	params := map[string]string{
		"partnerCode":  "MOMOTEST",
		"orderId":      "order-1",
		"requestId":    "req-1",
		"amount":       "100000",
		"orderInfo":    "wallet deposit",
		"orderType":    "momo_wallet",
		"transId":      "99887766",
		"resultCode":   "0",
		"message":      "Successful.",
		"payType":      "qr",
		"responseTime": "1700000000000",
		"extraData":    "",
	}
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%s&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%s&resultCode=%s&transId=%s",
		"access-key", params["amount"], params["extraData"], params["message"],
		params["orderId"], params["orderInfo"], params["orderType"], params["partnerCode"],
		params["payType"], params["requestId"], params["responseTime"],
		params["resultCode"], params["transId"],
	)
	mac := hmac.New(sha256.New, []byte("secret-key"))
	mac.Write([]byte(raw))
	params["signature"] = hex.EncodeToString(mac.Sum(nil))

	if err := gw.VerifyCallback(params); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if !gw.CallbackSucceeded(params) {
		t.Fatal("expected success result code")
	}

	params["amount"] = "999999"
	err := gw.VerifyCallback(params)
	if err == nil {
		t.Fatal("expected signature mismatch after tamper")
	}
	kinded := pkgerrors.As(err)
	if kinded == nil || kinded.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestPayOSVerifyCallbackRoundTrip(t *testing.T) {
	gw, err := NewPayOSGateway(config.PayOSConfig{
		ClientID:    "client-id",
		APIKey:      "api-key",
		ChecksumKey: "checksum-key",
		ReturnURL:   "https://app.example.com/return",
		CancelURL:   "https://app.example.com/cancel",
	}, newTestLogger())
	if err != nil {
		t.Fatalf("new payos gateway: %v", err)
	}

	params := map[string]string{
		"orderCode": "12345",
		"amount":    "100000",
		"code":      "00",
		"desc":      "success",
		"reference": "FT123456",
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}
	mac := hmac.New(sha256.New, []byte("checksum-key"))
	mac.Write([]byte(strings.Join(pairs, "&")))
	params["signature"] = hex.EncodeToString(mac.Sum(nil))

	if err := gw.VerifyCallback(params); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if !gw.CallbackSucceeded(params) {
		t.Fatal("expected success code")
	}

	params["amount"] = "1"
	if err := gw.VerifyCallback(params); err == nil {
		t.Fatal("expected signature mismatch after tamper")
	}
}

func TestPayOSCheckoutRequiresNumericOrderRef(t *testing.T) {
	gw, err := NewPayOSGateway(config.PayOSConfig{
		ClientID:    "client-id",
		APIKey:      "api-key",
		ChecksumKey: "checksum-key",
	}, newTestLogger())
	if err != nil {
		t.Fatalf("new payos gateway: %v", err)
	}

	_, err = gw.CreateCheckout(context.Background(), CheckoutRequest{
		OrderRef:  "not-a-number",
		AmountVND: 1000,
	})
	kinded := pkgerrors.As(err)
	if kinded == nil || kinded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVNPayCheckoutURLSignatureVerifies(t *testing.T) {
	gw, err := NewVNPayGateway(config.VNPayConfig{
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		TmnCode:    "TESTTMN",
		HashSecret: "hash-secret",
		ReturnURL:  "https://app.example.com/return",
	}, newTestLogger())
	if err != nil {
		t.Fatalf("new vnpay gateway: %v", err)
	}

	resp, err := gw.CreateCheckout(context.Background(), CheckoutRequest{
		OrderRef:    "order-42",
		AmountVND:   100000,
		Description: "wallet deposit",
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}

	// The checkout URL must verify against its own embedded hash.
	parsed, err := url.Parse(resp.PayURL)
	if err != nil {
		t.Fatalf("parse pay url: %v", err)
	}
	params := map[string]string{}
	for key, values := range parsed.Query() {
		params[key] = values[0]
	}
	if err := gw.VerifyCallback(params); err != nil {
		t.Fatalf("expected self-verifying checkout url, got %v", err)
	}
	if params["vnp_Amount"] != "10000000" {
		t.Fatalf("expected amount in hundredths, got %s", params["vnp_Amount"])
	}
}

func TestVNPayVerifyCallbackRejectsTamper(t *testing.T) {
	gw, err := NewVNPayGateway(config.VNPayConfig{
		TmnCode:    "TESTTMN",
		HashSecret: "hash-secret",
	}, newTestLogger())
	if err != nil {
		t.Fatalf("new vnpay gateway: %v", err)
	}

	params := map[string]string{
		"vnp_TmnCode":      "TESTTMN",
		"vnp_TxnRef":       "order-42",
		"vnp_Amount":       "10000000",
		"vnp_ResponseCode": "00",
	}
	params["vnp_SecureHash"] = testVNPaySign("hash-secret", params)

	if err := gw.VerifyCallback(params); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if !gw.CallbackSucceeded(params) {
		t.Fatal("expected success response code")
	}

	params["vnp_Amount"] = "1"
	err = gw.VerifyCallback(params)
	if err == nil {
		t.Fatal("expected signature mismatch after tamper")
	}
	kinded := pkgerrors.As(err)
	if kinded == nil || kinded.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func testVNPaySign(secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+url.QueryEscape(params[key]))
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}
