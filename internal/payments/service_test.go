package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coachhubvn/coachhub-backend/internal/gateways"
	"github.com/coachhubvn/coachhub-backend/internal/wallet"
	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/db/models"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
	"github.com/coachhubvn/coachhub-backend/pkg/outbox"
)

var (
	testCashWalletID    = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testRevenueWalletID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.Transaction(fn)
}

type fakeGateway struct {
	name              enums.PaymentGateway
	createCheckoutFn  func(ctx context.Context, req gateways.CheckoutRequest) (*gateways.CheckoutResponse, error)
	verifyCallbackFn  func(params map[string]string) error
	callbackSucceeded bool
	callbackReason    string
}

func (f *fakeGateway) Name() enums.PaymentGateway { return f.name }

func (f *fakeGateway) CreateCheckout(ctx context.Context, req gateways.CheckoutRequest) (*gateways.CheckoutResponse, error) {
	if f.createCheckoutFn != nil {
		return f.createCheckoutFn(ctx, req)
	}
	return &gateways.CheckoutResponse{PayURL: "https://pay.example.com/" + req.OrderRef}, nil
}

func (f *fakeGateway) VerifyCallback(params map[string]string) error {
	if f.verifyCallbackFn != nil {
		return f.verifyCallbackFn(params)
	}
	return nil
}

func (f *fakeGateway) CallbackRef(params map[string]string) string { return params["ref"] }

func (f *fakeGateway) CallbackSucceeded(map[string]string) bool { return f.callbackSucceeded }

func (f *fakeGateway) CallbackReason(map[string]string) string { return f.callbackReason }

type fakeStatusCache struct {
	values map[string]string
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{values: map[string]string{}}
}

func (f *fakeStatusCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeStatusCache) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeStatusCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeStatusCache) PaymentStateKey(scope, id string) string {
	return "ch:payment:state:" + scope + ":" + id
}

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{`
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  booking_id TEXT,
  wallet_id TEXT,
  gateway TEXT NOT NULL,
  flow TEXT NOT NULL,
  amount_vnd INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  gateway_ref TEXT NOT NULL UNIQUE,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS wallet_journals (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  booking_id TEXT,
  payment_id TEXT,
  type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  posted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS wallet_ledger_entries (
  id TEXT PRIMARY KEY,
  journal_id TEXT NOT NULL,
  wallet_id TEXT NOT NULL,
  amount_vnd INTEGER NOT NULL,
  direction TEXT NOT NULL,
  description TEXT NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS wallet_balances (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  account_type TEXT NOT NULL,
  balance_vnd INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME,
  UNIQUE (wallet_id, account_type)
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type paymentsFixture struct {
	db      *gorm.DB
	service Service
	gateway *fakeGateway
	cache   *fakeStatusCache
}

func newPaymentsFixture(t *testing.T) *paymentsFixture {
	t.Helper()

	db := setupPaymentsTestDB(t)
	logg := logger.New(logger.Options{
		ServiceName: "payments-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})

	walletCfg := config.WalletConfig{
		PlatformCashWalletID: testCashWalletID.String(),
		RevenueWalletID:      testRevenueWalletID.String(),
		CommissionPercent:    "10",
	}
	walletRepo := wallet.NewRepository(db)
	walletSvc, err := wallet.NewService(walletRepo, walletCfg)
	require.NoError(t, err)

	gateway := &fakeGateway{name: enums.PaymentGatewayMomo, callbackSucceeded: true}
	cache := newFakeStatusCache()

	svc, err := NewService(ServiceParams{
		DB:         gormTxRunner{db: db},
		Payments:   NewRepository(db),
		Wallet:     walletSvc,
		WalletRepo: walletRepo,
		Gateways:   gateways.NewRegistry(gateway),
		Outbox:     outbox.NewService(outbox.NewRepository(db), logg),
		Cache:      cache,
		WalletCfg:  walletCfg,
		Logger:     logg,
	})
	require.NoError(t, err)

	return &paymentsFixture{db: db, service: svc, gateway: gateway, cache: cache}
}

func TestInitiateRejectsNonPositiveAmount(t *testing.T) {
	f := newPaymentsFixture(t)
	walletID := uuid.New()

	_, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:    uuid.New(),
		WalletID:  &walletID,
		Gateway:   enums.PaymentGatewayMomo,
		Flow:      enums.PaymentFlowDepositWallet,
		AmountVND: 0,
	})
	require.Error(t, err)

	kinded := pkgerrors.As(err)
	require.NotNil(t, kinded)
	assert.Equal(t, pkgerrors.CodeValidation, kinded.Code())

	var paymentCount, journalCount int64
	require.NoError(t, f.db.Model(&models.Payment{}).Count(&paymentCount).Error)
	require.NoError(t, f.db.Model(&models.WalletJournal{}).Count(&journalCount).Error)
	assert.Zero(t, paymentCount)
	assert.Zero(t, journalCount)
}

func TestInitiateDepositCreatesPendingRecordsAndCheckout(t *testing.T) {
	f := newPaymentsFixture(t)
	walletID := uuid.New()

	result, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:    uuid.New(),
		WalletID:  &walletID,
		Gateway:   enums.PaymentGatewayMomo,
		Flow:      enums.PaymentFlowDepositWallet,
		AmountVND: 100000,
	})
	require.NoError(t, err)
	require.NotNil(t, result.PaymentID)
	require.NotNil(t, result.Checkout)
	assert.Equal(t, enums.PaymentStatusPending, result.Status)
	assert.NotEmpty(t, result.Checkout.PayURL)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", result.PaymentID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.NotEmpty(t, payment.GatewayRef)

	var journal models.WalletJournal
	require.NoError(t, f.db.First(&journal, "payment_id = ?", result.PaymentID).Error)
	assert.Equal(t, enums.JournalStatusPending, journal.Status)
	assert.Equal(t, enums.JournalTypeDeposit, journal.Type)

	cached := f.cache.values[f.cache.PaymentStateKey("payment", result.PaymentID.String())]
	assert.Equal(t, "pending", cached)
}

func TestInitiateGatewayFailureKeepsPendingRows(t *testing.T) {
	f := newPaymentsFixture(t)
	f.gateway.createCheckoutFn = func(context.Context, gateways.CheckoutRequest) (*gateways.CheckoutResponse, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "momo checkout failed")
	}
	walletID := uuid.New()

	_, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:    uuid.New(),
		WalletID:  &walletID,
		Gateway:   enums.PaymentGatewayMomo,
		Flow:      enums.PaymentFlowDepositWallet,
		AmountVND: 100000,
	})
	require.Error(t, err)

	kinded := pkgerrors.As(err)
	require.NotNil(t, kinded)
	assert.Equal(t, pkgerrors.CodeDependency, kinded.Code())

	// The pending rows must survive the failed outbound call.
	var paymentCount, journalCount int64
	require.NoError(t, f.db.Model(&models.Payment{}).Where("status = ?", enums.PaymentStatusPending).Count(&paymentCount).Error)
	require.NoError(t, f.db.Model(&models.WalletJournal{}).Where("status = ?", enums.JournalStatusPending).Count(&journalCount).Error)
	assert.Equal(t, int64(1), paymentCount)
	assert.Equal(t, int64(1), journalCount)
}

func TestInitiateWalletBookingSettlesImmediately(t *testing.T) {
	f := newPaymentsFixture(t)
	bookingID := uuid.New()
	customerWallet := uuid.New()
	coachWallet := uuid.New()

	result, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:        uuid.New(),
		BookingID:     &bookingID,
		WalletID:      &customerWallet,
		PayeeWalletID: &coachWallet,
		Flow:          enums.PaymentFlowBookingByWallet,
		AmountVND:     200000,
	})
	require.NoError(t, err)
	assert.Nil(t, result.PaymentID)
	assert.Nil(t, result.Checkout)
	assert.Equal(t, enums.PaymentStatusSucceeded, result.Status)

	var journal models.WalletJournal
	require.NoError(t, f.db.First(&journal, "id = ?", result.JournalID).Error)
	assert.Equal(t, enums.JournalStatusPosted, journal.Status)

	var coachBalance models.WalletBalance
	require.NoError(t, f.db.First(&coachBalance, "wallet_id = ?", coachWallet).Error)
	assert.Equal(t, int64(180000), coachBalance.BalanceVND)

	var revenueBalance models.WalletBalance
	require.NoError(t, f.db.First(&revenueBalance, "wallet_id = ?", testRevenueWalletID).Error)
	assert.Equal(t, int64(20000), revenueBalance.BalanceVND)

	cached := f.cache.values[f.cache.PaymentStateKey("booking", bookingID.String())]
	assert.Equal(t, "succeeded", cached)
}

func TestReconcileSuccessPostsJournalExactlyOnce(t *testing.T) {
	f := newPaymentsFixture(t)
	walletID := uuid.New()

	result, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:    uuid.New(),
		WalletID:  &walletID,
		Gateway:   enums.PaymentGatewayMomo,
		Flow:      enums.PaymentFlowDepositWallet,
		AmountVND: 100000,
	})
	require.NoError(t, err)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", result.PaymentID).Error)
	params := map[string]string{"ref": payment.GatewayRef}

	require.NoError(t, f.service.Reconcile(context.Background(), "momo", params))

	var reloaded models.Payment
	require.NoError(t, f.db.First(&reloaded, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusSucceeded, reloaded.Status)

	var journal models.WalletJournal
	require.NoError(t, f.db.First(&journal, "payment_id = ?", payment.ID).Error)
	assert.Equal(t, enums.JournalStatusPosted, journal.Status)

	var balance models.WalletBalance
	require.NoError(t, f.db.First(&balance, "wallet_id = ?", walletID).Error)
	assert.Equal(t, int64(100000), balance.BalanceVND)

	// Redelivered callbacks must not double-post.
	require.NoError(t, f.service.Reconcile(context.Background(), "momo", params))

	require.NoError(t, f.db.First(&balance, "wallet_id = ?", walletID).Error)
	assert.Equal(t, int64(100000), balance.BalanceVND)

	var eventCount int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentSucceeded).
		Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)
}

func TestReconcileInvalidChecksumLeavesStateUntouched(t *testing.T) {
	f := newPaymentsFixture(t)
	walletID := uuid.New()

	result, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:    uuid.New(),
		WalletID:  &walletID,
		Gateway:   enums.PaymentGatewayMomo,
		Flow:      enums.PaymentFlowDepositWallet,
		AmountVND: 100000,
	})
	require.NoError(t, err)

	f.gateway.verifyCallbackFn = func(map[string]string) error {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "momo callback signature mismatch")
	}

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", result.PaymentID).Error)

	err = f.service.Reconcile(context.Background(), "momo", map[string]string{"ref": payment.GatewayRef})
	require.Error(t, err)

	kinded := pkgerrors.As(err)
	require.NotNil(t, kinded)
	assert.Equal(t, pkgerrors.CodeUnauthorized, kinded.Code())

	require.NoError(t, f.db.First(&payment, "id = ?", result.PaymentID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)

	var eventCount int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Count(&eventCount).Error)
	assert.Zero(t, eventCount)
}

func TestReconcileFailureMarksPaymentAndJournalFailed(t *testing.T) {
	f := newPaymentsFixture(t)
	f.gateway.callbackSucceeded = false
	f.gateway.callbackReason = "insufficient funds"
	walletID := uuid.New()

	result, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:    uuid.New(),
		WalletID:  &walletID,
		Gateway:   enums.PaymentGatewayMomo,
		Flow:      enums.PaymentFlowDepositWallet,
		AmountVND: 100000,
	})
	require.NoError(t, err)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", result.PaymentID).Error)

	require.NoError(t, f.service.Reconcile(context.Background(), "momo", map[string]string{"ref": payment.GatewayRef}))

	require.NoError(t, f.db.First(&payment, "id = ?", result.PaymentID).Error)
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
	require.NotNil(t, payment.FailureReason)
	assert.Equal(t, "insufficient funds", *payment.FailureReason)

	var journal models.WalletJournal
	require.NoError(t, f.db.First(&journal, "payment_id = ?", payment.ID).Error)
	assert.Equal(t, enums.JournalStatusFailed, journal.Status)

	var balanceCount int64
	require.NoError(t, f.db.Model(&models.WalletBalance{}).Where("wallet_id = ?", walletID).Count(&balanceCount).Error)
	assert.Zero(t, balanceCount)

	var eventCount int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentFailed).
		Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)
}

func TestStatusFallsBackToDatabaseOnCacheMiss(t *testing.T) {
	f := newPaymentsFixture(t)
	bookingID := uuid.New()
	coachWallet := uuid.New()

	_, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:        uuid.New(),
		BookingID:     &bookingID,
		PayeeWalletID: &coachWallet,
		Gateway:       enums.PaymentGatewayVNPay,
		Flow:          enums.PaymentFlowBookingByGateway,
		AmountVND:     150000,
	})
	require.Error(t, err) // vnpay strategy is not registered in the fixture

	// Seed the payment row directly and clear the cache so the lookup
	// must go to the database.
	payment := models.Payment{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		BookingID:  &bookingID,
		Gateway:    enums.PaymentGatewayMomo,
		Flow:       enums.PaymentFlowBookingByGateway,
		AmountVND:  150000,
		Status:     enums.PaymentStatusPending,
		GatewayRef: "1234567890",
	}
	require.NoError(t, f.db.Create(&payment).Error)
	f.cache.values = map[string]string{}

	status, err := f.service.Status(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, status)

	cached := f.cache.values[f.cache.PaymentStateKey("booking", bookingID.String())]
	assert.Equal(t, "pending", cached)
}

func TestStatusWalletBookingSurvivesCacheExpiry(t *testing.T) {
	f := newPaymentsFixture(t)
	bookingID := uuid.New()
	customerWallet := uuid.New()
	coachWallet := uuid.New()

	_, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:        uuid.New(),
		BookingID:     &bookingID,
		WalletID:      &customerWallet,
		PayeeWalletID: &coachWallet,
		Flow:          enums.PaymentFlowBookingByWallet,
		AmountVND:     200000,
	})
	require.NoError(t, err)

	// Wallet bookings have no payment row; after the cache entry expires the
	// lookup must fall back to the capture journal instead of reporting 404.
	f.cache.values = map[string]string{}

	status, err := f.service.Status(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSucceeded, status)

	cached := f.cache.values[f.cache.PaymentStateKey("booking", bookingID.String())]
	assert.Equal(t, "succeeded", cached)
}

func TestInitiateRerollsCollidingGatewayRef(t *testing.T) {
	f := newPaymentsFixture(t)
	walletID := uuid.New()

	existing := models.Payment{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		WalletID:   &walletID,
		Gateway:    enums.PaymentGatewayMomo,
		Flow:       enums.PaymentFlowDepositWallet,
		AmountVND:  50000,
		Status:     enums.PaymentStatusPending,
		GatewayRef: "1700000000000001",
	}
	require.NoError(t, f.db.Create(&existing).Error)

	refs := []string{"1700000000000001", "1700000000000002"}
	f.service.(*service).newRef = func() string {
		next := refs[0]
		if len(refs) > 1 {
			refs = refs[1:]
		}
		return next
	}

	result, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:    uuid.New(),
		WalletID:  &walletID,
		Gateway:   enums.PaymentGatewayMomo,
		Flow:      enums.PaymentFlowDepositWallet,
		AmountVND: 100000,
	})
	require.NoError(t, err)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", result.PaymentID).Error)
	assert.Equal(t, "1700000000000002", payment.GatewayRef)
}

func TestInitiatePersistentRefCollisionReturnsConflict(t *testing.T) {
	f := newPaymentsFixture(t)
	walletID := uuid.New()

	existing := models.Payment{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		WalletID:   &walletID,
		Gateway:    enums.PaymentGatewayMomo,
		Flow:       enums.PaymentFlowDepositWallet,
		AmountVND:  50000,
		Status:     enums.PaymentStatusPending,
		GatewayRef: "1700000000000001",
	}
	require.NoError(t, f.db.Create(&existing).Error)

	f.service.(*service).newRef = func() string { return "1700000000000001" }

	_, err := f.service.Initiate(context.Background(), InitiateRequest{
		UserID:    uuid.New(),
		WalletID:  &walletID,
		Gateway:   enums.PaymentGatewayMomo,
		Flow:      enums.PaymentFlowDepositWallet,
		AmountVND: 100000,
	})
	require.Error(t, err)

	kinded := pkgerrors.As(err)
	require.NotNil(t, kinded)
	assert.Equal(t, pkgerrors.CodeConflict, kinded.Code())
}

func TestStatusUnknownBookingReturnsNotFound(t *testing.T) {
	f := newPaymentsFixture(t)

	_, err := f.service.Status(context.Background(), uuid.New())
	require.Error(t, err)

	kinded := pkgerrors.As(err)
	require.NotNil(t, kinded)
	assert.Equal(t, pkgerrors.CodeNotFound, kinded.Code())
}
