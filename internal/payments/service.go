package payments

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coachhubvn/coachhub-backend/internal/gateways"
	"github.com/coachhubvn/coachhub-backend/internal/wallet"
	"github.com/coachhubvn/coachhub-backend/pkg/config"
	dbpkg "github.com/coachhubvn/coachhub-backend/pkg/db"
	"github.com/coachhubvn/coachhub-backend/pkg/db/models"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
	"github.com/coachhubvn/coachhub-backend/pkg/metrics"
	"github.com/coachhubvn/coachhub-backend/pkg/outbox"
	"github.com/coachhubvn/coachhub-backend/pkg/outbox/payloads"
	"github.com/coachhubvn/coachhub-backend/pkg/redis"
)

// gatewayRefAttempts caps how often initiation rerolls a colliding order ref
// before giving up with a conflict.
const gatewayRefAttempts = 3

// InitiateRequest is one payment initiation. PayeeWalletID names the wallet
// credited on booking flows; WalletID is the paying user's wallet.
type InitiateRequest struct {
	UserID        uuid.UUID
	BookingID     *uuid.UUID
	WalletID      *uuid.UUID
	PayeeWalletID *uuid.UUID
	Gateway       enums.PaymentGateway
	Flow          enums.PaymentFlow
	AmountVND     int64
	Description   string
	ReturnURL     string
}

// InitiateResult combines the local pending records with the gateway checkout
// payload. Checkout is nil for wallet-funded bookings, which settle in-process.
type InitiateResult struct {
	PaymentID *uuid.UUID
	JournalID uuid.UUID
	Status    enums.PaymentStatus
	Checkout  *gateways.CheckoutResponse
}

// Service coordinates payment initiation, callback reconciliation and status
// lookups across the gateway strategies and the wallet ledger.
type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Reconcile(ctx context.Context, gatewayName string, params map[string]string) error
	Status(ctx context.Context, bookingID uuid.UUID) (enums.PaymentStatus, error)
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the payment service dependencies.
type ServiceParams struct {
	DB         TxRunner
	Payments   Repository
	Wallet     wallet.Service
	WalletRepo wallet.Repository
	Gateways   *gateways.Registry
	Outbox     *outbox.Service
	Cache      redis.StatusStore
	WalletCfg  config.WalletConfig
	Logger     *logger.Logger
	Metrics    *metrics.PaymentMetrics
}

type service struct {
	db         TxRunner
	payments   Repository
	wallet     wallet.Service
	walletRepo wallet.Repository
	gateways   *gateways.Registry
	outbox     *outbox.Service
	cache      redis.StatusStore
	walletCfg  config.WalletConfig
	logger     *logger.Logger
	metrics    *metrics.PaymentMetrics
	newRef     func() string
}

// NewService validates the wiring and returns the payment coordinator.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("payments: tx runner required")
	case params.Payments == nil:
		return nil, errors.New("payments: repository required")
	case params.Wallet == nil:
		return nil, errors.New("payments: wallet service required")
	case params.WalletRepo == nil:
		return nil, errors.New("payments: wallet repository required")
	case params.Gateways == nil:
		return nil, errors.New("payments: gateway registry required")
	case params.Outbox == nil:
		return nil, errors.New("payments: outbox service required")
	case params.Logger == nil:
		return nil, errors.New("payments: logger required")
	}
	return &service{
		db:         params.DB,
		payments:   params.Payments,
		wallet:     params.Wallet,
		walletRepo: params.WalletRepo,
		gateways:   params.Gateways,
		outbox:     params.Outbox,
		cache:      params.Cache,
		walletCfg:  params.WalletCfg,
		logger:     params.Logger,
		metrics:    params.Metrics,
		newRef:     newGatewayRef,
	}, nil
}

func (s *service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := validateInitiateRequest(req); err != nil {
		return nil, err
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"flow":    req.Flow.String(),
		"user_id": req.UserID.String(),
		"amount":  req.AmountVND,
	})

	if req.Flow == enums.PaymentFlowBookingByWallet {
		return s.initiateWalletBooking(ctx, req)
	}
	return s.initiateGatewayPayment(ctx, req)
}

// initiateWalletBooking settles a wallet-funded booking synchronously: the
// capture journal posts in the same transaction that creates it, so there is
// no pending window and no gateway leg.
func (s *service) initiateWalletBooking(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	journal := &models.WalletJournal{
		WalletID:  *req.WalletID,
		BookingID: req.BookingID,
		Type:      enums.JournalTypeBookingCapture,
	}
	entries := s.bookingCaptureEntries(*req.WalletID, *req.PayeeWalletID, req.AmountVND)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.wallet.PostJournal(ctx, tx, journal, entries)
	})
	if err != nil {
		return nil, err
	}

	s.cacheStatus(ctx, req.BookingID, nil, enums.PaymentStatusSucceeded)
	s.metrics.IncInitiation("wallet", req.Flow.String())
	s.logger.Info(ctx, "wallet booking captured")

	return &InitiateResult{
		JournalID: journal.ID,
		Status:    enums.PaymentStatusSucceeded,
	}, nil
}

// initiateGatewayPayment commits the pending journal and payment rows before
// the outbound gateway call. A gateway failure after commit leaves a
// recoverable pending record instead of an untracked external transaction.
func (s *service) initiateGatewayPayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	gw, err := s.gateways.Resolve(req.Gateway)
	if err != nil {
		return nil, err
	}

	journalWallet := req.WalletID
	if req.Flow == enums.PaymentFlowBookingByGateway {
		journalWallet = req.PayeeWalletID
	}

	payment := &models.Payment{
		UserID:     req.UserID,
		BookingID:  req.BookingID,
		WalletID:   req.WalletID,
		Gateway:    req.Gateway,
		Flow:       req.Flow,
		AmountVND:  req.AmountVND,
		Status:     enums.PaymentStatusPending,
		GatewayRef: s.newRef(),
	}
	journal := &models.WalletJournal{
		WalletID:  *journalWallet,
		BookingID: req.BookingID,
		Type:      journalTypeForFlow(req.Flow),
		Status:    enums.JournalStatusPending,
	}

	// Second-resolution refs can collide under load; the unique gateway_ref
	// column rejects the insert, so reroll the ref and retry a fresh tx.
	for attempt := 0; attempt < gatewayRefAttempts; attempt++ {
		err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.payments.WithTx(tx).Create(ctx, payment); err != nil {
				return fmt.Errorf("create payment: %w", err)
			}
			journal.PaymentID = &payment.ID
			if err := s.walletRepo.WithTx(tx).CreateJournal(ctx, journal); err != nil {
				return fmt.Errorf("create journal: %w", err)
			}
			return nil
		})
		if err == nil || !dbpkg.IsUniqueViolation(err, "gateway_ref") {
			break
		}
		payment.GatewayRef = s.newRef()
	}
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "gateway_ref") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate a unique gateway reference")
		}
		return nil, err
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"payment_id":  payment.ID.String(),
		"gateway_ref": payment.GatewayRef,
		"gateway":     req.Gateway.String(),
	})
	s.logger.Info(ctx, "payment initiated")

	description := req.Description
	if description == "" {
		description = string(req.Flow)
	}

	started := time.Now()
	checkout, err := gw.CreateCheckout(ctx, gateways.CheckoutRequest{
		OrderRef:    payment.GatewayRef,
		AmountVND:   req.AmountVND,
		Description: description,
		ReturnURL:   req.ReturnURL,
	})
	s.metrics.ObserveGatewayLatency(req.Gateway.String(), time.Since(started))
	if err != nil {
		// Pending rows stay behind so the callback or a reconciliation
		// pass can still resolve this payment.
		s.logger.Error(ctx, "gateway checkout failed, pending payment retained", err)
		if kinded := pkgerrors.As(err); kinded != nil {
			return nil, kinded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway checkout failed")
	}

	s.cacheStatus(ctx, req.BookingID, &payment.ID, enums.PaymentStatusPending)
	s.metrics.IncInitiation(req.Gateway.String(), req.Flow.String())

	return &InitiateResult{
		PaymentID: &payment.ID,
		JournalID: journal.ID,
		Status:    enums.PaymentStatusPending,
		Checkout:  checkout,
	}, nil
}

func (s *service) Reconcile(ctx context.Context, gatewayName string, params map[string]string) error {
	name, err := enums.ParsePaymentGateway(gatewayName)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown gateway %q", gatewayName))
	}
	gw, err := s.gateways.Resolve(name)
	if err != nil {
		return err
	}

	ctx = s.logger.WithField(ctx, "gateway", name.String())

	if err := gw.VerifyCallback(params); err != nil {
		s.metrics.IncReconcile(name.String(), "rejected")
		s.logger.Warn(ctx, "gateway callback rejected")
		return err
	}

	ref := gw.CallbackRef(params)
	if ref == "" {
		s.metrics.IncReconcile(name.String(), "rejected")
		return pkgerrors.New(pkgerrors.CodeValidation, "callback missing order reference")
	}
	ctx = s.logger.WithField(ctx, "gateway_ref", ref)

	payment, err := s.payments.GetByGatewayRef(ctx, ref)
	if err != nil {
		return err
	}
	if payment == nil {
		s.metrics.IncReconcile(name.String(), "unknown_ref")
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no payment for gateway ref %s", ref))
	}
	if payment.Status.IsTerminal() {
		s.metrics.IncReconcile(name.String(), "duplicate")
		s.logger.Info(ctx, "callback for terminal payment ignored")
		return nil
	}

	succeeded := gw.CallbackSucceeded(params)
	var finalStatus enums.PaymentStatus

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.payments.WithTx(tx).GetByGatewayRef(ctx, ref)
		if err != nil {
			return err
		}
		if current == nil {
			finalStatus = payment.Status
			return nil
		}
		if current.Status.IsTerminal() {
			finalStatus = current.Status
			return nil
		}
		if succeeded {
			finalStatus = enums.PaymentStatusSucceeded
			return s.settleSucceeded(ctx, tx, current)
		}
		finalStatus = enums.PaymentStatusFailed
		return s.settleFailed(ctx, tx, current, gw.CallbackReason(params))
	})
	if err != nil {
		return err
	}

	s.cacheStatus(ctx, payment.BookingID, &payment.ID, finalStatus)
	s.metrics.IncReconcile(name.String(), finalStatus.String())
	s.logger.Info(ctx, "payment reconciled")
	return nil
}

// settleSucceeded posts the payment's journal and emits the success event,
// all inside the caller's transaction.
func (s *service) settleSucceeded(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	if err := s.payments.WithTx(tx).UpdateStatus(ctx, payment.ID, enums.PaymentStatusSucceeded, nil); err != nil {
		return fmt.Errorf("mark payment succeeded: %w", err)
	}

	journal, err := s.walletRepo.WithTx(tx).GetJournalByPaymentID(ctx, payment.ID)
	if err != nil {
		return err
	}
	if journal != nil && !journal.Status.IsTerminal() {
		entries, err := s.entriesForFlow(payment.Flow, journal.WalletID, payment.AmountVND)
		if err != nil {
			return err
		}
		if err := s.wallet.PostJournal(ctx, tx, journal, entries); err != nil {
			return err
		}
	}

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSucceeded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentSucceededEvent{
			PaymentID: payment.ID,
			BookingID: payment.BookingID,
			WalletID:  payment.WalletID,
			Gateway:   payment.Gateway,
			AmountVND: payment.AmountVND,
		},
		Version: 1,
	})
}

// settleFailed marks the payment and its journal failed without touching any
// balance, then emits the failure event.
func (s *service) settleFailed(ctx context.Context, tx *gorm.DB, payment *models.Payment, reason string) error {
	if reason == "" {
		reason = "gateway reported failure"
	}
	if err := s.payments.WithTx(tx).UpdateStatus(ctx, payment.ID, enums.PaymentStatusFailed, &reason); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}

	journal, err := s.walletRepo.WithTx(tx).GetJournalByPaymentID(ctx, payment.ID)
	if err != nil {
		return err
	}
	if journal != nil && !journal.Status.IsTerminal() {
		if err := s.wallet.FailJournal(ctx, tx, journal.ID); err != nil {
			return err
		}
	}

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentFailedEvent{
			PaymentID: payment.ID,
			BookingID: payment.BookingID,
			WalletID:  payment.WalletID,
			Gateway:   payment.Gateway,
			AmountVND: payment.AmountVND,
			Reason:    reason,
		},
		Version: 1,
	})
}

func (s *service) Status(ctx context.Context, bookingID uuid.UUID) (enums.PaymentStatus, error) {
	if bookingID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, s.cache.PaymentStateKey("booking", bookingID.String()))
		if err == nil {
			if status, parseErr := enums.ParsePaymentStatus(cached); parseErr == nil {
				return status, nil
			}
		} else if !redis.IsNil(err) {
			s.logger.Warn(ctx, "payment status cache read failed")
		}
	}

	payment, err := s.payments.GetLatestByBookingID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if payment == nil {
		// Wallet-funded bookings settle without a payment row; once the cache
		// entry expires their capture journal is the durable status record.
		journal, err := s.walletRepo.GetLatestJournalByBookingID(ctx, bookingID)
		if err != nil {
			return "", err
		}
		if journal == nil {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no payment for booking %s", bookingID))
		}
		status := statusForJournal(journal.Status)
		s.cacheStatus(ctx, &bookingID, nil, status)
		return status, nil
	}

	s.cacheStatus(ctx, &bookingID, &payment.ID, payment.Status)
	return payment.Status, nil
}

// statusForJournal maps a capture journal's lifecycle onto the payment
// vocabulary the booking-status endpoint speaks.
func statusForJournal(status enums.JournalStatus) enums.PaymentStatus {
	switch status {
	case enums.JournalStatusPosted:
		return enums.PaymentStatusSucceeded
	case enums.JournalStatusFailed, enums.JournalStatusReversed:
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusPending
	}
}

// cacheStatus mirrors the latest status into the TTL'd cache, keyed by booking
// when one exists so the booking-status endpoint can skip the database.
func (s *service) cacheStatus(ctx context.Context, bookingID, paymentID *uuid.UUID, status enums.PaymentStatus) {
	if s.cache == nil {
		return
	}
	ttl := s.walletCfg.StatusCacheTTL
	if bookingID != nil {
		key := s.cache.PaymentStateKey("booking", bookingID.String())
		if err := s.cache.Set(ctx, key, status.String(), ttl); err != nil {
			s.logger.Warn(ctx, "payment status cache write failed")
		}
	}
	if paymentID != nil {
		key := s.cache.PaymentStateKey("payment", paymentID.String())
		if err := s.cache.Set(ctx, key, status.String(), ttl); err != nil {
			s.logger.Warn(ctx, "payment status cache write failed")
		}
	}
}

func (s *service) entriesForFlow(flow enums.PaymentFlow, walletID uuid.UUID, amountVND int64) ([]models.WalletLedgerEntry, error) {
	cash := s.walletCfg.PlatformCashWallet()
	switch flow {
	case enums.PaymentFlowDepositWallet:
		return []models.WalletLedgerEntry{
			{WalletID: cash, AmountVND: amountVND, Direction: enums.EntryDirectionDebit, Description: "deposit clearing"},
			{WalletID: walletID, AmountVND: amountVND, Direction: enums.EntryDirectionCredit, Description: "wallet deposit"},
		}, nil
	case enums.PaymentFlowWithdrawWallet:
		return []models.WalletLedgerEntry{
			{WalletID: walletID, AmountVND: amountVND, Direction: enums.EntryDirectionDebit, Description: "wallet withdrawal"},
			{WalletID: cash, AmountVND: amountVND, Direction: enums.EntryDirectionCredit, Description: "withdrawal clearing"},
		}, nil
	case enums.PaymentFlowBookingByGateway:
		entries := s.bookingCaptureEntries(cash, walletID, amountVND)
		return entries, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("flow %q has no ledger mapping", flow))
	}
}

// bookingCaptureEntries splits a booking amount between the payee and the
// platform revenue wallet. The commission is computed once with decimal
// arithmetic and rounded to whole dong; the payee receives the remainder so
// the journal always balances.
func (s *service) bookingCaptureEntries(payerWalletID, payeeWalletID uuid.UUID, amountVND int64) []models.WalletLedgerEntry {
	commission := commissionVND(amountVND, s.walletCfg.Commission())
	payout := amountVND - commission

	entries := []models.WalletLedgerEntry{
		{WalletID: payerWalletID, AmountVND: amountVND, Direction: enums.EntryDirectionDebit, Description: "booking capture"},
		{WalletID: payeeWalletID, AmountVND: payout, Direction: enums.EntryDirectionCredit, Description: "coach payout"},
	}
	if commission > 0 {
		entries = append(entries, models.WalletLedgerEntry{
			WalletID:    s.walletCfg.RevenueWallet(),
			AmountVND:   commission,
			Direction:   enums.EntryDirectionCredit,
			Description: "platform commission",
		})
	}
	return entries
}

func commissionVND(amountVND int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(amountVND).
		Mul(percent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func journalTypeForFlow(flow enums.PaymentFlow) enums.JournalType {
	switch flow {
	case enums.PaymentFlowDepositWallet:
		return enums.JournalTypeDeposit
	case enums.PaymentFlowWithdrawWallet:
		return enums.JournalTypeWithdrawal
	default:
		return enums.JournalTypeBookingCapture
	}
}

func validateInitiateRequest(req InitiateRequest) error {
	if req.AmountVND <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if req.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !req.Flow.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment flow %q", req.Flow))
	}
	if req.Flow.HasGatewayLeg() && !req.Gateway.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment gateway %q", req.Gateway))
	}

	switch req.Flow {
	case enums.PaymentFlowDepositWallet, enums.PaymentFlowWithdrawWallet:
		if req.WalletID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required for wallet flows")
		}
	case enums.PaymentFlowBookingByWallet:
		if req.BookingID == nil || req.WalletID == nil || req.PayeeWalletID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "booking, wallet and payee wallet ids are required for wallet bookings")
		}
	case enums.PaymentFlowBookingByGateway:
		if req.BookingID == nil || req.PayeeWalletID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "booking and payee wallet ids are required for gateway bookings")
		}
	}
	return nil
}

// newGatewayRef returns a unique numeric order reference. PayOS requires the
// reference to be numeric, so every gateway shares the same format.
func newGatewayRef() string {
	return strconv.FormatInt(time.Now().Unix()*1_000_000+rand.Int63n(1_000_000), 10)
}
