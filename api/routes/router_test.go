package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/coachhubvn/coachhub-backend/api/controllers"
	"github.com/coachhubvn/coachhub-backend/internal/payments"
	pkgAuth "github.com/coachhubvn/coachhub-backend/pkg/auth"
	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/db/models"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubPaymentService struct {
	reconciled  []string
	statusCalls int
}

func (s *stubPaymentService) Initiate(context.Context, payments.InitiateRequest) (*payments.InitiateResult, error) {
	return &payments.InitiateResult{
		JournalID: uuid.New(),
		Status:    enums.PaymentStatusPending,
	}, nil
}

func (s *stubPaymentService) Reconcile(_ context.Context, gateway string, _ map[string]string) error {
	s.reconciled = append(s.reconciled, gateway)
	return nil
}

func (s *stubPaymentService) Status(context.Context, uuid.UUID) (enums.PaymentStatus, error) {
	s.statusCalls++
	return enums.PaymentStatusSucceeded, nil
}

type stubWalletService struct{}

func (stubWalletService) PostJournal(context.Context, *gorm.DB, *models.WalletJournal, []models.WalletLedgerEntry) error {
	return nil
}

func (stubWalletService) FailJournal(context.Context, *gorm.DB, uuid.UUID) error {
	return nil
}

func (stubWalletService) Balance(context.Context, uuid.UUID) (int64, error) {
	return 42000, nil
}

func (stubWalletService) AccountTypeFor(uuid.UUID) enums.WalletAccountType {
	return enums.WalletAccountAvailable
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "coachhub", ExpirationMinutes: 60},
	}
}

func newTestRouter(cfg *config.Config, paymentSvc *stubPaymentService) http.Handler {
	logg := logger.New(logger.Options{
		ServiceName: "routes-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
	return NewRouter(RouterParams{
		Config:         cfg,
		Logger:         logg,
		Readiness:      map[string]controllers.Pinger{"database": stubPinger{}},
		PaymentService: paymentSvc,
		WalletService:  stubWalletService{},
	})
}

func mintToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpointsAreOpen(t *testing.T) {
	router := newTestRouter(testConfig(), &stubPaymentService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestWebhookRouteIsPublic(t *testing.T) {
	svc := &stubPaymentService{}
	router := newTestRouter(testConfig(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/vnpay?vnp_TxnRef=123", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(svc.reconciled) != 1 || svc.reconciled[0] != "vnpay" {
		t.Fatalf("expected vnpay reconcile, got %v", svc.reconciled)
	}
}

func TestBookingStatusRequiresAuth(t *testing.T) {
	cfg := testConfig()
	svc := &stubPaymentService{}
	router := newTestRouter(cfg, svc)
	path := "/api/v1/payments/bookings/" + uuid.NewString() + "/status"

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.statusCalls != 1 {
		t.Fatalf("expected 1 status call, got %d", svc.statusCalls)
	}
}

func TestWalletBalanceReturnsAmount(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+uuid.NewString()+"/balance", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
