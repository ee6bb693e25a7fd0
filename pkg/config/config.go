package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Wallet       WalletConfig
	Momo         MomoConfig
	PayOS        PayOSConfig
	VNPay        VNPayConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Wallet.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COACHHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"COACHHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COACHHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COACHHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COACHHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COACHHUB_DB_DSN"`
	Driver string `envconfig:"COACHHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COACHHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"COACHHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COACHHUB_DB_USER"`
	LegacyPassword string `envconfig:"COACHHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"COACHHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"COACHHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COACHHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COACHHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COACHHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COACHHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COACHHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COACHHUB_REDIS_ADDR"`
	Password     string        `envconfig:"COACHHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"COACHHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COACHHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COACHHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COACHHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COACHHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COACHHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COACHHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COACHHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COACHHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COACHHUB_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"COACHHUB_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COACHHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"COACHHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COACHHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RoleRequestTopic        string `envconfig:"COACHHUB_PUBSUB_ROLE_REQUEST_TOPIC" default:"ch-role-requests"`
	RoleRequestSubscription string `envconfig:"COACHHUB_PUBSUB_ROLE_REQUEST_SUBSCRIPTION" required:"true"`
	RoleEventsTopic         string `envconfig:"COACHHUB_PUBSUB_ROLE_EVENTS_TOPIC" default:"ch-role-events"`
	PaymentEventsTopic      string `envconfig:"COACHHUB_PUBSUB_PAYMENT_EVENTS_TOPIC" default:"ch-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COACHHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COACHHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COACHHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// WalletConfig carries the platform-side wallets the ledger posts against and
// the commission rate withheld on wallet-funded bookings.
type WalletConfig struct {
	PlatformCashWalletID string        `envconfig:"COACHHUB_WALLET_PLATFORM_CASH_ID" required:"true"`
	RevenueWalletID      string        `envconfig:"COACHHUB_WALLET_REVENUE_ID" required:"true"`
	CommissionPercent    string        `envconfig:"COACHHUB_WALLET_COMMISSION_PERCENT" default:"10"`
	StatusCacheTTL       time.Duration `envconfig:"COACHHUB_WALLET_STATUS_CACHE_TTL" default:"30m"`
}

func (w WalletConfig) validate() error {
	if _, err := uuid.Parse(w.PlatformCashWalletID); err != nil {
		return fmt.Errorf("invalid platform cash wallet id: %w", err)
	}
	if _, err := uuid.Parse(w.RevenueWalletID); err != nil {
		return fmt.Errorf("invalid revenue wallet id: %w", err)
	}
	if _, err := decimal.NewFromString(w.CommissionPercent); err != nil {
		return fmt.Errorf("invalid commission percent %q: %w", w.CommissionPercent, err)
	}
	return nil
}

// PlatformCashWallet returns the parsed platform cash wallet id.
func (w WalletConfig) PlatformCashWallet() uuid.UUID {
	id, _ := uuid.Parse(w.PlatformCashWalletID)
	return id
}

// RevenueWallet returns the parsed platform revenue wallet id.
func (w WalletConfig) RevenueWallet() uuid.UUID {
	id, _ := uuid.Parse(w.RevenueWalletID)
	return id
}

// Commission returns the configured commission rate as a decimal percentage.
func (w WalletConfig) Commission() decimal.Decimal {
	d, _ := decimal.NewFromString(w.CommissionPercent)
	return d
}

type MomoConfig struct {
	Endpoint       string        `envconfig:"COACHHUB_MOMO_ENDPOINT" default:"https://test-payment.momo.vn/v2/gateway/api/create"`
	PartnerCode    string        `envconfig:"COACHHUB_MOMO_PARTNER_CODE"`
	AccessKey      string        `envconfig:"COACHHUB_MOMO_ACCESS_KEY"`
	SecretKey      string        `envconfig:"COACHHUB_MOMO_SECRET_KEY"`
	ReturnURL      string        `envconfig:"COACHHUB_MOMO_RETURN_URL"`
	IPNURL         string        `envconfig:"COACHHUB_MOMO_IPN_URL"`
	RequestTimeout time.Duration `envconfig:"COACHHUB_MOMO_REQUEST_TIMEOUT" default:"15s"`
}

type PayOSConfig struct {
	Endpoint       string        `envconfig:"COACHHUB_PAYOS_ENDPOINT" default:"https://api-merchant.payos.vn/v2/payment-requests"`
	ClientID       string        `envconfig:"COACHHUB_PAYOS_CLIENT_ID"`
	APIKey         string        `envconfig:"COACHHUB_PAYOS_API_KEY"`
	ChecksumKey    string        `envconfig:"COACHHUB_PAYOS_CHECKSUM_KEY"`
	ReturnURL      string        `envconfig:"COACHHUB_PAYOS_RETURN_URL"`
	CancelURL      string        `envconfig:"COACHHUB_PAYOS_CANCEL_URL"`
	RequestTimeout time.Duration `envconfig:"COACHHUB_PAYOS_REQUEST_TIMEOUT" default:"15s"`
}

type VNPayConfig struct {
	PayURL         string        `envconfig:"COACHHUB_VNPAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	TmnCode        string        `envconfig:"COACHHUB_VNPAY_TMN_CODE"`
	HashSecret     string        `envconfig:"COACHHUB_VNPAY_HASH_SECRET"`
	ReturnURL      string        `envconfig:"COACHHUB_VNPAY_RETURN_URL"`
	RequestTimeout time.Duration `envconfig:"COACHHUB_VNPAY_REQUEST_TIMEOUT" default:"15s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
