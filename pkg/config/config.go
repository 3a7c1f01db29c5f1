package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "roamnest"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ROAMNEST_DB_DSN"
	EnvDBHost = "ROAMNEST_DB_HOST"
	EnvDBUser = "ROAMNEST_DB_USER"
	EnvDBName = "ROAMNEST_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Referral     ReferralConfig
	Coupon       CouponConfig
	Payout       PayoutConfig
	Stripe       StripeConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ROAMNEST_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"ROAMNEST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ROAMNEST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ROAMNEST_SERVICE_KIND" default:"payout-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"ROAMNEST_DB_DSN"`
	Driver string `envconfig:"ROAMNEST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ROAMNEST_DB_HOST"`
	LegacyPort     int    `envconfig:"ROAMNEST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ROAMNEST_DB_USER"`
	LegacyPassword string `envconfig:"ROAMNEST_DB_PASSWORD"`
	LegacyName     string `envconfig:"ROAMNEST_DB_NAME"`
	LegacySSLMode  string `envconfig:"ROAMNEST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ROAMNEST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ROAMNEST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ROAMNEST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ROAMNEST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ROAMNEST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ROAMNEST_REDIS_ADDR"`
	Password     string        `envconfig:"ROAMNEST_REDIS_PASSWORD"`
	DB           int           `envconfig:"ROAMNEST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ROAMNEST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ROAMNEST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ROAMNEST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ROAMNEST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ROAMNEST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ROAMNEST_AUTO_MIGRATE" default:"false"`
}

// ReferralConfig controls commission amounts and the fraud hold window.
type ReferralConfig struct {
	SignupBonusUSD         string        `envconfig:"ROAMNEST_REFERRAL_SIGNUP_BONUS_USD" default:"10.00"`
	SignupBonusUpgradedUSD string        `envconfig:"ROAMNEST_REFERRAL_SIGNUP_BONUS_UPGRADED_USD" default:"25.00"`
	BookingPerNightUSD     string        `envconfig:"ROAMNEST_REFERRAL_BOOKING_PER_NIGHT_USD" default:"2.00"`
	HoldWindow             time.Duration `envconfig:"ROAMNEST_REFERRAL_HOLD_WINDOW" default:"0"`
}

// CouponConfig controls wallet coupon discount math.
type CouponConfig struct {
	DiscountPct    int           `envconfig:"ROAMNEST_COUPON_DISCOUNT_PCT" default:"10"`
	DiscountCapUSD string        `envconfig:"ROAMNEST_COUPON_DISCOUNT_CAP_USD" default:"30.00"`
	PendingTTL     time.Duration `envconfig:"ROAMNEST_COUPON_PENDING_TTL" default:"72h"`
}

// PayoutConfig controls the settlement sweeps.
type PayoutConfig struct {
	FetchLimit     int           `envconfig:"ROAMNEST_PAYOUT_FETCH_LIMIT" default:"2000"`
	GroupLimit     int           `envconfig:"ROAMNEST_PAYOUT_GROUP_LIMIT" default:"200"`
	HostFeePct     int           `envconfig:"ROAMNEST_PAYOUT_HOST_FEE_PCT" default:"12"`
	SweepInterval  time.Duration `envconfig:"ROAMNEST_PAYOUT_SWEEP_INTERVAL" default:"1h"`
	SandboxEnabled bool          `envconfig:"ROAMNEST_PAYOUT_SANDBOX" default:"true"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ROAMNEST_STRIPE_API_KEY"`
	Env    string `envconfig:"ROAMNEST_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
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
