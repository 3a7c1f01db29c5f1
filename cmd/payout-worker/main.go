package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/roamnest/roamnest-backend/internal/cron"
	"github.com/roamnest/roamnest-backend/internal/payout"
	"github.com/roamnest/roamnest-backend/internal/payout/provider"
	"github.com/roamnest/roamnest-backend/internal/wallet"
	"github.com/roamnest/roamnest-backend/pkg/config"
	"github.com/roamnest/roamnest-backend/pkg/db"
	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/logger"
	"github.com/roamnest/roamnest-backend/pkg/metrics"
	"github.com/roamnest/roamnest-backend/pkg/migrate"
	"github.com/roamnest/roamnest-backend/pkg/redis"
	pkgstripe "github.com/roamnest/roamnest-backend/pkg/stripe"
)

const lockKeyFormat = "rn:payout-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "payout-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "payout-worker"

	logg = logger.New(logger.Options{
		ServiceName: "payout-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	providers, err := buildProviderRegistry(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payout providers", err)
		os.Exit(1)
	}

	payoutMetrics := metrics.NewPayoutMetrics(prometheus.DefaultRegisterer)
	payoutRepo := payout.NewRepository(dbClient.DB())
	sweepConfig := payout.SweepConfig{
		FetchLimit: cfg.Payout.FetchLimit,
		GroupLimit: cfg.Payout.GroupLimit,
		HostFeePct: cfg.Payout.HostFeePct,
	}

	influencerSweep, err := payout.NewInfluencerSweep(payout.InfluencerSweepParams{
		Logger:    logg,
		DB:        dbClient,
		Repo:      payoutRepo,
		Providers: providers,
		Metrics:   payoutMetrics,
		Config:    sweepConfig,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create influencer sweep", err)
		os.Exit(1)
	}

	hostSweep, err := payout.NewHostSweep(payout.HostSweepParams{
		Logger:    logg,
		DB:        dbClient,
		Repo:      payoutRepo,
		Providers: providers,
		Metrics:   payoutMetrics,
		Config:    sweepConfig,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create host sweep", err)
		os.Exit(1)
	}

	walletService, err := buildWalletService(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	registry, err := buildJobRegistry(cfg, logg, influencerSweep, hostSweep, walletService)
	if err != nil {
		logg.Error(context.Background(), "failed to register jobs", err)
		os.Exit(1)
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Payout.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"sandbox":     cfg.Payout.SandboxEnabled,
	})
	logg.Info(ctx, "starting payout worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "payout worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "payout worker shutting down gracefully")
}

// buildProviderRegistry wires the settlement adapters. Sandbox mode maps
// every provider to the synthetic adapter so sweeps run end to end without
// moving money; live mode wires a real Stripe transfer client and leaves the
// remaining providers unconfigured so their groups fail fast.
func buildProviderRegistry(cfg *config.Config, logg *logger.Logger) (*provider.Registry, error) {
	if cfg.Payout.SandboxEnabled {
		sandbox := provider.NewSandbox(time.Now)
		return provider.NewRegistry(map[enums.PayoutProvider]provider.Adapter{
			enums.PayoutProviderBank:     sandbox,
			enums.PayoutProviderStripe:   sandbox,
			enums.PayoutProviderPaypal:   sandbox,
			enums.PayoutProviderPayoneer: sandbox,
		}), nil
	}

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		return nil, err
	}
	stripeAdapter, err := provider.NewStripeAdapter(stripeClient)
	if err != nil {
		return nil, err
	}
	return provider.NewRegistry(map[enums.PayoutProvider]provider.Adapter{
		enums.PayoutProviderStripe: stripeAdapter,
	}), nil
}

func buildWalletService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*wallet.Service, error) {
	discountCap, err := decimal.NewFromString(cfg.Coupon.DiscountCapUSD)
	if err != nil {
		return nil, fmt.Errorf("parse coupon discount cap: %w", err)
	}
	return wallet.NewService(wallet.ServiceParams{
		Logger: logg,
		DB:     dbClient,
		Repo:   wallet.NewRepository(dbClient.DB()),
		Config: wallet.Config{
			DiscountPct:    cfg.Coupon.DiscountPct,
			DiscountCapUSD: discountCap,
		},
	})
}

func buildJobRegistry(cfg *config.Config, logg *logger.Logger, influencerSweep *payout.InfluencerSweep, hostSweep *payout.HostSweep, wallets *wallet.Service) (*cron.Registry, error) {
	influencerJob, err := cron.NewInfluencerPayoutJob(cron.InfluencerPayoutJobParams{
		Logger: logg,
		Sweep:  influencerSweep,
		Limit:  cfg.Payout.GroupLimit,
	})
	if err != nil {
		return nil, err
	}
	hostJob, err := cron.NewHostPayoutJob(cron.HostPayoutJobParams{
		Logger: logg,
		Sweep:  hostSweep,
		Limit:  cfg.Payout.FetchLimit,
	})
	if err != nil {
		return nil, err
	}
	redemptionJob, err := cron.NewRedemptionTTLJob(cron.RedemptionTTLJobParams{
		Logger:  logg,
		Wallets: wallets,
		TTL:     cfg.Coupon.PendingTTL,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(influencerJob, hostJob, redemptionJob), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
