// Command wk-server runs the warranty lifecycle engine: HTTP API, scheduler and gRPC health.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/and161185/warranty-keeper/internal/config"
	"github.com/and161185/warranty-keeper/internal/limiter"
	"github.com/and161185/warranty-keeper/internal/metrics"
	"github.com/and161185/warranty-keeper/internal/migrate"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/notify"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/and161185/warranty-keeper/internal/repository/memory"
	"github.com/and161185/warranty-keeper/internal/repository/postgres"
	"github.com/and161185/warranty-keeper/internal/scheduler"
	grpcserver "github.com/and161185/warranty-keeper/internal/server/grpc"
	httpserver "github.com/and161185/warranty-keeper/internal/server/http"
	"github.com/and161185/warranty-keeper/internal/service"
	"github.com/and161185/warranty-keeper/internal/tracing"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// stores is the repository set shared by both storage backends.
type stores struct {
	tx             repository.Transactor
	warranties     repository.WarrantyRepository
	inspections    repository.InspectionRepository
	audit          repository.AuditRepository
	tokens         repository.TokenRepository
	partners       repository.PartnerRepository
	reminders      repository.ReminderRepository
	reinstatements repository.ReinstatementRepository
	ping           func(ctx context.Context) error
	limiter        limiter.Limiter
	close          func()
}

func (s stores) Ping(ctx context.Context) error { return s.ping(ctx) }

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address")
	grpcAddr := flag.String("grpc-addr", "", "gRPC health listen address")
	dsn := flag.String("dsn", "", "PostgreSQL DSN")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key (required)")
	storage := flag.String("storage", "", "storage backend: postgres or memory")
	partners := flag.String("partners", "", "YAML partner list loaded into memory storage")
	dev := flag.Bool("dev", false, "enable gRPC reflection (dev only)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*cfgPath, func(c *config.Config) {
		setIf(&c.HTTPAddr, *addr)
		setIf(&c.GRPCAddr, *grpcAddr)
		setIf(&c.DatabaseURL, *dsn)
		setIf(&c.JWTKey, *jwtKey)
		setIf(&c.Storage, *storage)
		c.Dev = c.Dev || *dev
	})
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.JWTKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key or WK_JWT_KEY)")
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTPAddr),
		zap.String("grpc", cfg.GRPCAddr),
		zap.String("storage", cfg.Storage),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, version, cfg.Dev)
	if err != nil {
		logger.Fatal("tracing init", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	st, err := openStorage(ctx, cfg, *partners)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	defer st.close()

	m := metrics.New()

	var sender notify.Sender = notify.NewLogSender(logger)
	if len(cfg.KafkaBrokers) > 0 {
		ks := notify.NewKafkaSender(notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer func() { _ = ks.Close() }()
		sender = ks
	}
	notifier := notify.NewDispatcher(sender, cfg.PublicBaseURL, cfg.NotifyRatePerSecond, cfg.NotifyBurst, logger, m)

	p := cfg.Policy
	tokens := service.NewTokenService(st.tokens, p.VerificationTokenTTL, p.ActivationTokenTTL, nil)
	audit := service.NewAuditRecorder(st.audit, logger, nil)
	gate := service.NewEvidenceGate(p.MinPhotos, p.MinPerCategory)
	warranties := service.NewWarrantyService(service.WarrantyDeps{
		Tx: st.tx, Warranties: st.warranties, Partners: st.partners,
		Tokens: tokens, Audit: audit, Gate: gate, Notifier: notifier,
		Metrics: m, Log: logger, ExtensionMonths: p.ExtensionMonths,
	})
	inspections := service.NewInspectionService(service.InspectionDeps{
		Tx: st.tx, Inspections: st.inspections, Warranties: st.warranties, Partners: st.partners,
		Tokens: tokens, Audit: audit, Gate: gate, Notifier: notifier,
		Metrics: m, Log: logger, ExtensionMonths: p.ExtensionMonths,
	})
	reinstatements := service.NewReinstatementService(st.tx, st.warranties, st.inspections, st.reinstatements,
		warranties, notifier, logger, nil)

	var locker scheduler.Locker
	if cfg.RedisURL != "" {
		rdb, err := scheduler.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		locker = scheduler.NewRedisLocker(rdb)
	}
	sched := scheduler.New(scheduler.Deps{
		Tx: st.tx, Warranties: st.warranties, Inspections: st.inspections, Reminders: st.reminders,
		Lifecycle: warranties, Notifier: notifier, Locker: locker, Metrics: m, Log: logger,
	}, scheduler.Options{Interval: cfg.SchedulerInterval, BatchSize: cfg.SweepBatchSize, Policy: p})

	api := httpserver.New(httpserver.Deps{
		Warranties: warranties, Inspections: inspections, Reinstatements: reinstatements,
		Jobs: sched, Limiter: st.limiter, Storage: st, Metrics: m, Log: logger, JWTKey: []byte(cfg.JWTKey),
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hc := grpcserver.New(logger, cfg.Dev)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc health listening", zap.String("addr", cfg.GRPCAddr))
		if err := hc.Server().Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go hc.Watch(ctx, st, 10*time.Second)
	sched.Start(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		stop()
	}

	hc.Shutdown()
	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	done := make(chan struct{})
	go func() {
		hc.Server().GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		hc.Server().Stop()
	}
	logger.Info("shutdown complete")
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func openStorage(ctx context.Context, cfg config.Config, partnersPath string) (stores, error) {
	if cfg.Storage == config.StorageMemory {
		ms := memory.New(nil)
		if err := seedPartners(ctx, ms, partnersPath); err != nil {
			return stores{}, err
		}
		return stores{
			tx: ms, warranties: ms.Warranties(), inspections: ms.Inspections(), audit: ms.Audit(),
			tokens: ms.Tokens(), partners: ms.Partners(), reminders: ms.Reminders(), reinstatements: ms.Reinstatements(),
			ping:    ms.Ping,
			limiter: limiter.NewMemory(cfg.TokenFailWindow, cfg.TokenMaxFails, cfg.TokenBlockFor),
			close:   func() {},
		}, nil
	}

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		return stores{}, fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, fmt.Errorf("connect postgres: %w", err)
	}
	return stores{
		tx:             db,
		warranties:     postgres.NewWarrantyRepo(db),
		inspections:    postgres.NewInspectionRepo(db),
		audit:          postgres.NewAuditRepo(db),
		tokens:         postgres.NewTokenRepo(db),
		partners:       postgres.NewPartnerRepo(db),
		reminders:      postgres.NewReminderRepo(db),
		reinstatements: postgres.NewReinstatementRepo(db),
		ping:           db.Ping,
		limiter:        limiter.NewPG(db.Pool, cfg.TokenFailWindow, cfg.TokenMaxFails, cfg.TokenBlockFor),
		close:          db.Close,
	}, nil
}

type partnerFile struct {
	Partners []struct {
		ID         string `yaml:"id"`
		Kind       string `yaml:"kind"`
		Name       string `yaml:"name"`
		Email      string `yaml:"email"`
		Phone      string `yaml:"phone"`
		Accredited bool   `yaml:"accredited"`
	} `yaml:"partners"`
}

// seedPartners loads partner accounts for memory storage, where no upstream system provides them.
func seedPartners(ctx context.Context, ms *memory.Store, path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read partners: %w", err)
	}
	var pf partnerFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("parse partners: %w", err)
	}
	for _, p := range pf.Partners {
		id, err := uuid.FromString(p.ID)
		if err != nil {
			return fmt.Errorf("partner %q: bad id: %w", p.Name, err)
		}
		if err := ms.Partners().Create(ctx, &model.Partner{
			ID: id, Kind: model.PartnerKind(p.Kind), Name: p.Name,
			Email: p.Email, Phone: p.Phone, Accredited: p.Accredited,
		}); err != nil {
			return err
		}
	}
	return nil
}
