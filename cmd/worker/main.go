package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/jwalitptl/identito-api/internal/config"
	"github.com/jwalitptl/identito-api/internal/email"
	"github.com/jwalitptl/identito-api/internal/policy"
	"github.com/jwalitptl/identito-api/internal/repository/postgres"
	"github.com/jwalitptl/identito-api/internal/service/audit"
	"github.com/jwalitptl/identito-api/internal/service/identity"
	"github.com/jwalitptl/identito-api/internal/service/qualification"
	"github.com/jwalitptl/identito-api/internal/service/vigilance"
	"github.com/jwalitptl/identito-api/internal/teleservice"
	internalworker "github.com/jwalitptl/identito-api/internal/worker"
	"github.com/jwalitptl/identito-api/pkg/logger"
	redisbroker "github.com/jwalitptl/identito-api/pkg/messaging/redis"
	"github.com/jwalitptl/identito-api/pkg/metrics"
	"github.com/jwalitptl/identito-api/pkg/worker"
)

// envOverrides are worker knobs settable without a config file, e.g.
// IDENTITO_OUTBOX_BATCH_SIZE=100.
type envOverrides struct {
	OutboxBatchSize      int           `envconfig:"OUTBOX_BATCH_SIZE"`
	OutboxPollInterval   time.Duration `envconfig:"OUTBOX_POLL_INTERVAL"`
	QualitySweepInterval time.Duration `envconfig:"QUALITY_SWEEP_INTERVAL"`
	ExpirySweepInterval  time.Duration `envconfig:"EXPIRY_SWEEP_INTERVAL"`
}

func main() {
	l := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		l.Fatal(err, "failed to load config")
	}

	var env envOverrides
	if err := envconfig.Process("identito", &env); err != nil {
		l.Fatal(err, "failed to read environment overrides")
	}
	if env.OutboxBatchSize > 0 {
		cfg.Worker.OutboxBatchSize = env.OutboxBatchSize
	}
	if env.OutboxPollInterval > 0 {
		cfg.Worker.OutboxPollInterval = env.OutboxPollInterval
	}
	if env.QualitySweepInterval > 0 {
		cfg.Worker.QualitySweepInterval = env.QualitySweepInterval
	}
	if env.ExpirySweepInterval > 0 {
		cfg.Worker.ExpirySweepInterval = env.ExpirySweepInterval
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		l.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("identito", "worker")

	identityRepo := postgres.NewIdentityRepository(db)
	verificationRepo := postgres.NewVerificationRepository(db)
	alertRepo := postgres.NewAlertRepository(db)
	checkRepo := postgres.NewIdentityCheckRepository(db)
	qualificationRepo := postgres.NewQualificationRepository(db)
	policyRepo := postgres.NewPolicyRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	txManager := postgres.NewTxManager(db)

	policies := policy.NewProvider(policyRepo, cfg.Policy)
	auditor := audit.NewService(auditRepo)
	mailer := email.NewSMTPService(cfg.SMTP)
	insClient := teleservice.NewHTTPClient(cfg.INSi, m)

	identitySvc := identity.NewService(identityRepo, verificationRepo, outboxRepo, txManager, policies, auditor, m, l)
	vigilanceSvc := vigilance.NewService(identityRepo, alertRepo, checkRepo, outboxRepo, mailer, auditor, m, l)
	qualificationSvc := qualification.NewService(qualificationRepo, identityRepo, identitySvc, insClient, m, l)

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, l.Zerolog())
	if err != nil {
		l.Fatal(err, "failed to connect to redis")
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxConfig{
		BatchSize:     cfg.Worker.OutboxBatchSize,
		PollInterval:  cfg.Worker.OutboxPollInterval,
		RetryAttempts: cfg.Worker.OutboxRetryAttempts,
		RetryDelay:    cfg.Worker.OutboxRetryDelay,
	}, m, l)
	if err != nil {
		l.Fatal(err, "failed to build outbox processor")
	}

	qualitySweep := internalworker.NewQualitySweep(identitySvc, vigilanceSvc, cfg.Worker.QualitySweepInterval, l)
	expirySweep := internalworker.NewQualificationExpiry(qualificationSvc, cfg.Worker.ExpirySweepInterval, cfg.INSi.RequestTTL, l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go processor.Start(ctx)
	go qualitySweep.Start(ctx)
	go expirySweep.Start(ctx)

	l.Info("worker started")
	<-ctx.Done()
	l.Info("worker stopped")
}
