package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwalitptl/identito-api/internal/config"
	"github.com/jwalitptl/identito-api/internal/email"
	"github.com/jwalitptl/identito-api/internal/policy"
	"github.com/jwalitptl/identito-api/internal/repository/postgres"
	"github.com/jwalitptl/identito-api/internal/router"
	"github.com/jwalitptl/identito-api/internal/service/audit"
	"github.com/jwalitptl/identito-api/internal/service/dedup"
	"github.com/jwalitptl/identito-api/internal/service/identity"
	"github.com/jwalitptl/identito-api/internal/service/qualification"
	"github.com/jwalitptl/identito-api/internal/service/vigilance"
	"github.com/jwalitptl/identito-api/internal/teleservice"
	"github.com/jwalitptl/identito-api/pkg/logger"
	redisbroker "github.com/jwalitptl/identito-api/pkg/messaging/redis"
	"github.com/jwalitptl/identito-api/pkg/metrics"
	"github.com/jwalitptl/identito-api/pkg/worker"
)

func main() {
	l := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		l.Fatal(err, "failed to load config")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		l.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("identito", "api")

	identityRepo := postgres.NewIdentityRepository(db)
	verificationRepo := postgres.NewVerificationRepository(db)
	caseRepo := postgres.NewDuplicateCaseRepository(db)
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
	dedupSvc := dedup.NewService(identityRepo, caseRepo, verificationRepo, outboxRepo, txManager, policies, auditor, m, l)
	vigilanceSvc := vigilance.NewService(identityRepo, alertRepo, checkRepo, outboxRepo, mailer, auditor, m, l)
	qualificationSvc := qualification.NewService(qualificationRepo, identityRepo, identitySvc, insClient, m, l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The API process also drains its own outbox so events flow without a
	// separate worker deployment; both can run at once thanks to row locking.
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
	go processor.Start(ctx)

	engine := router.New(cfg, db, router.Services{
		Identity:      identitySvc,
		Dedup:         dedupSvc,
		Vigilance:     vigilanceSvc,
		Qualification: qualificationSvc,
	}, l)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		l.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal(err, "server failed")
		}
	}()

	<-ctx.Done()
	l.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(err, "graceful shutdown failed")
		os.Exit(1)
	}
}
