package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doctrine/internal/audit"
	"doctrine/internal/budget"
	budgetmetrics "doctrine/internal/budget/metrics"
	"doctrine/internal/eventbus"
	"doctrine/internal/identity"
	"doctrine/internal/intake"
	"doctrine/internal/intelligence"
	"doctrine/internal/master"
	"doctrine/internal/platform/config"
	"doctrine/internal/platform/httpserver"
	"doctrine/internal/platform/logger"
	"doctrine/internal/platform/metrics"
	"doctrine/internal/platform/postgres"
	"doctrine/internal/platform/redis"
	"doctrine/internal/promotion"
	"doctrine/internal/remediation"
	"doctrine/internal/scheduler"
	httptransport "doctrine/internal/transport/http"
	"doctrine/internal/validation"
)

// main wires the pipeline end to end. Every backing store has a memory
// fallback, so the whole service runs without infrastructure in local
// development; production sets the Postgres, Redis, and Kafka env vars.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		intakeStore intake.Store
		masterStore master.Store
		idRegistry  identity.Registry
		auditStore  audit.Store
		eventStore  intelligence.EventStore
		ledger      budget.LedgerStore
		state       budget.StateStore
		outbox      eventbus.OutboxStore
	)
	if db != nil {
		intakeStore = intake.NewPostgresStore(db)
		masterStore = master.NewPostgresStore(db)
		idRegistry = identity.NewPostgresRegistry(db)
		auditStore = audit.NewPostgresStore(db)
		eventStore = intelligence.NewPostgresEventStore(db)
		ledger = budget.NewPostgresLedger(db)
		state = budget.NewPostgresStateStore(db)
		outbox = eventbus.NewPostgresOutbox(db)
	} else {
		log.Warn("no postgres url configured, using in-memory stores")
		intakeStore = intake.NewMemoryStore()
		masterStore = master.NewMemoryStore()
		idRegistry = identity.NewMemoryRegistry()
		auditStore = audit.NewMemoryStore()
		eventStore = intelligence.NewMemoryEventStore()
		ledger = budget.NewMemoryLedger()
		state = budget.NewMemoryStateStore()
		outbox = eventbus.NewMemoryOutbox()
	}

	m := metrics.New()
	auditPub := audit.NewPublisher(auditStore)
	engine := validation.NewEngine(intakeStore, auditPub, validation.WithLogger(log))
	ids := identity.New(idRegistry, identity.WithLogger(log))
	promoter := promotion.New(intakeStore, masterStore, ids, auditPub,
		cfg.Promotion.SlotsPerCompany, promotion.WithLogger(log))
	governor := budget.New(ledger, state, auditPub, cfg.Budget,
		budget.WithLogger(log), budget.WithMetrics(budgetmetrics.New()))
	router := remediation.NewRouter(intakeStore, engine, governor, auditPub,
		remediation.WithLogger(log),
		remediation.WithMaxAttempts(cfg.Remediation.MaxAttempts))
	trigger := eventbus.NewTrigger(outbox, auditPub, eventbus.WithTriggerLogger(log))
	detector := intelligence.NewDetector(masterStore, eventStore,
		intelligence.WithTrigger(trigger), intelligence.WithLogger(log))

	// Delivery path: Kafka when brokers are configured, in-process otherwise.
	var deduper eventbus.Deduper
	if redisClient != nil {
		deduper = eventbus.NewRedisDeduper(redisClient.Client)
	} else {
		deduper = eventbus.NewMemoryDeduper()
	}
	campaigns := eventbus.NewCampaignHandler(deduper, logCampaignCreator{log}, log)

	var publisher eventbus.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := eventbus.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			log.Error("kafka producer setup failed", "error", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		publisher = kafkaPub

		consumer, err := eventbus.NewKafkaConsumer(cfg.Kafka, campaigns, log)
		if err != nil {
			log.Error("kafka consumer setup failed", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("campaign consumer stopped", "error", err)
			}
		}()
	} else {
		log.Warn("no kafka brokers configured, using in-process bus")
		bus := eventbus.NewMemoryBus()
		bus.Subscribe(campaigns.Handle)
		publisher = bus
	}
	worker := eventbus.NewWorker(outbox, publisher, auditPub, eventbus.WithWorkerLogger(log))
	go worker.Run(ctx)

	sched := scheduler.New(cfg.Scheduler, detector, router, engine, scheduler.WithLogger(log))
	if err := sched.Start(ctx); err != nil {
		log.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	api := httptransport.NewRouter(m,
		httptransport.NewIntakeHandler(intakeStore, engine, m, log),
		httptransport.NewPromotionHandler(promoter, masterStore, m, log),
		httptransport.NewIntelligenceHandler(detector, eventStore, sched, m, log),
		httptransport.NewGovernorHandler(governor, log),
		httptransport.NewRemediationHandler(router, auditPub, m, log),
	)
	srv := httpserver.New(cfg.Server.Addr, api)

	go func() {
		log.Info("doctrine pipeline listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// logCampaignCreator stands in when no downstream campaign system is wired.
// It only logs; the real consumer usually runs as its own deployment.
type logCampaignCreator struct {
	log *slog.Logger
}

func (c logCampaignCreator) CreateCampaign(ctx context.Context, n eventbus.Notification) error {
	c.log.InfoContext(ctx, "campaign requested",
		"event_id", n.EventID, "entity_id", n.EntityID,
		"change_type", n.ChangeType, "priority", n.Priority)
	return nil
}
