// Command server wires the verification, compliance, and delivery
// services behind one HTTP listener. Business logic lives in the
// internal packages; this file only selects backends from configuration
// and connects the pieces.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"verity/internal/audit"
	audithandler "verity/internal/audit/handler"
	"verity/internal/compliance"
	compliancehandler "verity/internal/compliance/handler"
	compliancemetrics "verity/internal/compliance/metrics"
	"verity/internal/delivery"
	deliveryhandler "verity/internal/delivery/handler"
	deliverymetrics "verity/internal/delivery/metrics"
	"verity/internal/dispatch"
	"verity/internal/evidence/biometric"
	"verity/internal/evidence/extract"
	"verity/internal/evidence/storage"
	"verity/internal/order"
	"verity/internal/platform/config"
	"verity/internal/platform/httpserver"
	"verity/internal/platform/logger"
	platformredis "verity/internal/platform/redis"
	"verity/internal/verification"
	verificationhandler "verity/internal/verification/handler"
	verificationmetrics "verity/internal/verification/metrics"
	"verity/internal/verifier/prescription"
	prescriberhandler "verity/internal/verifier/prescription/handler"
	"verity/pkg/cache"
	id "verity/pkg/domain"
	"verity/pkg/platform/middleware/metadata"
	"verity/pkg/platform/middleware/requesttime"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// sessionFacts defers the verification service reference so compliance
// can be constructed first; set exactly once during wiring.
type sessionFacts struct {
	service *verification.Service
}

func (f *sessionFacts) FactsForOrder(ctx context.Context, orderID id.OrderID) (*compliance.SessionFacts, error) {
	return f.service.FactsForOrder(ctx, orderID)
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable backends. An empty DSN keeps everything in process
	// memory, which is the dev and test mode.
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
	}

	var (
		sessionStore  verification.SessionStore
		documentStore verification.DocumentStore
		checkLog      compliance.CheckLog
		auditStore    audit.Store
		deliveryStore delivery.Store
	)
	if db != nil {
		sessionStore = verification.NewPostgresSessionStore(db)
		documentStore = verification.NewPostgresDocumentStore(db)
		checkLog = compliance.NewPostgresCheckLog(db)
		auditStore = audit.NewPostgresStore(db)
		deliveryStore = delivery.NewPostgresStore(db)
	} else {
		sessionStore = verification.NewMemorySessionStore()
		documentStore = verification.NewMemoryDocumentStore()
		checkLog = compliance.NewMemoryCheckLog()
		auditStore = audit.NewMemoryStore()
		deliveryStore = delivery.NewMemoryStore()
	}

	var cacheStore cache.Store = cache.NewMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheStore = cache.NewRedis(redisClient.Client)
	}

	// Audit pipeline. Kafka when configured; otherwise events flow
	// through a channel worker into the store so emission never blocks
	// on persistence.
	g, ctx := errgroup.WithContext(ctx)
	var sink audit.Sink
	if cfg.KafkaBrokers != "" {
		kafkaSink, err := audit.NewKafkaPublisher(strings.Split(cfg.KafkaBrokers, ","), cfg.AuditTopic, log)
		if err != nil {
			return err
		}
		defer kafkaSink.Close(context.Background())
		sink = kafkaSink
	} else {
		inbox := make(chan audit.Event, 256)
		sink = audit.NewChannelSink(inbox)
		worker := audit.NewWorker(auditStore, inbox)
		g.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	// Evidence blobs.
	var blobs storage.Store = storage.NewMemory()
	if cfg.EvidenceBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return err
		}
		blobs = storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.EvidenceBucket)
	}

	// External engines fall back to their static implementations when
	// no URL is configured.
	parserRegistry := extract.DefaultRegistry()
	var engine extract.Engine = extract.NewStaticEngine(parserRegistry)
	if cfg.OCREngineURL != "" {
		engine = extract.NewHTTPEngine(cfg.OCREngineURL, parserRegistry, extract.WithLogger(log))
	}
	var matcher biometric.Matcher = &biometric.StaticMatcher{MatchConf: 0.95, LivenessConf: 0.95}
	if cfg.BiometricEngineURL != "" {
		matcher = biometric.NewHTTPMatcher(cfg.BiometricEngineURL)
	}

	var orders order.Reader = order.NewMemoryReader()
	if cfg.OrderServiceURL != "" {
		orders = order.NewHTTPReader(cfg.OrderServiceURL)
	}

	dispatcher := dispatch.New(dispatch.WithLogger(log))
	g.Go(func() error {
		err := dispatcher.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Services.
	prescriberRegistry := prescription.NewCachedRegistry(
		prescription.NewMemoryRegistry(), cacheStore, cfg.PrescriberCacheTTL)
	rx, err := prescription.NewVerifier(prescriberRegistry, prescription.NewMemoryStore(), sink)
	if err != nil {
		return err
	}

	facts := &sessionFacts{}
	complianceService, err := compliance.NewService(
		compliance.NewCachedRequirementStore(compliance.NewSeededRequirementStore(), cacheStore, cfg.RequirementTTL),
		checkLog,
		orders,
		facts,
		compliance.DefaultCheckRegistry(),
		sink,
		dispatcher,
		log,
		compliancemetrics.New(),
	)
	if err != nil {
		return err
	}

	completions := make(chan verification.SessionCompleted, 64)
	verificationService, err := verification.NewService(
		sessionStore,
		documentStore,
		orders,
		blobs,
		engine,
		matcher,
		rx,
		verification.WithComplianceChecker(complianceService),
		verification.WithTaskQueue(dispatcher),
		verification.WithAuditSink(sink),
		verification.WithActivityTracker(verification.NewActivityTracker(cacheStore, sink)),
		verification.WithCompletions(completions),
		verification.WithSessionTTL(cfg.SessionTTL),
		verification.WithLogger(log),
		verification.WithMetrics(verificationmetrics.New()),
	)
	if err != nil {
		return err
	}
	facts.service = verificationService

	deliveryService, err := delivery.NewService(
		verificationService,
		deliveryStore,
		matcher,
		complianceService,
		sink,
		log,
		deliverymetrics.New(),
	)
	if err != nil {
		return err
	}

	g.Go(func() error {
		drainCompletions(ctx, completions, log)
		return nil
	})

	// HTTP surface.
	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(metadata.RequestMetadata)
	router.Use(requesttime.Middleware)

	verificationhandler.New(verificationService, log).Register(router)
	compliancehandler.New(complianceService, log).Register(router)
	deliveryhandler.New(deliveryService, log).Register(router)
	prescriberhandler.New(prescriberRegistry, rx, log).Register(router)
	audithandler.New(auditStore, log).Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.Info("starting verity", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// drainCompletions consumes terminal-session events. Downstream
// consumers hang off this loop; today it feeds the operational log.
func drainCompletions(ctx context.Context, completions <-chan verification.SessionCompleted, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-completions:
			log.Info("session reached terminal decision",
				"session_id", event.SessionID,
				"order_id", event.OrderID,
				"verified", event.Verified,
			)
		}
	}
}
