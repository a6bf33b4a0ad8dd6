// Server runs the session registry HTTP API plus the background reaper.
// Configure via env or .env: HTTP_ADDR, STORE_BACKEND, SESSION_IDLE_TIMEOUT,
// REAPER_INTERVAL, and optionally OTLP_ENDPOINT, KAFKA_BROKERS, FIELD_KEY.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"session-registry/backend/internal/clock"
	"session-registry/backend/internal/config"
	"session-registry/backend/internal/db"
	"session-registry/backend/internal/netinfo"
	"session-registry/backend/internal/security"
	"session-registry/backend/internal/server"
	"session-registry/backend/internal/session/repository"
	sessionservice "session-registry/backend/internal/session/service"
	"session-registry/backend/internal/telemetry"
	otelsetup "session-registry/backend/internal/telemetry/otel"
	"session-registry/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "session-registry", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	store, pinger, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	serverInfo := netinfo.Discover()
	if serverInfo.IP == "" {
		log.Println("netinfo: no non-loopback IPv4 interface found; server network fields will be empty")
	}

	cipher, err := security.NewFieldCipher(cfg.FieldKeyBytes())
	if err != nil {
		log.Fatalf("field cipher: %v", err)
	}

	emitters := telemetry.MultiEmitter{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	if brokers := cfg.AuditKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err := producer.NewKafkaProducer(brokers, cfg.AuditKafkaTopic)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		defer kafkaProducer.Close()
		emitters = append(emitters, kafkaProducer)
	}

	svc := sessionservice.New(store, clock.System{}, serverInfo, cfg.IdleTimeout(), cipher, emitters)

	reaper := sessionservice.NewReaper(svc, cfg.ReapEvery())
	go reaper.Run(ctx)

	router := server.NewRouter(server.Deps{
		Session:      svc,
		HealthPinger: pinger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s (store %s, idle timeout %s)",
			cfg.HTTPAddr, cfg.StoreBackend, cfg.IdleTimeout())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Let in-flight async audit emits finish before the providers close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Println("HTTP server stopped")
}

// openStore builds the session store selected by STORE_BACKEND and returns it
// with an optional readiness pinger and a close function.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, server.Pinger, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return repository.NewPostgresStore(sqlDB), sqlDB, func() { sqlDB.Close() }, nil
	case "mongo":
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := repository.NewMongoStore(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(disconnectCtx)
		}
		return store, mongoPinger{client}, closeFn, nil
	default:
		return repository.NewMemoryStore(), nil, func() {}, nil
	}
}

// mongoPinger adapts *mongo.Client to the server.Pinger interface.
type mongoPinger struct {
	client *mongo.Client
}

func (p mongoPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx, nil)
}

var _ server.Pinger = (*sql.DB)(nil)
