package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/cliniccompass/cliniccompass-backend/internal/config"
	"github.com/cliniccompass/cliniccompass-backend/internal/database"
	"github.com/cliniccompass/cliniccompass-backend/internal/handlers"
	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
	"github.com/cliniccompass/cliniccompass-backend/internal/llm"
	"github.com/cliniccompass/cliniccompass-backend/internal/middleware"
	"github.com/cliniccompass/cliniccompass-backend/internal/routes"
	"github.com/cliniccompass/cliniccompass-backend/internal/services"
	"github.com/cliniccompass/cliniccompass-backend/pkg/clientip"
	"github.com/cliniccompass/cliniccompass-backend/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

// backends are the open connections; close releases all of them.
type backends struct {
	postgres  *sql.DB
	redis     *redis.Client
	mongo     *mongo.Client
	firestore *firestore.Client
	records   services.RecordStore
	creds     *database.CredentialRepository
}

func connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backends, error) {
	b := &backends{}

	db, err := database.ConnectPostgres(ctx, cfg.PostgresURI, logger)
	if err != nil {
		return nil, err
	}
	b.postgres = db
	b.creds = database.NewCredentialRepository(db)

	switch cfg.StoreBackend {
	case config.StoreFirestore:
		client, err := database.ConnectFirestore(ctx, cfg.FirestoreProject, logger)
		if err != nil {
			b.close(logger)
			return nil, err
		}
		b.firestore = client
		b.records = database.NewFirestoreStore(client)
	default:
		client, mdb, err := database.ConnectMongo(ctx, cfg.MongoURI, logger)
		if err != nil {
			b.close(logger)
			return nil, err
		}
		b.mongo = client
		b.records = database.NewMongoStore(mdb)
	}
	return b, nil
}

func (b *backends) close(logger zerolog.Logger) {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("redis close failed")
		}
	}
	if b.mongo != nil {
		if err := database.DisconnectMongo(b.mongo); err != nil {
			logger.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}
	if b.firestore != nil {
		if err := b.firestore.Close(); err != nil {
			logger.Warn().Err(err).Msg("firestore close failed")
		}
	}
	if b.postgres != nil {
		if err := b.postgres.Close(); err != nil {
			logger.Warn().Err(err).Msg("postgres close failed")
		}
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	b, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	if err := database.MigratePostgres(ctx, b.postgres); err != nil {
		return err
	}
	logger.Info().Msg("postgres migrations applied")

	if ms, ok := b.records.(*database.MongoStore); ok {
		if err := ms.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logger.Info().Msg("mongo indexes ensured")
	}
	return nil
}

func newProvider(ctx context.Context, cfg *config.Config, logger zerolog.Logger) llm.Provider {
	if cfg.LLMProvider == config.ProviderGemini {
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("gemini unavailable; answering in demo mode")
			return &llm.Static{Result: llm.Quota(err)}
		}
		return client
	}
	if cfg.OpenAIAPIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY not set; answering in demo mode")
	}
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.LLMTimeout,
	})
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	if err := database.MigratePostgres(ctx, b.postgres); err != nil {
		return err
	}
	if ms, ok := b.records.(*database.MongoStore); ok {
		if err := ms.EnsureIndexes(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to ensure mongo indexes")
		}
	}

	rdb, err := database.ConnectRedis(ctx, cfg.RedisURI, logger)
	if err != nil {
		return err
	}
	b.redis = rdb

	cipher, err := utils.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}
	if cipher == nil {
		logger.Warn().Msg("ENCRYPTION_KEY not set; instructions and notes are stored in plaintext")
	}

	catalog := i18n.Default()
	provider := newProvider(ctx, cfg, logger)
	logger.Info().Str("provider", provider.Name()).Msg("llm provider ready")

	dispatcher := services.NewSessionDispatcher(rdb, logger)
	identity := services.NewIdentityService(b.creds, b.records, services.NewSessionStore(rdb), dispatcher, logger)

	var places services.PlacesSearcher
	if cfg.GoogleMapsAPIKey != "" {
		places = services.NewPlacesClient(cfg.GoogleMapsAPIKey, cfg.PlacesBaseURL, cfg.PlacesRelayURL)
	}
	geocoder := services.NewNominatimGeocoder(cfg.NominatimBaseURL, services.NewCache(rdb, cfg.GeocodeCacheTTL))

	// Shutdown does not wait for hijacked connections; sockets end with this.
	wsCtx, wsCancel := context.WithCancel(context.Background())
	defer wsCancel()

	h := handlers.New(handlers.Deps{
		Identity:    identity,
		Medications: services.NewMedicationService(b.records, cipher),
		Visits:      services.NewVisitService(b.records, cipher),
		Triage:      services.NewTriageService(provider, catalog, logger),
		Assistant:   services.NewAssistantService(provider, catalog, logger),
		Clinics:     services.NewClinicLocator(geocoder, places, logger),
		Catalog:     catalog,
		Logger:      logger,
		BaseContext: wsCtx,
	})

	resolver := clientip.Resolver{TrustProxy: cfg.TrustProxy}
	limiters := middleware.NewLimiters(resolver)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(logger, resolver))
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → per-IP limits.
	// Non-production: Redis-based rate limit only.
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost, limiters) {
			r.Use(mw)
		}
		logger.Info().Str("host", cfg.AllowedHost).Msg("production security enabled")
	} else {
		r.Use(middleware.NewRedisRateLimiter(rdb, resolver, logger).Handler)
	}

	routes.SetupRoutes(r, h, identity, limiters.AI.Handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(wsCancel)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		limiters.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.Environment).Msg("ClinicCompass backend running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
