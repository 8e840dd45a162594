package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capital-quiz-service/internal/app"
	"capital-quiz-service/internal/config"
	"capital-quiz-service/internal/infra/memory"
	"capital-quiz-service/internal/infra/postgres"
	redisinfra "capital-quiz-service/internal/infra/redis"
	"capital-quiz-service/internal/infra/sqlite"
	"capital-quiz-service/internal/infra/worldbank"
	transport "capital-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// catalogCacheTTL resolves the catalog cache lifetime: the redis-backed
// cache honors redis.ttl when set, otherwise both backends fall back to
// countries.ttl, then to a day.
func catalogCacheTTL(cfg config.Config, redisBacked bool) time.Duration {
	base := config.TTLDuration(cfg.Countries.TTL, 24*time.Hour)
	if redisBacked {
		return config.TTLDuration(cfg.Redis.TTL, base)
	}
	return base
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var loader memory.CatalogLoader = worldbank.NewClient(cfg.Countries.BaseURL)
	if pool != nil {
		loader = postgres.NewCatalogStore(pool, loader)
	}

	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = redisinfra.NewCatalogRepository(redisClient, loader, catalogCacheTTL(cfg, true))
	} else {
		catalog = memory.NewCatalogRepository(loader, catalogCacheTTL(cfg, false))
	}

	var facts app.FactStore
	switch {
	case pool != nil:
		facts = postgres.NewFactStore(pool)
	case cfg.SQLite.Path != "":
		store, err := sqlite.NewFactStore(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		facts = store
	default:
		facts = memory.NewFactStore()
	}

	// One-time blocking hydration; without country data there is nothing to serve.
	hydrated, err := catalog.GetCatalog(ctx)
	if err != nil {
		return fmt.Errorf("hydrate country catalog: %w", err)
	}
	log.Printf("country catalog hydrated: %d countries", hydrated.Len())

	service := app.NewReportService(facts, catalog)
	metricsWindow := config.TTLDuration(cfg.Metrics.Window, 24*time.Hour)
	handler := transport.NewHandler(service, metricsWindow)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting capital quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
