// Package entrypoint wires configuration, storage, the session cache,
// and the HTTP router together and runs the server.
package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/whispered/usersd/internal/auth"
	"github.com/whispered/usersd/internal/config"
	"github.com/whispered/usersd/internal/database"
	"github.com/whispered/usersd/internal/database/audit"
	"github.com/whispered/usersd/internal/database/users"
	http_controllers "github.com/whispered/usersd/internal/http"
	"github.com/whispered/usersd/internal/sessioncache"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting usersd v%s", version)

	if cfg.Auth.SessionSecret == "" {
		log.Fatalf("SESSION_PRIVATE_KEY is not set. Generate one with '%s gen-secret'.", os.Args[0])
	}
	if !cfg.Auth.SessionEnabled && !cfg.Auth.TokenEnabled {
		log.Fatalf("Both session and token strategies are disabled; nothing could ever authenticate.")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	userRepo := users.NewRepository(db.DB)
	auditRepo := audit.NewRepository(db.DB)

	cache, cacheCleanup, err := buildCache(cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize session cache: %v", err)
	}

	var tokens *auth.TokenIssuer
	if cfg.Auth.TokenEnabled {
		tokens = auth.NewTokenIssuer(cfg.Auth.SessionSecret, cfg.Auth.Expire)
	}

	orchestrator := auth.NewOrchestrator(userRepo, cache, tokens, cfg.Auth)

	if count, err := userRepo.Count(); err == nil && count == 0 {
		log.Printf("No users found. Seed the first account with '%s create-user'.", os.Args[0])
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Users:        userRepo,
		Audit:        auditRepo,
		Cache:        cache,
		Tokens:       tokens,
		Orchestrator: orchestrator,
		AuthConfig:   cfg.Auth,
		Version:      version,
	})

	Serve(router, cfg, func(ctx context.Context) {
		if cacheCleanup != nil {
			cacheCleanup()
		}
	})
}

// buildCache constructs the configured session cache backend and
// returns it with an optional cleanup hook.
func buildCache(cfg *config.Config, db *database.Database) (sessioncache.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory, "":
		mem := sessioncache.NewMemory(cfg.Auth.Expire)
		stopSweep := startMemorySweep(mem, cfg.Cache.SweepSchedule)
		log.Printf("Session cache: in-memory (sweep schedule %q)", cfg.Cache.SweepSchedule)
		return mem, stopSweep, nil

	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Printf("Session cache: redis at %s", cfg.Redis.Addr)
		cleanup := func() {
			if err := client.Close(); err != nil {
				log.Printf("Error closing redis client: %v", err)
			}
		}
		return sessioncache.NewRedis(client, cfg.Auth.Expire), cleanup, nil

	case config.CacheBackendSQLite:
		sqlDB, err := db.DB.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("get sql db: %w", err)
		}
		store, err := sessioncache.NewSQLite(sqlDB, cfg.Auth.Expire)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Session cache: sqlite (shared with users database)")
		return store, store.StopCleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// startMemorySweep schedules periodic purging of expired entries from
// the memory backend and returns a stop function.
func startMemorySweep(mem *sessioncache.Memory, schedule string) func() {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if purged := mem.Sweep(); purged > 0 {
			log.Printf("Session sweep purged %d expired entries", purged)
		}
	})
	if err != nil {
		log.Printf("WARNING: invalid sweep schedule %q, expired sessions will only be evicted lazily: %v", schedule, err)
		return func() {}
	}
	c.Start()
	return func() { c.Stop() }
}
