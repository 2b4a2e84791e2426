package main // Entry point package

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/VaradSinghal/EchoV3/internal/config"
	"github.com/VaradSinghal/EchoV3/internal/database"
	"github.com/VaradSinghal/EchoV3/internal/github"
	"github.com/VaradSinghal/EchoV3/internal/handler"
	"github.com/VaradSinghal/EchoV3/internal/middleware"
	"github.com/VaradSinghal/EchoV3/internal/model"
	"github.com/VaradSinghal/EchoV3/internal/queue"
	"github.com/VaradSinghal/EchoV3/internal/repository"
	"github.com/VaradSinghal/EchoV3/internal/router"
	queuepub "github.com/VaradSinghal/EchoV3/internal/service"
	"github.com/VaradSinghal/EchoV3/internal/syncer"
	"github.com/VaradSinghal/EchoV3/internal/token"
	"github.com/VaradSinghal/EchoV3/internal/webhook"
)

// dispatcherStore glues the webhook dispatcher's store interface onto the
// repository layer.
type dispatcherStore struct {
	repos *repository.RepoRepo
	hooks *repository.WebhookRepo
}

func (s dispatcherStore) GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error) {
	return s.repos.GetByFullName(ctx, fullName)
}
func (s dispatcherStore) ListActiveWebhooks(ctx context.Context, repositoryID string) ([]model.Webhook, error) {
	return s.hooks.ListActiveByRepository(ctx, repositoryID)
}
func (s dispatcherStore) SetOpenIssuesCount(ctx context.Context, repositoryID string, count int) error {
	return s.repos.SetOpenIssuesCount(ctx, repositoryID, count)
}
func (s dispatcherStore) TouchGitHubUpdatedAt(ctx context.Context, repositoryID string, at time.Time) error {
	return s.repos.TouchGitHubUpdatedAt(ctx, repositoryID, at)
}
func (s dispatcherStore) RecordDelivery(ctx context.Context, webhookID, status string, at time.Time) error {
	return s.hooks.RecordDelivery(ctx, webhookID, status, at)
}

func main() {
	_ = godotenv.Load() // .env is optional, real env wins

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil is fine, dedup falls back to memory
	if rdb == nil {
		log.Printf("redis unavailable, using in-process delivery dedup")
	}

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	repos := repository.NewRepoRepo(db)
	settings := repository.NewSettingsRepo(db)
	hooks := repository.NewWebhookRepo(db)

	tokens := token.New(cfg.JWTSecret,
		time.Duration(cfg.AccessTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour)

	oauth := github.NewOAuth(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURI)

	dedup := webhook.NewDeduper(rdb, 24*time.Hour)
	dispatcher := webhook.NewDispatcher(dispatcherStore{repos: repos, hooks: hooks}, dedup)
	dispatcher.Notify = func(ctx context.Context, ev queue.RepoEvent) {
		_ = queuepub.PublishRepoEvent(ctx, ev) // best effort, already logged inside
	}

	authH := handler.NewAuthHandler(cfg, users, sessions, tokens, oauth)
	repoH := handler.NewRepositoryHandler(cfg, users, repos, settings, hooks)
	hookH := handler.NewWebhookHandler(dispatcher)
	healthH := handler.NewHealthHandler(db)

	// Background loops share one context cancelled at shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := syncer.NewScheduler(repos,
		func(tok string) syncer.GitHubClient { return github.NewClient(tok) },
		time.Duration(cfg.SyncIntervalMin)*time.Minute, cfg.SyncWorkers)
	go scheduler.Run(ctx)

	cleaner := syncer.NewSessionCleaner(sessions,
		time.Duration(cfg.CleanupEveryMin)*time.Minute,
		time.Duration(cfg.SessionIdleDays)*24*time.Hour)
	go cleaner.Run(ctx)

	go func() {
		if err := queue.StartRepoEventConsumer(); err != nil {
			log.Printf("repo-event-consumer: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.Auth(tokens, router.PublicPaths()))
	e.Use(middleware.RateLimit(rlCfg, middleware.NewRateLimiter(rlCfg.Requests, rlCfg.Window)))

	router.RegisterHealth(e, healthH)
	router.RegisterAuth(e, authH)
	router.RegisterRepositories(e, repoH)
	router.RegisterWebhooks(e, hookH)

	go func() {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// Block until SIGINT/SIGTERM, then stop the loops and drain the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
