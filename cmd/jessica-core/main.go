package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wyldephyre/jessica-core/internal/config"
	"github.com/wyldephyre/jessica-core/internal/googleapi"
	"github.com/wyldephyre/jessica-core/internal/logging"
	"github.com/wyldephyre/jessica-core/internal/memory"
	"github.com/wyldephyre/jessica-core/internal/oauth"
	"github.com/wyldephyre/jessica-core/internal/orchestrator"
	"github.com/wyldephyre/jessica-core/internal/provider"
	"github.com/wyldephyre/jessica-core/internal/scheduler"
	"github.com/wyldephyre/jessica-core/internal/server"
	"github.com/wyldephyre/jessica-core/internal/store"
	"github.com/wyldephyre/jessica-core/internal/tasks"
	"github.com/wyldephyre/jessica-core/internal/token"
	"github.com/wyldephyre/jessica-core/internal/tools"
	"github.com/wyldephyre/jessica-core/internal/transcribe"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	// .env is optional; secrets can come from the real environment
	_ = godotenv.Load()

	logger := logging.WithComponent("main")
	logger.Info("Starting jessica-core", "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	redisClient, err := store.NewRedisClient(store.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("Redis connected", "addr", cfg.Redis.Addr)

	googleOAuth := oauth.NewGoogleProvider(
		cfg.Google.ClientID,
		cfg.Google.ClientSecret,
		cfg.Google.RedirectURI,
	)
	tokenService := token.NewService(
		token.NewRedisStore(redisClient),
		googleOAuth,
		logging.WithComponent("token"),
	)

	mem, err := memory.New(&cfg.Memory)
	if err != nil {
		logger.Error("Failed to initialize memory provider", "error", err)
		os.Exit(1)
	}
	logger.Info("Memory provider ready", "provider", mem.Name())

	providers := provider.NewRegistry(&cfg.Providers)
	for _, name := range providers.Names() {
		client, err := providers.Get(name)
		if err != nil {
			continue
		}
		if healthErr := client.Health(); healthErr != nil {
			logger.Warn("Provider not configured", "provider", name, "error", healthErr)
		} else {
			logger.Info("Provider OK", "provider", name)
		}
	}

	calendarClient := googleapi.NewCalendarClient("")
	gmailClient := googleapi.NewGmailClient("")
	docsClient := googleapi.NewDocsClient("")

	toolRegistry := tools.NewRegistry()
	tools.RegisterGoogleTools(toolRegistry, tools.GoogleDeps{
		Tokens:   tokenService,
		Calendar: calendarClient,
		Gmail:    gmailClient,
		Docs:     docsClient,
	})

	orch := orchestrator.New(providers, mem, toolRegistry, tokenService)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(tokenService, cfg.Scheduler.RefreshSpec, []string{orchestrator.DefaultUserID})
		if err != nil {
			logger.Error("Failed to create token refresh scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
		logger.Info("Token refresh scheduler started", "spec", cfg.Scheduler.RefreshSpec)
	}

	srv := server.New(server.Deps{
		Config:   cfg,
		Chat:     orch,
		Tokens:   tokenService,
		OAuth:    googleOAuth,
		Calendar: calendarClient,
		Gmail:    gmailClient,
		Docs:     docsClient,
		Memory:   mem,
		Tasks:    tasks.NewService(redisClient),
		Transcriber: transcribe.NewService(transcribe.Config{
			URL:         cfg.Transcribe.URL,
			MaxUploadMB: cfg.Transcribe.MaxUploadMB,
			Timeout:     cfg.Transcribe.Timeout(),
		}),
		Providers: providers,
		Store:     redisClient,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Shutdown complete")
}
