package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/Keyhaven-io/keyhaven/internal/api"
	"github.com/Keyhaven-io/keyhaven/internal/auth"
	"github.com/Keyhaven-io/keyhaven/internal/config"
	"github.com/Keyhaven-io/keyhaven/internal/database"
	"github.com/Keyhaven-io/keyhaven/internal/notify"
	"github.com/Keyhaven-io/keyhaven/internal/ratelimit"
	"github.com/Keyhaven-io/keyhaven/internal/store"
	"github.com/redis/go-redis/v9"
)

const version = "0.1.0"

func buildDispatcher(cfg *config.Config) (notify.Dispatcher, error) {
	if cfg.Mail.Provider == "ses" {
		return notify.NewSESDispatcher(context.Background(), cfg.Mail.Region, cfg.Mail.FromAddress)
	}
	return &notify.LogDispatcher{}, nil
}

func buildCounter(cfg *config.Config) ratelimit.Counter {
	if cfg.RateLimit.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		return ratelimit.NewRedisCounter(client)
	}
	return ratelimit.NewMemoryCounter()
}

func initializeAPI(configPath string) (*api.Api, *auth.Service, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	if err := database.Init(cfg); err != nil {
		return nil, nil, err
	}

	dispatcher, err := buildDispatcher(cfg)
	if err != nil {
		return nil, nil, err
	}

	credStore := store.New(database.GetDB(), cfg.Database.Driver)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	svc := auth.NewService(credStore, tokens, dispatcher, cfg.Mail.FrontendURL, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	counter := buildCounter(cfg)
	registerLimiter := ratelimit.New(counter, cfg.RateLimit.RegisterPerHour, time.Hour)
	resetLimiter := ratelimit.New(counter, cfg.RateLimit.ResetPerHour, time.Hour)

	apiInstance, err := api.NewApi(*cfg, svc, registerLimiter, resetLimiter)
	if err != nil {
		return nil, nil, err
	}

	return apiInstance, svc, nil
}

func runCleanup(svc *auth.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := svc.CleanupExpired(context.Background()); err != nil {
			log.Printf("Cleanup failed: %v", err)
		}
	}
}

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	flag.Parse()

	log.Printf("Starting Keyhaven API v%s with config: %s", version, *configPath)

	apiInstance, svc, err := initializeAPI(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	go runCleanup(svc, apiInstance.Config.Auth.CleanupInterval)

	if err := apiInstance.Serve(); err != nil {
		log.Fatal(err)
	}
}
