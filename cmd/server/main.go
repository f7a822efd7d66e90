package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"libris/internal/app"
	"libris/internal/config"
	"libris/internal/ratelimit"
	"libris/internal/server"
	"libris/internal/util"
	"libris/pkg/audit"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session ttl: %v", err)
	}
	rateWindow, err := config.ParseFeedbackRateWindow(cfg.FeedbackRateWindow)
	if err != nil {
		log.Fatalf("failed to parse feedback rate window: %v", err)
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	var auditRecorder audit.Recorder = audit.NopRecorder{}
	var auditReader server.AuditReader
	if cfg.RedisAddr != "" && cfg.AuditStream != "" {
		auditLog, err := audit.NewRedisAuditLog(cfg.RedisAddr, cfg.RedisPassword, cfg.AuditStream)
		if err != nil {
			log.Fatalf("failed to init audit log: %v", err)
		}
		auditRecorder = auditLog
		auditReader = auditLog
	}

	// Rate limiting is shared across replicas when redis is configured,
	// local otherwise, and off entirely in test deployments.
	var limiter ratelimit.Limiter
	switch {
	case cfg.DisableRateLimit:
		slog.Info("feedback rate limiting disabled")
	case cfg.RedisAddr != "":
		limiter, err = ratelimit.NewRedisSlidingWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "libris:ratelimit", rateWindow)
		if err != nil {
			log.Fatalf("failed to init redis rate limiter: %v", err)
		}
	default:
		limiter = ratelimit.NewSlidingWindowLimiter(rateWindow)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		JWTSecret:   cfg.JWTSecret,
		SessionTTL:  sessionTTL,
		Audit:       auditRecorder,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Limiter:        limiter,
		Audit:          auditReader,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("libris server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
