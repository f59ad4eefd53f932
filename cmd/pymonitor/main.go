package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iammyeongho/pymonitor/internal/alerting"
	"github.com/iammyeongho/pymonitor/internal/config"
	"github.com/iammyeongho/pymonitor/internal/domain"
	"github.com/iammyeongho/pymonitor/internal/engine"
	"github.com/iammyeongho/pymonitor/internal/httpapi"
	apimw "github.com/iammyeongho/pymonitor/internal/httpapi/middleware"
	"github.com/iammyeongho/pymonitor/internal/logging"
	"github.com/iammyeongho/pymonitor/internal/notify"
	"github.com/iammyeongho/pymonitor/internal/probe"
	"github.com/iammyeongho/pymonitor/internal/push"
	"github.com/iammyeongho/pymonitor/internal/repo"
	"github.com/iammyeongho/pymonitor/internal/repo/memory"
	"github.com/iammyeongho/pymonitor/internal/repo/postgres"
	"github.com/iammyeongho/pymonitor/internal/scheduler"
	"github.com/iammyeongho/pymonitor/internal/status"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store repo.Gateway
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("postgres_connect_error", zap.Error(err))
		}
		defer pg.Close()
		store = pg
		logger.Info("store_postgres")
	} else {
		store = memory.New()
		logger.Info("store_memory")
	}

	registry := probe.NewRegistry()
	registry.Register(domain.CapContentMatch, probe.NewContentChecker())
	registry.Register(domain.CapSecurityHeaders, probe.NewHeadersChecker())
	registry.Register(domain.CapTCP, probe.NewTCPChecker())
	registry.Register(domain.CapDNS, probe.NewDNSChecker())
	eng := engine.New(logger, probe.NewHTTPChecker(), probe.NewTLSChecker(), probe.NewWhoisChecker(), registry)

	var channels notify.Multi
	channels = append(channels, notify.NewWebhook(os.Getenv("WEBHOOK_URL")))
	if cfg.SMTPHost != "" && len(cfg.EmailTo) > 0 {
		addr := cfg.SMTPHost + ":" + strconv.Itoa(cfg.SMTPPort)
		channels = append(channels, notify.NewEmail(addr, cfg.EmailFrom, cfg.EmailTo, cfg.SMTPUsername, cfg.SMTPPassword))
	}
	dispatcher := notify.NewAsync(logger, channels, 256)
	defer dispatcher.Close()

	decider := alerting.NewDecider(logger, store, dispatcher)
	decider.AlertOnRecovery = cfg.AlertOnRecovery

	hub := push.NewHub()
	broadcaster := push.Multi{hub}
	if cfg.RedisAddr != "" {
		rds, err := push.NewRedis(cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0, push.DefaultChannel)
		if err != nil {
			logger.Warn("redis_connect_error", zap.Error(err))
		} else {
			defer rds.Close()
			broadcaster = append(broadcaster, rds)
			logger.Info("push_redis", zap.String("addr", cfg.RedisAddr))
		}
	}

	sched := scheduler.New(logger, eng, status.NewTracker(), decider, store, broadcaster)
	if err := sched.StartAll(ctx, store, store); err != nil {
		logger.Warn("start_all_error", zap.Error(err))
	}

	api := httpapi.NewServer(logger, store, sched)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.ReadRPM, cfg.WriteRPM),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_serve_error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown_start")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	sched.Stop()
	logger.Info("shutdown_done")
}
