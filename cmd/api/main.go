package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collections-portal/internal/accounts"
	"collections-portal/internal/callhistory"
	"collections-portal/internal/config"
	"collections-portal/internal/httpapi"
	"collections-portal/internal/session"
	"collections-portal/internal/telephony"
	"collections-portal/pkg/logger"
	"collections-portal/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		// Print every missing name; never start half-configured.
		fmt.Fprintln(os.Stderr, "config load failed:")
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	accountStore := accounts.NewService(accounts.NewRedisRepo(rdb))
	if err := accountStore.Seed(rootCtx); err != nil {
		log.Warn("account seed failed", "err", err)
	}

	history := callhistory.NewLog(callhistory.NewRedisRepo(rdb))
	if cfg.ArchiveEnabled() {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		history = history.WithArchive(callhistory.NewPostgresArchive(db))
		log.Info("call attempt archive enabled")
	}

	issuer, err := telephony.NewTokenIssuer(
		cfg.Twilio.AccountSID,
		cfg.Twilio.APIKey,
		cfg.Twilio.APISecret,
		cfg.Twilio.TwiMLAppSID,
	)
	if err != nil {
		log.Error("token issuer init failed", "err", err)
		os.Exit(1)
	}

	controller, err := session.NewController(session.Config{
		Tokens: func(ctx context.Context) (string, error) { return issuer.Issue() },
		Factory: telephony.NewRESTDeviceFactory(telephony.RESTDeviceConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.PhoneNumber,
			VoiceURL:   cfg.VoiceWebhookURL(),
		}),
		Guard:    session.NewRedisGuard(rdb, telephony.Identity),
		Accounts: accountStore,
		History:  history,
		Notifier: session.LogNotifier{Log: log},
	})
	if err != nil {
		log.Error("session controller init failed", "err", err)
		os.Exit(1)
	}

	// A failed init lands the session in Failed with the dial action
	// disabled; the process keeps serving tokens and webhooks.
	go func() {
		if err := controller.Init(rootCtx); err != nil {
			log.Error("session init failed", "err", err)
		}
	}()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Accounts:  accountStore,
		History:   history,
		Session:   controller,
		Tokens:    issuer,
		StartedAt: time.Now(),
	}
	registerRoutes(r, h, telephony.VoiceWebhookHandler{CallerID: cfg.Twilio.PhoneNumber}, cfg.App.StaticDir)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("portal listening", "addr", srv.Addr, "env", cfg.App.Env, "caller_id", cfg.Twilio.PhoneNumber)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
