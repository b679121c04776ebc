package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MutualAidNYC/twilio-server/internal/config"
	"github.com/MutualAidNYC/twilio-server/internal/directory"
	"github.com/MutualAidNYC/twilio-server/internal/dispatch"
	"github.com/MutualAidNYC/twilio-server/internal/httpapi"
	"github.com/MutualAidNYC/twilio-server/internal/roster"
	"github.com/MutualAidNYC/twilio-server/internal/schedule"
	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
	"github.com/MutualAidNYC/twilio-server/pkg/logger"
	"github.com/MutualAidNYC/twilio-server/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
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

	tr, err := taskrouter.NewRESTClient(taskrouter.ClientOptions{
		AccountSID:   cfg.Twilio.AccountSID,
		AuthToken:    cfg.Twilio.AuthToken,
		WorkspaceSID: cfg.Twilio.WorkspaceSID,
	})
	if err != nil {
		log.Error("taskrouter init failed", "err", err)
		os.Exit(1)
	}

	rosterClient, err := roster.NewClient(roster.ClientOptions{APIKey: cfg.Airtable.APIKey})
	if err != nil {
		log.Error("roster init failed", "err", err)
		os.Exit(1)
	}
	store := roster.NewStore(rosterClient, cfg.Airtable.PhoneBase, cfg.Airtable.VMBase, log)

	// The directory must be complete before the first webhook lands.
	dir := directory.New(tr, log)
	if err := dir.Load(rootCtx); err != nil {
		log.Error("worker directory load failed", "err", err)
		os.Exit(1)
	}

	svc := dispatch.New(cfg, tr, dir, store, log)
	sync := directory.NewSynchronizer(dir, tr, store, cfg.Twilio.VoicemailPhone, log)
	hours := schedule.NewCache(store, rdb, 3*cfg.Sync.ScheduleInterval, log)

	if err := hours.Refresh(rootCtx); err != nil {
		// Not fatal; the cache fills on first request instead.
		log.Warn("initial schedule refresh failed", "err", err)
	}

	go hours.Run(rootCtx, cfg.Sync.ScheduleInterval)
	go store.RunVoicemailPurge(rootCtx, tr, time.Minute)
	go runRosterSync(rootCtx, sync, cfg.Sync.RosterInterval, log)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{Dispatch: svc, Schedule: hours}
	sigMW := httpapi.RequireTwilioSignature(cfg.Twilio.AuthToken, cfg.App.HostName, cfg.IsProduction())
	registerRoutes(r, h, sigMW)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("dispatch server listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store.StopVoicemailPurge()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Let in-flight background mutations (rejects, leg updates) land.
	svc.Drain()
}

// runRosterSync reconciles the roster on a fixed cadence. A failed run is
// logged and retried next tick; the directory keeps serving the previous
// snapshot.
func runRosterSync(ctx context.Context, sync *directory.Synchronizer, interval time.Duration, log *slog.Logger) {
	if _, err := sync.Sync(ctx); err != nil {
		log.Error("initial roster sync failed", "err", err)
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := sync.Sync(ctx); err != nil {
				log.Error("roster sync failed", "err", err)
			}
		}
	}
}
