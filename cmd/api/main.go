package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sesamum.org/internal/apiclient"
	"sesamum.org/internal/config"
	"sesamum.org/internal/dashboard"
	"sesamum.org/internal/httpapi"
	"sesamum.org/internal/obs"
	"sesamum.org/internal/poll"
	"sesamum.org/internal/recent"
	"sesamum.org/internal/session"
	"sesamum.org/internal/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("state store: %v", err)
	}
	defer backend.Close()

	sess := session.New(backend.KV, session.WithDevUser(cfg.DevMode))
	api := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithCredentials(sess),
		apiclient.WithRateLimit(cfg.APIRateLimit, cfg.APIRateBurst),
	)
	svc := dashboard.NewService(api)

	pollOpts := []poll.Option{
		poll.WithInterval(cfg.PollInterval),
		poll.WithEnabled(cfg.PollEnabled),
		poll.WithPauseWhenHidden(cfg.PauseWhenHidden),
	}
	metrics := poll.New(apiclient.WithErrorMessages(svc.Metrics),
		append(pollOpts, poll.WithName("dashboard_metrics"))...)
	calendar := poll.New(apiclient.WithErrorMessages(svc.Calendar),
		append(pollOpts, poll.WithName("dashboard_calendar"))...)
	metrics.Start(ctx)
	calendar.Start(ctx)
	go poll.WatchConnectivity(ctx, cfg.ConnectivityInterval, api.Ping, func(online bool) {
		metrics.SetOnline(online)
		calendar.SetOnline(online)
	})

	go func() {
		for ev := range sess.Logouts(ctx) {
			obs.Info("session ended", map[string]any{"reason": ev.Reason})
		}
	}()

	h := httpapi.New(httpapi.Deps{
		Version:    version,
		Ready:      httpapi.ReadyProbe{DB: backend.DB},
		AuthSecret: []byte(cfg.AuthSecret),
		DevMode:    cfg.DevMode,
		Session:    sess,
		Metrics:    metrics,
		Calendar:   calendar,
		Dashboard:  svc,
		Recent:     recent.NewTracker(backend.KV),
		RateBurst:  cfg.RateBurst,
		RatePerSec: cfg.RatePerSec,
	})

	// Request contexts derive from ctx so open event streams end on shutdown.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	obs.Info("starting sesamum agent", map[string]any{
		"version":       version,
		"addr":          srv.Addr,
		"api_base_url":  api.BaseURL(),
		"state_backend": cfg.StateBackend,
		"dev_mode":      cfg.DevMode,
	})

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		obs.Error("listen failed", map[string]any{"err": err})
	}
	obs.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	metrics.Stop()
	calendar.Stop()
	obs.Info("stopped", nil)
}
