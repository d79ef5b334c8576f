// Package edge wires the edge decision server: rule cache, sync puller,
// stats pipeline, and the catch-all decision route.
package edge

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"traffic-decision-engine/internal/bandit"
	"traffic-decision-engine/internal/cache"
	"traffic-decision-engine/internal/classify"
	"traffic-decision-engine/internal/config"
	"traffic-decision-engine/internal/exec"
	"traffic-decision-engine/internal/observability"
	"traffic-decision-engine/internal/stats"
	syncer "traffic-decision-engine/internal/sync"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ruleCache := cache.New(cfg.CacheTTL())
	agg := stats.NewAggregator(cfg.Stats.QueueSize)
	policy := bandit.New(cfg.Bandit.Policy)
	executor := exec.New(ruleCache, policy, agg)

	opts := classify.Options{
		CountryHeader: cfg.Classify.CountryHeader,
		RegionHeader:  cfg.Classify.RegionHeader,
	}
	h, err := NewDecisionHandler(executor, opts, cfg.Edge.UpstreamURL)
	if err != nil {
		log.Fatal().Err(err).Msg("bad upstream url")
	}

	puller := syncer.NewPuller(cfg.Sync.URL, cfg.Sync.Token, ruleCache, cfg.SyncInterval(), cfg.SyncTimeout())
	pusher := stats.NewPusher(agg, cfg.Stats.URL, cfg.Stats.Token, cfg.Stats.AccountID, cfg.PushInterval())

	go agg.Run(rootCtx)
	go puller.Run(rootCtx)
	go pusher.Run(rootCtx)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      Router(h),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("policy", policy.Name()).Msg("edge server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines; pusher flushes once on the way out
	_ = srv.Shutdown(shCtx)
}

func Router(h *DecisionHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	r.Handle("/*", h)
	return r
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
