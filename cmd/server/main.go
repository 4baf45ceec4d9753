package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/concert-reservation/internal/config"
	"github.com/iliyamo/concert-reservation/internal/middleware"
	"github.com/iliyamo/concert-reservation/internal/queue"
	"github.com/iliyamo/concert-reservation/internal/repository"
	"github.com/iliyamo/concert-reservation/internal/router"
	"github.com/iliyamo/concert-reservation/internal/service"
)

func main() {
	cfg := config.Load()
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		log.Warnf("redis unavailable, caching and rate limiting disabled: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	opts := []repository.Option{
		repository.WithObserver(cache.InvalidateOnCommit),
	}

	hcfg := config.LoadHistoryEventsConfig()
	if hcfg.Enabled {
		pub := service.NewHistoryPublisher(hcfg.URL, hcfg.Queue, 1024)
		go pub.Run(ctx)
		opts = append(opts, repository.WithObserver(pub.Enqueue))
		log.Infof("publishing history events to queue %s", hcfg.Queue)
	}
	if hcfg.RunConsumer {
		consumer := &queue.Consumer{URL: hcfg.URL, Queue: hcfg.Queue, LogPath: hcfg.LogPath}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("history-consumer: %v", err)
			}
		}()
	}

	ledger := repository.NewReservationLedger(opts...)
	e := router.New(router.Deps{
		Config:    cfg,
		Ledger:    ledger,
		Cache:     cache,
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
