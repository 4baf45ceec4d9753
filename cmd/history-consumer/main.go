// Command history-consumer appends concert history events published by
// the server to a log file, one line per event.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/concert-reservation/internal/config"
	"github.com/iliyamo/concert-reservation/internal/queue"
)

func main() {
	config.LoadDotEnv()
	hcfg := config.LoadHistoryEventsConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := &queue.Consumer{URL: hcfg.URL, Queue: hcfg.Queue, LogPath: hcfg.LogPath}
	log.Infof("history-consumer: consuming %s into %s", hcfg.Queue, hcfg.LogPath)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
