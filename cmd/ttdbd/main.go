// cmd/ttdbd is the TTDB server process: it loads configuration, wires the
// engine components together, and serves connections until interrupted.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"ttdb/internal/config"
	"ttdb/internal/dispatch"
	"ttdb/internal/purge"
	"ttdb/internal/server"
	"ttdb/internal/session"
	"ttdb/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ttdbd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	entry := logrus.NewEntry(log)

	root := store.NewRoot(cfg.PurgePeriod)
	clk := store.NewClock()
	manager := session.NewManager(root, clk, entry.WithField("component", "session"))
	purger := purge.New(manager, entry.WithField("component", "purge"))
	scheduler, err := purge.NewScheduler(purger, cfg.PurgePeriod, entry.WithField("component", "purge"))
	if err != nil {
		return err
	}
	d := dispatch.New(manager, purger, cfg.PurgePeriod, entry.WithField("component", "dispatch"))
	srv := server.New(cfg.SocketPath, d, scheduler, entry.WithField("component", "server"))

	entry.WithFields(logrus.Fields{"socket": cfg.SocketPath, "purge_period": cfg.PurgePeriod}).Info("starting ttdbd")
	return srv.Run(context.Background())
}
