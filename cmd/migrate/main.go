// migrate applies the embedded SQL migrations: go run ./cmd/migrate -direction up|down.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"workbench-api/internal/config"
	"workbench-api/internal/db/migrate"
	"workbench-api/internal/platform/logging"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	res, err := migrate.Run(cfg.DatabaseURL, *direction)
	if err != nil {
		log.WithError(err).WithField("direction", *direction).Fatal("migrate: failed")
	}
	entry := log.WithFields(logrus.Fields{
		"direction": *direction,
		"version":   res.Version,
		"dirty":     res.Dirty,
	})
	if !res.Changed {
		entry.Info("migrate: already at target")
		return
	}
	entry.Info("migrate: applied")
}
