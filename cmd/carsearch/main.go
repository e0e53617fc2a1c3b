package main

import (
	"context"
	"net/http"

	"github.com/smashj-dev/car-search-platform/internal/logging"
	"github.com/smashj-dev/car-search-platform/internal/store"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logging.New(logging.Config{}).Fatal(err, "invalid configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.SetGlobalLogger(logger)

	db, err := openDatabase(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal(err, "database unavailable")
	}
	defer db.Close()

	dataStore := store.New(db)

	if cfg.SeedDemoData {
		if err := bootstrapDemoData(context.Background(), db, dataStore); err != nil {
			logger.Fatal(err, "demo data bootstrap failed")
		}
	}

	handler := newHTTPHandler(cfg, db, dataStore, logger)

	logger.Info("search API listening on " + cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal(err, "server error")
	}
}
