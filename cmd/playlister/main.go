package main

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"playlister/internal/store"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	db, err := store.Open(cfg.Store)
	if err != nil {
		logger.Fatal().Err(err).Msg("select database backend")
	}
	if err := db.Connect(context.Background()); err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("connect database")
	}
	defer db.Close()

	handler := newHTTPHandler(cfg, db, logger)

	logger.Info().Str("addr", cfg.Addr).Str("backend", cfg.Store.Backend).Msg("listening")
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
