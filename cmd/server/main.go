// capsule-match — two-channel semantic matching service for the
// jobs/freelancers marketplace.
//
// This is the main entry point for the capsule-match server. It wires:
//   - the vector store adapter (Pinecone or in-memory)
//   - the LLM classifier with deterministic heuristic fallback
//   - the capsule embedder
//   - the subject-matter semantic gate
//   - the qualification store (Postgres or in-memory) and its retention janitor
//   - the fire-and-forget audit sink
//   - Slack threshold alerting
//   - the HTTP gateway (chi router + handlers)
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/westonopentrain/capsule-match/internal/appserver"
	"github.com/westonopentrain/capsule-match/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	configureLogging(cfg)

	log.Info().Str("version", cfg.Version).Msg("capsule-match starting...")

	ctx := context.Background()
	srv, err := appserver.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		httpServer.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during service shutdown")
		}
	}()

	log.Info().Int("port", srv.Port).Msg("capsule-match is ready")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func configureLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
