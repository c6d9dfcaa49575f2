// Command mockbackend serves the e-reader backend contract from memory for
// local development. Data is seeded at start and lost on exit.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ereader/internal/mockbackend"
	"ereader/internal/platform/logger"
	"ereader/pkg/secrets"
)

func main() {
	addr := flag.String("addr", envOr("EREADER_MOCK_ADDR", ":8081"), "listen address")
	secret := flag.String("secret", os.Getenv("EREADER_MOCK_SECRET"), "token signing secret (random when empty)")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "issued token lifetime")
	level := flag.String("log-level", envOr("EREADER_LOG_LEVEL", "info"), "log level")
	flag.Parse()

	log := logger.New(*level)

	if *secret == "" {
		generated, err := secrets.Generate()
		if err != nil {
			log.Error("generate signing secret", "error", err)
			os.Exit(1)
		}
		*secret = generated
		log.Warn("no signing secret configured, tokens will not survive a restart")
	}

	backend, err := mockbackend.New(
		mockbackend.WithSecret(*secret),
		mockbackend.WithTokenTTL(*ttl),
		mockbackend.WithLogger(log),
	)
	if err != nil {
		log.Error("initialize mock backend", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting mock backend",
		"addr", *addr,
		"demo_email", mockbackend.DemoEmail,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down mock backend")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
