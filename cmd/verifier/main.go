package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attestly/ledger/cmd/verifier/verifier"
	"github.com/attestly/ledger/common/bootstrap"
	"github.com/attestly/ledger/common/clients"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap service components (no database; the verifier trusts only
	// the public query surface)
	components, err := bootstrap.Setup(ctx, "verifier",
		bootstrap.WithoutDB(),
		bootstrap.WithoutCache(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	components.Logger.Info("verifier starting")

	ledgerURL := getEnv("LEDGER_URL", "http://localhost:8080")

	// Typed client for the ledger's public query surface
	httpClient := clients.NewHTTPClient(&http.Client{Timeout: 15 * time.Second}, components.Logger)
	ledgerClient := clients.NewLedgerClient(httpClient, ledgerURL, components.Logger)

	// Create the record verifier
	v := verifier.New(components.Queue, ledgerClient, components.Config.Queue.RecordStream, components.Logger)

	// Start verifier
	if err := v.Start(ctx); err != nil {
		components.Logger.Error("failed to start verifier", "error", err)
		os.Exit(1)
	}

	components.Logger.Info("verifier started successfully")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	components.Logger.Info("shutdown signal received", "signal", sig.String())
	cancel()

	components.Logger.Info("verifier stopped")
}

// getEnv gets an environment variable or returns a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
