// Command server runs the medical history API.
//
// Configuration comes from the environment, optionally seeded from a .env
// file in the working directory. See internal/config for the variables.
//
// STARTUP SEQUENCE:
// main() only wires things together:
//  1. Load .env (if present) into the process environment
//  2. Parse and validate the configuration
//  3. Build the logger the configuration asks for
//  4. Build the server (backend, guard, services, routes) and run it
//
// Everything with behaviour lives under internal/, so tests can build the
// same server without going through main.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sakif/medhistory/internal/config"
	"github.com/sakif/medhistory/internal/server"
)

func main() {
	// === 1. ENVIRONMENT ===
	// godotenv.Load copies KEY=value lines from ./.env into os.Environ. It
	// never overrides a variable that is already set, so real environment
	// variables always win over the file. A missing .env is normal in
	// production.
	envErr := godotenv.Load()

	// === 2. CONFIGURATION ===
	// The default slog logger is still in place here, so a config error is
	// printed in plain text before any LOG_FORMAT applies.

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. LOGGING ===
	// SetDefault also routes the standard library's log package through
	// this handler.
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("could not read .env", slog.String("error", envErr.Error()))
	}

	// === 4. SERVER ===
	// Start blocks until SIGINT/SIGTERM and returns after a graceful
	// shutdown.
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
