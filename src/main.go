package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"papertrader/src/cli"
)

func main() {
	initializeLogging()

	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("papertrader failed", "error", err)
		os.Exit(1)
	}
}

func initializeLogging() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}
	switch strings.ToLower(logLevel) {
	case "debug":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})))
	case "warn":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: slog.LevelWarn})))
	default:
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: slog.LevelInfo})))
	}
}
