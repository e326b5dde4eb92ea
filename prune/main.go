package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/animus-labs/animus-prune/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cmd := newRootCommand(os.Stdout)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			logger.Error("invalid config", "setting", cfgErr.Setting, "error", cfgErr.Err)
			os.Exit(2)
		}
		logger.Error("prune pass failed", "error", err)
		os.Exit(1)
	}
}
