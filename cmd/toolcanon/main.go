package main

import (
	"context"
	"os"

	"github.com/triage-ai/toolcanon/internal/logging"
)

func main() {
	logger := logging.MustNew(envOrDefault("TOOLCANON_LOG_LEVEL", "warn"), "stderr")
	defer logger.Sync() //nolint:errcheck // best-effort flush

	if err := newRootCmd(logger).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
