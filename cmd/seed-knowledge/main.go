package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wolfman30/agenda-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/agenda-assistant/internal/config"
	"github.com/wolfman30/agenda-assistant/internal/knowledge"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// Loads a YAML or CSV knowledge file into the Redis-backed knowledge base the
// API server reads from.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/seed-knowledge <knowledge-file.yaml|csv>")
		fmt.Println("Example: go run ./cmd/seed-knowledge testdata/knowledge.yaml")
		os.Exit(1)
	}
	path := os.Args[1]

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if client == nil {
		logger.Error("REDIS_ADDR must point at a reachable redis")
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	n, err := knowledge.Seed(ctx, knowledge.NewRedisRepository(client), path)
	if err != nil {
		logger.Error("seed failed", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("knowledge base seeded", "path", path, "documents", n)
}
