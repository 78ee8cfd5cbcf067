package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chapterhouse/docbot/pkg/gemini"
	"github.com/chapterhouse/docbot/pkg/logger"
	"github.com/chapterhouse/docbot/server"
)

func main() {
	// Parse command line flags
	listenAddr := flag.String("listen", "", "Address to listen on (overrides PORT)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// A .env file is a convenience; real deployments set the environment
	_ = godotenv.Load()

	// Set up logger
	logger := logger.NewLogger(*debug)
	defer logger.Sync()

	cfg, err := server.FromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logger.Info("docbot starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("cache", cfg.CacheName),
		zap.String("project", cfg.ProjectID),
		zap.String("location", cfg.Location),
	)

	ctx := context.Background()
	client, err := gemini.NewClient(ctx, gemini.Config{
		ProjectID:          cfg.ProjectID,
		Location:           cfg.Location,
		ModelName:          cfg.ModelName,
		Bucket:             cfg.Bucket,
		Blob:               cfg.Blob,
		CacheName:          cfg.CacheName,
		CacheTTL:           cfg.CacheTTL,
		SystemInstructions: cfg.SystemInstructions,
		PromptInstructions: cfg.PromptInstructions,
		Polish:             cfg.Polish,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create model client", zap.Error(err))
	}
	defer client.Close()

	// The cache reference is resolved once and held for the process lifetime
	if err := client.ResolveCache(ctx); err != nil {
		logger.Fatal("failed to resolve context cache", zap.Error(err))
	}

	s := server.New(cfg, client, logger)
	if err := s.Run(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
