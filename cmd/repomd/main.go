package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iplanwebsites/repomd/internal/builder"
	"github.com/iplanwebsites/repomd/internal/config"
	"github.com/iplanwebsites/repomd/internal/database"
	"github.com/iplanwebsites/repomd/internal/embedding"
	"github.com/iplanwebsites/repomd/internal/embedding/local"
	"github.com/iplanwebsites/repomd/internal/media"
	"github.com/iplanwebsites/repomd/internal/plugin"
	"github.com/iplanwebsites/repomd/internal/similarity"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("repomd\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", database.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", database.DriverName)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)

	// Optional .env for local development; env vars override the config file
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file (default: repomd.yml if present)")
	vaultFlag := flag.String("vault", "", "vault root (overrides config)")
	outputFlag := flag.String("output", "", "output root (overrides config)")
	strictFlag := flag.Bool("strict", false, "fail the build if any issue is recorded")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *vaultFlag != "" {
		cfg.Vault = *vaultFlag
	}
	if *outputFlag != "" {
		cfg.Output = *outputFlag
	}
	if *strictFlag {
		cfg.Strict = true
	}

	manager := plugin.NewManager()
	if err := registerPlugins(manager, cfg); err != nil {
		log.Fatalf("Failed to register plugins: %v", err)
	}

	b := builder.New(builder.Config{
		VaultRoot:  cfg.Vault,
		OutputRoot: cfg.Output,
		Workers:    cfg.Workers,
		Strict:     cfg.Strict,
		Media: media.Config{
			Variants: cfg.Media.Variants,
			Format:   cfg.Media.Format,
			Quality:  cfg.Media.Quality,
		},
		Embedding: embedding.Config{
			BatchSize: cfg.Embedding.BatchSize,
			CacheSize: cfg.Embedding.CacheSize,
		},
	}, manager)

	// Cancel the run on SIGINT/SIGTERM; a cancelled run keeps the previous
	// output intact.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("repomd v%s building %s -> %s", version, cfg.Vault, cfg.Output)
	result, err := b.Run(ctx)
	if err != nil {
		for _, issue := range result.Issues {
			log.Printf("[%s] %s: %s", issue.Severity, issue.Stage, issue.Message)
		}
		log.Fatalf("Build failed: %v", err)
	}

	for _, issue := range result.Issues {
		log.Printf("[%s] %s: %s", issue.Severity, issue.Stage, issue.Message)
	}
	stats := result.Manifest.Stats
	log.Printf("Build %s done in %s: %d documents, %d media, %d variants, %d embeddings, %d pairs, %d issue(s)",
		result.Manifest.RunID, stats.Duration.Round(time.Millisecond), stats.Documents, stats.Media,
		stats.Variants, stats.Embeddings, stats.Pairs, stats.Issues)
}

// registerPlugins wires the capability set selected by the config.
func registerPlugins(manager *plugin.Manager, cfg config.Config) error {
	if cfg.Embedding.Provider == "local" {
		if err := manager.Register(local.New()); err != nil {
			return err
		}
	}
	if cfg.Similarity.Enabled {
		sim := similarity.NewPlugin(similarity.Config{
			Workers:      cfg.Workers,
			MaxNeighbors: cfg.Similarity.MaxNeighbors,
		})
		if err := manager.Register(sim); err != nil {
			return err
		}
	}
	if cfg.Database {
		if err := manager.Register(database.NewPlugin()); err != nil {
			return err
		}
	}
	return nil
}
