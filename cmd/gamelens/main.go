package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ryanm101/gamelens/internal/assets"
	"github.com/ryanm101/gamelens/internal/config"
	"github.com/ryanm101/gamelens/internal/db"
	"github.com/ryanm101/gamelens/internal/logging"
	"github.com/ryanm101/gamelens/internal/metadata"
	"github.com/ryanm101/gamelens/internal/tracing"
	"go.opentelemetry.io/otel/baggage"
)

const appVersion = "1.0.0"

var cfg *config.Config

func main() {
	ctx := context.Background()

	m, _ := baggage.NewMember("app.version", appVersion)
	b, _ := baggage.New(m)
	ctx = baggage.ContextWithBaggage(ctx, b)

	var err error
	cfg, err = config.Load()
	if err != nil {
		PrintError("Warning: failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logging.Setup(logCfg)

	shutdown, err := tracing.Setup(ctx, tracing.DefaultConfig())
	if err != nil {
		logging.Error("failed to setup tracing", "error", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logging.Error("failed to shutdown tracing", "error", err)
		}
	}()

	args := parseGlobalFlags(os.Args[1:])

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "search":
		handleSearchCommand(ctx, args[1:])
	case "get":
		handleGetCommand(ctx, args[1:])
	case "serve":
		handleServeCommand(ctx, args[1:])
	case "stats":
		handleStatsCommand(ctx)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("gamelens - cached game metadata from RAWG")
	fmt.Println()
	fmt.Println("Usage: gamelens [global options] <command> [options]")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --json                              Output in JSON format")
	fmt.Println("  --quiet, -q                         Suppress non-error output")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  search <query> [--page N] [--page-size N]")
	fmt.Println("                                      Search games (cache first)")
	fmt.Println("  get <id>                            Show one game by RAWG id")
	fmt.Println("  serve                               Run the JSON API and metrics server")
	fmt.Println("  stats                               Show cached row counts")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  GAMELENS_RAWG_API_KEY               RAWG API key (required)")
	fmt.Println("  GAMELENS_DB                         Database path (default: gamelens.db)")
	fmt.Println("  GAMELENS_CONFIG                     Config file path")
}

func openDB(ctx context.Context) (*db.DB, error) {
	if cfg.DBDriver != "" {
		return db.OpenWithDriver(ctx, cfg.DBDriver, cfg.GetDBPath())
	}
	return db.Open(ctx, cfg.GetDBPath())
}

// app holds the collaborators commands that resolve games need.
type app struct {
	db      *db.DB
	store   *assets.Store
	service *metadata.Service
}

// openApp validates configuration and wires the metadata service. A missing
// API key stops the process before anything is opened.
func openApp(ctx context.Context) *app {
	if err := cfg.Validate(); err != nil {
		PrintError("Error: %v\n", err)
		PrintError("Set GAMELENS_RAWG_API_KEY or rawg.api_key in the config file.\n")
		os.Exit(1)
	}

	database, err := openDB(ctx)
	if err != nil {
		PrintError("Error: failed to open database: %v\n", err)
		os.Exit(1)
	}

	store, err := assets.OpenDir(cfg.GetAssetsDir())
	if err != nil {
		_ = database.Close()
		PrintError("Error: failed to open asset directory: %v\n", err)
		os.Exit(1)
	}

	client := metadata.NewHTTPClient()
	provider, err := metadata.NewRAWGProvider(client, cfg.GetRAWGBaseURL(), cfg.RAWG.APIKey, cfg.GetRAWGTimeout())
	if err != nil {
		_ = store.Close()
		_ = database.Close()
		PrintError("Error: failed to init RAWG provider: %v\n", err)
		os.Exit(1)
	}

	fetcher := metadata.NewAssetFetcher(client, store, cfg.GetAssetURLPrefix(), cfg.GetRAWGTimeout(),
		logging.Component("assets"))

	service, err := metadata.NewService(database, provider, fetcher, logging.Component("metadata"))
	if err != nil {
		_ = store.Close()
		_ = database.Close()
		PrintError("Error: %v\n", err)
		os.Exit(1)
	}

	return &app{db: database, store: store, service: service}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logging.Warn("failed to close asset store", "error", err)
	}
	if err := a.db.Close(); err != nil {
		logging.Warn("failed to close database", "error", err)
	}
}
