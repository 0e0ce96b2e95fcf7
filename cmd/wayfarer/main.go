// Wayfarer is a conversational local guide.
//
// It answers questions about nearby places, current weather, and city
// events by driving a reasoning model through a set of data provider
// tools. Sessions are served over WebSocket; a CLI one-shot mode exists
// for testing. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	wayfarer serve            Start the session gateway
//	wayfarer ask <question>   Ask a single question (for testing)
//	wayfarer version          Print version and build information
//	wayfarer -o json version  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/agent"
	"github.com/wayfarer-ai/wayfarer/internal/buildinfo"
	"github.com/wayfarer-ai/wayfarer/internal/config"
	"github.com/wayfarer-ai/wayfarer/internal/conversation"
	"github.com/wayfarer-ai/wayfarer/internal/events"
	"github.com/wayfarer-ai/wayfarer/internal/gateway"
	"github.com/wayfarer-ai/wayfarer/internal/llm"
	"github.com/wayfarer-ai/wayfarer/internal/places"
	"github.com/wayfarer-ai/wayfarer/internal/search"
	"github.com/wayfarer-ai/wayfarer/internal/summarize"
	"github.com/wayfarer-ai/wayfarer/internal/tools"
	"github.com/wayfarer-ai/wayfarer/internal/weather"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the wayfarer command. All OS-level
// dependencies are injected as parameters so the lifecycle can be
// driven from tests. Arguments are parsed by hand: the flag package
// relies on package-level globals, and our argument surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: wayfarer ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Wayfarer - Conversational Local Guide")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: wayfarer [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the session gateway")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/wayfarer/config.yaml, /etc/wayfarer/config.yaml")
	return nil
}

// loadConfig finds, loads, and validates the configuration.
func loadConfig(explicit string) (*config.Config, string, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, path, nil
}

// buildRegistry wires every data provider tool. Providers with missing
// credentials stay registered; their calls fail with readable errors at
// runtime so the model can explain what it could not look up.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *tools.Registry {
	registry := tools.NewRegistry()

	summarizer := summarize.NewExtractive()
	placesClient := places.New(cfg.Places.APIKey, cfg.Places.BaseURL, summarizer, logger)
	registry.Register(&tools.Tool{
		Name:        "nearby_place_search",
		Description: "Find nearby places (restaurants, bars, sights) around a coordinate, with ratings, walking distances, and review summaries.",
		Parameters:  places.ToolDefinition(),
		Handler:     places.ToolHandler(placesClient),
	})

	weatherClient := weather.New("")
	registry.Register(&tools.Tool{
		Name:        "get_weather",
		Description: "Get current weather conditions (temperature, wind, conditions) at a coordinate.",
		Parameters:  weather.ToolDefinition(),
		Handler:     weather.ToolHandler(weatherClient),
	})

	eventService := events.NewService(
		events.NewHTTPScraper(cfg.Events.BaseURL),
		cfg.Events.CacheTTL(),
		logger,
	)
	registry.Register(&tools.Tool{
		Name:        "get_detailed_events",
		Description: "Get today's events in a city for one category, with times, locations, and descriptions.",
		Parameters:  events.DetailedToolDefinition(),
		Handler:     events.DetailedToolHandler(eventService),
	})
	registry.Register(&tools.Tool{
		Name:        "get_available_event_categories",
		Description: "List which event categories have listings today in a city, with counts. Call this before get_detailed_events.",
		Parameters:  events.CategoriesToolDefinition(),
		Handler:     events.CategoriesToolHandler(eventService),
	})

	searchManager := search.NewManager("tavily")
	searchManager.Register(search.NewTavily(cfg.Search.APIKey, cfg.Search.BaseURL))
	registry.Register(&tools.Tool{
		Name:        "web_search",
		Description: "Search the web for current information not covered by the other tools.",
		Parameters:  search.ToolDefinition(),
		Handler:     search.ToolHandler(searchManager),
	})

	return registry
}

// openStore creates the configured conversation store. The returned
// cleanup func releases the store's resources.
func openStore(cfg *config.Config, logger *slog.Logger) (conversation.Store, func(), error) {
	switch cfg.Conversations.Backend {
	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
		}
		store, err := conversation.NewSQLiteStore(filepath.Join(cfg.DataDir, "conversations.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("open conversation store: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		store := conversation.NewMemoryStore(conversation.MemoryOptions{
			IdleTTL:    cfg.Conversations.IdleTTL(),
			MaxThreads: cfg.Conversations.MaxThreads,
		})
		if cfg.Conversations.IdleTTL() > 0 {
			store.StartJanitor(time.Minute)
		}
		logger.Debug("using in-memory conversation store",
			"idle_ttl", cfg.Conversations.IdleTTL(),
			"max_threads", cfg.Conversations.MaxThreads,
		)
		return store, func() { store.Close() }, nil
	}
}

// runAsk handles the "wayfarer ask <question>" subcommand. It boots a
// minimal agent with an in-memory conversation store, processes a
// single question, and prints the reply.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := config.NewLogger(stdout, slog.LevelWarn, "text")

	question := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.Model.APIKey,
		BaseURL:     cfg.Model.BaseURL,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
	}, logger)
	if err != nil {
		return err
	}

	registry := buildRegistry(cfg, logger)
	store := conversation.NewMemoryStore(conversation.MemoryOptions{})
	defer store.Close()

	loop := agent.NewLoop(logger, store, registry, client, cfg.Agent.MaxRounds)

	reply, err := loop.Process(ctx, "cli", question, nil)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, reply)
	return nil
}

// runServe handles the "wayfarer serve" subcommand. It loads config,
// wires the tool registry and agent loop, starts the session gateway,
// and blocks until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := config.NewLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Wayfarer",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level and format are
	// known. The initial Info-level text logger covers only the banner.
	if cfg.LogLevel != "" || cfg.LogFormat != "" {
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			level, _ = config.ParseLogLevel(cfg.LogLevel)
		}
		logger = config.NewLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Model.Name,
	)

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.Model.APIKey,
		BaseURL:     cfg.Model.BaseURL,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
	}, logger)
	if err != nil {
		return err
	}

	registry := buildRegistry(cfg, logger)
	if err := registry.Validate(
		"nearby_place_search",
		"get_weather",
		"get_detailed_events",
		"get_available_event_categories",
		"web_search",
	); err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}
	logger.Info("tools registered", "tools", registry.Names())

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	loop := agent.NewLoop(logger, store, registry, client, cfg.Agent.MaxRounds)
	server := gateway.NewServer(cfg.Listen.Address, cfg.Listen.Port, loop, registry, store, logger)

	// SIGINT/SIGTERM cancellation flows through the same ctx used by
	// all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("gateway failed: %w", err)
		}
	}

	logger.Info("Wayfarer stopped")
	return nil
}
