// Myhealthd is a personal health tracking server with an AI assistant.
//
// It exposes an HTTP API for nutrition logging, workout tracking, Whoop
// recovery data, and a conversational agent that can query and modify all
// of it through tool calls against AWS Bedrock. Configuration is loaded
// from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	myhealthd serve              Start the API server
//	myhealthd ask <question>     Ask the assistant a single question (for testing)
//	myhealthd version            Print version and build information
//	myhealthd -o json version    Output version information as JSON
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/myhealth-io/myhealthd/internal/agent"
	"github.com/myhealth-io/myhealthd/internal/api"
	"github.com/myhealth-io/myhealthd/internal/buildinfo"
	"github.com/myhealth-io/myhealthd/internal/config"
	"github.com/myhealth-io/myhealthd/internal/llm"
	"github.com/myhealth-io/myhealthd/internal/nutrition"
	"github.com/myhealth-io/myhealthd/internal/store"
	"github.com/myhealth-io/myhealthd/internal/tools"
	"github.com/myhealth-io/myhealthd/internal/usda"
	"github.com/myhealth-io/myhealthd/internal/whoop"
	"github.com/myhealth-io/myhealthd/internal/workout"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
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

// run is the real entry point for the myhealthd command. All OS-level
// dependencies are injected as parameters so tests can drive the whole
// lifecycle. Arguments are parsed by hand: the flag package relies on
// package-level globals (flag.CommandLine), which makes it impossible to
// call run() concurrently from tests, and the argument surface here is
// small enough that manual parsing is clearer than a CLI framework.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
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
			return fmt.Errorf("usage: myhealthd ask <question>")
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
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// myhealthd is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "myhealthd - Personal Health Tracking Server")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: myhealthd [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  ask          Ask the assistant a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/myhealthd/config.yaml, /etc/myhealthd/config.yaml")
	return nil
}

// runAsk handles the "myhealthd ask <question>" subcommand. It boots the
// full agent against the configured database and processes a single
// question, printing the response to stdout. Useful for smoke tests and
// debugging without starting the server.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn, "text")

	question := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Agent.SendMessage(ctx, "cli", question, "")
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	for _, action := range result.ToolActions {
		fmt.Fprintf(stdout, "[%s]\n", action.Label)
	}
	fmt.Fprintln(stdout, result.Message.Content)
	return nil
}

// runServe handles the "myhealthd serve" subcommand. It is the primary
// operating mode: loads config, opens the database, wires the services
// and the agent, starts the API server, and blocks until a shutdown
// signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting myhealthd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known. The
	// initial Info-level logger covers only the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level, "text")
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Bedrock.ModelID,
		"environment", cfg.Environment,
	)

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, app.Agent, logger)

	// SIGINT/SIGTERM cancellation flows through the same ctx used by all
	// components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("myhealthd stopped")
	return nil
}

// app bundles the wired application components behind a single Close.
type app struct {
	Agent *agent.Service
	db    *sql.DB
}

func (a *app) Close() error {
	return a.db.Close()
}

// buildApp opens the shared SQLite database and wires the domain
// services, the tool registry, the Bedrock gateway, and the agent.
// All services share one database; each owns its own tables and runs
// its own migrations on startup.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
		}
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	logger.Info("database opened", "path", dbPath)

	st, err := store.NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("conversation store: %w", err)
	}

	nutritionSvc, err := nutrition.NewWithDB(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("nutrition service: %w", err)
	}

	workoutSvc, err := workout.NewWithDB(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("workout service: %w", err)
	}

	whoopSvc, err := whoop.NewWithDB(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("whoop service: %w", err)
	}

	gateway, err := llm.NewBedrockGateway(ctx, cfg.Bedrock, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bedrock gateway: %w", err)
	}

	registry := tools.NewRegistry(tools.Deps{
		Nutrition: nutritionSvc,
		Workout:   workoutSvc,
		Whoop:     whoopSvc,
		USDA:      usda.New(cfg.USDA, logger),
	}, logger)

	// Debug traces in chat responses are gated to non-production.
	agentSvc := agent.New(st, gateway, registry, !cfg.IsProduction(), logger)

	return &app{Agent: agentSvc, db: db}, nil
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations. Returns the parsed
// config, the path that was loaded, and any error.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
