package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/db"
	"github.com/hpungsan/souq/internal/logging"
	"github.com/hpungsan/souq/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"run": true, "classify": true, "aggregate": true,
	"runs": true, "show": true, "daily": true, "report": true,
	"export": true, "chart": true, "purge": true, "vocab": true,
	"serve": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  ___  _   _  ___
  / __|/ _ \| | | |/ _ \
  \__ \ (_) | |_| | (_) |
  |___/\___/ \__,_|\__\_\

  Demand and supply signals from market posts

  Usage: souq <command> [options]
         souq --help

  MCP server mode requires piped input.`)
}

// fatal prints err and exits with status 1.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// loadConfig resolves the home directory and the layered configuration:
// .env, global config, repo config, then environment overrides.
func loadConfig() (string, *config.Config, error) {
	if err := config.LoadEnv(".env"); err != nil {
		return "", nil, fmt.Errorf("load .env: %w", err)
	}
	baseDir, err := config.BaseDir()
	if err != nil {
		return "", nil, fmt.Errorf("could not determine home directory: %w", err)
	}
	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid config: %w", err)
	}
	return baseDir, cfg, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	baseDir, cfg, err := loadConfig()
	if err != nil {
		fatal("%v", err)
	}
	// MCP speaks JSON-RPC on stdout; logs always go to stderr.
	logging.Init(os.Stderr, cfg.LogLevel)

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI mode: known subcommand
	if isCLIMode(os.Args) {
		app := newCLIApp(database, cfg)
		if err := app.RunContext(ctx, os.Args); err != nil {
			stop()
			database.Close()
			fatal("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'souq --help' for usage.\n")
		os.Exit(1)
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		slog.Warn("ignoring unknown disabled tools", slog.Any("tools", unknown))
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, Version); err != nil {
		fatal("%v", err)
	}
}
