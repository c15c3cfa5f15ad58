package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/dtbar/internal/backend"
	"github.com/hpungsan/dtbar/internal/config"
	"github.com/hpungsan/dtbar/internal/db"
	"github.com/hpungsan/dtbar/internal/logging"
	"github.com/hpungsan/dtbar/internal/mcp"
	"github.com/hpungsan/dtbar/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"search": true, "group": true, "pick": true, "open": true,
	"action": true, "cache": true,
	"help": true,
}

// runMode is what an invocation should do.
type runMode int

const (
	modeBanner  runMode = iota // interactive, no args
	modeHelp                   // help/version, no database needed
	modeCLI                    // known subcommand
	modeUnknown                // unknown argument typed at a terminal
	modeMCP                    // stdio MCP server
)

// detectMode picks the run mode from the arguments after the program name
// and whether stdin is a terminal.
func detectMode(args []string, terminal bool) runMode {
	if len(args) == 0 {
		if terminal {
			return modeBanner
		}
		return modeMCP
	}
	switch arg := args[0]; {
	case arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help":
		return modeHelp
	case cliCommands[arg]:
		return modeCLI
	case terminal:
		return modeUnknown
	default:
		return modeMCP
	}
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       _ _   _
    __| | |_| |__   __ _ _ __
   / _' | __| '_ \ / _' | '__|
  | (_| | |_| |_) | (_| | |
   \__,_|\__|_.__/ \__,_|_|

  DEVONthink search for LaunchBar

  Usage: dtbar <command> [options]
         dtbar --help

  MCP server mode requires piped input.`)
}

func main() {
	mode := detectMode(os.Args[1:], isTerminal())

	switch mode {
	case modeBanner:
		printBanner()
		return
	case modeHelp:
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	case modeUnknown:
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'dtbar --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".dtbar")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries LaunchBar JSON in CLI mode, so logs go to a file there.
	var logOut io.Writer = os.Stderr
	if mode == modeCLI {
		f, err := logging.OpenFile(baseDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.New(logOut, cfg.LogLevel).With(slog.String("version", Version))
	slog.SetDefault(logger)

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	client := backend.NewJXAClient(cfg.ScriptDir, backend.WithExcludedTag(cfg.Tag()))
	svc, err := ops.NewService(database, cfg, client, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if mode == modeCLI {
		app := newCLIApp(svc, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown disabled tools", slog.Any("tools", unknown))
	}

	if err := mcp.Run(svc, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
