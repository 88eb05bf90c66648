package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/tastier/internal/cli"
	"github.com/mrlokans/tastier/internal/config"
	"github.com/mrlokans/tastier/internal/entrypoint"
	"github.com/mrlokans/tastier/internal/logger"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// subcommand is implemented by every CLI sub-command.
type subcommand interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	var cmd subcommand
	switch command {
	case "remote-migrate":
		cmd = cli.NewRemoteMigrateCommand()
	case "remote-seed":
		cmd = cli.NewRemoteSeedCommand()
	case "cache-list":
		cmd = cli.NewCacheListCommand()
	case "version":
		fmt.Printf("tastier %s (%s)\n", Version, Commit)
		return
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	cfg := config.NewConfig()
	if _, err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve            Start the favorites sync service (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  remote-migrate   Create or update the remote store schema\n")
	fmt.Fprintf(os.Stderr, "  remote-seed      Load users, recipes and favorites from a JSON file\n")
	fmt.Fprintf(os.Stderr, "  cache-list       List favorites cached on this device\n")
	fmt.Fprintf(os.Stderr, "  version          Print version information\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
