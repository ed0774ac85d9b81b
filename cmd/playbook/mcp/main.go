package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwtmurphy/go-playbook/cmd/playbook/internal/bootstrap"
	"github.com/mwtmurphy/go-playbook/internal/logging/console"
)

var builder = bootstrap.Build

func main() {
	if err := runMCP(os.Args[1:]); err != nil {
		log.Fatalf("playbook mcp: %v", err)
	}
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("playbook-mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a TOML configuration file")
	corpusDir := fs.String("corpus", "", "Corpus directory (defaults to the embedded standards)")
	driver := fs.String("driver", "", "Storage driver when a DSN is set: sqlite or postgres")
	dsn := fs.String("dsn", "", "Database DSN; enables persistent storage")
	skipSync := fs.Bool("no-sync", false, "Serve the stored corpus without syncing first")
	logLevel := fs.String("log-level", "", "Override the configured log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stdout carries the MCP protocol stream, so logs go to stderr.
	res, err := builder(ctx, bootstrap.Options{
		ConfigPath:     *configPath,
		CorpusDir:      *corpusDir,
		Driver:         *driver,
		DSN:            *dsn,
		LogLevel:       *logLevel,
		LoggerProvider: console.NewProvider(console.Options{Writer: os.Stderr}),
	})
	if err != nil {
		return err
	}
	defer res.Close()

	if !*skipSync {
		result, err := res.Module.Sync(ctx)
		if result == nil {
			return fmt.Errorf("sync corpus: %w", err)
		}
		for _, syncErr := range result.Errors {
			res.Logger.Warn("document skipped", "error", syncErr)
		}
	}

	return res.Module.MCP().Serve(ctx)
}
