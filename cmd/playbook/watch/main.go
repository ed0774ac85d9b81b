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

	playbook "github.com/mwtmurphy/go-playbook"
	"github.com/mwtmurphy/go-playbook/cmd/playbook/internal/bootstrap"
)

var builder = bootstrap.Build

func main() {
	if err := runWatch(os.Args[1:]); err != nil {
		log.Fatalf("playbook watch: %v", err)
	}
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("playbook-watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a TOML configuration file")
	corpusDir := fs.String("corpus", "", "Corpus directory to watch")
	driver := fs.String("driver", "", "Storage driver when a DSN is set: sqlite or postgres")
	dsn := fs.String("dsn", "", "Database DSN; enables persistent storage")
	debounce := fs.Duration("debounce", 0, "Settle window applied to bursts of file events")
	noAudit := fs.Bool("no-audit", false, "Skip the audit run after each sync")
	logLevel := fs.String("log-level", "", "Override the configured log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := builder(ctx, bootstrap.Options{
		ConfigPath: *configPath,
		CorpusDir:  *corpusDir,
		Driver:     *driver,
		DSN:        *dsn,
		LogLevel:   *logLevel,
		Mutate: func(cfg *playbook.Config) {
			cfg.Watch.Enabled = true
			if *debounce > 0 {
				cfg.Watch.Debounce = *debounce
			}
			if *noAudit {
				cfg.Watch.AuditAfterSync = false
			}
		},
	})
	if err != nil {
		return err
	}
	defer res.Close()

	result, err := res.Module.Sync(ctx)
	if result == nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	// Files that fail to import stay out of the store; the watcher picks
	// them up again on their next change.
	for _, syncErr := range result.Errors {
		res.Logger.Warn("document skipped", "error", syncErr)
	}
	res.Logger.Info("corpus ready",
		"created", result.Created,
		"updated", result.Updated,
		"path", res.Config.Corpus.Path,
	)

	started := time.Now()
	if err := res.Module.Watch(ctx); err != nil {
		return err
	}
	res.Logger.Info("watch stopped", "uptime", time.Since(started).Round(time.Second).String())
	return nil
}
