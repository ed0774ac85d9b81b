package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	playbook "github.com/mwtmurphy/go-playbook"
	"github.com/mwtmurphy/go-playbook/cmd/playbook/internal/bootstrap"
)

var builder = bootstrap.Build

func main() {
	if err := runServe(os.Args[1:]); err != nil {
		log.Fatalf("playbook serve: %v", err)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("playbook-serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a TOML configuration file")
	corpusDir := fs.String("corpus", "", "Corpus directory (defaults to the embedded standards)")
	driver := fs.String("driver", "", "Storage driver when a DSN is set: sqlite or postgres")
	dsn := fs.String("dsn", "", "Database DSN; enables persistent storage")
	addr := fs.String("addr", "", "Listen address (defaults to the configured one)")
	mutations := fs.Bool("mutations", false, "Expose the sync and audit trigger endpoints")
	skipSync := fs.Bool("no-sync", false, "Serve the stored corpus without syncing first")
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
			if *addr != "" {
				cfg.Server.Addr = *addr
			}
			if *mutations {
				cfg.Server.Mutations = true
			}
		},
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
		// Per-document failures do not stop the server; the rest of the
		// corpus still serves.
		for _, syncErr := range result.Errors {
			res.Logger.Warn("document skipped", "error", syncErr)
		}
		res.Logger.Info("corpus ready", "created", result.Created, "updated", result.Updated)
	}

	handler, err := res.Module.HTTP()
	if err != nil {
		return fmt.Errorf("build handler: %w", err)
	}

	server := &http.Server{
		Addr:              res.Config.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		res.Logger.Info("listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
