package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mwtmurphy/go-playbook/cmd/playbook/internal/bootstrap"
	"github.com/mwtmurphy/go-playbook/internal/util"
	"github.com/mwtmurphy/go-playbook/standards"
)

var builder = bootstrap.Build

func main() {
	if err := runSync(os.Args[1:]); err != nil {
		log.Fatalf("playbook sync: %v", err)
	}
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("playbook-sync", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a TOML configuration file")
	corpusDir := fs.String("corpus", "", "Corpus directory (defaults to the embedded standards)")
	driver := fs.String("driver", "", "Storage driver when a DSN is set: sqlite or postgres")
	dsn := fs.String("dsn", "", "Database DSN; enables persistent storage")
	status := fs.String("status", "", "Status applied to documents without one (draft, published, archived)")
	dryRun := fs.Bool("dry-run", false, "Report changes without writing them")
	keepOrphans := fs.Bool("keep-orphans", false, "Keep stored standards whose source files disappeared")
	logLevel := fs.String("log-level", "", "Override the configured log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	res, err := builder(ctx, bootstrap.Options{
		ConfigPath: *configPath,
		CorpusDir:  *corpusDir,
		Driver:     *driver,
		DSN:        *dsn,
		LogLevel:   *logLevel,
	})
	if err != nil {
		return err
	}
	defer res.Close()

	syncStatus := util.FirstNonEmpty(*status, res.Config.Corpus.DefaultStatus)

	result, err := res.Module.Standards().Sync(ctx, standards.SyncOptions{
		ImportOptions:  standards.ImportOptions{Status: syncStatus, DryRun: *dryRun},
		UpdateExisting: true,
		DeleteOrphaned: !*keepOrphans,
	})
	if result == nil {
		return fmt.Errorf("sync corpus: %w", err)
	}

	fmt.Printf("synced: %d created, %d updated, %d deleted, %d skipped\n",
		result.Created, result.Updated, result.Deleted, result.Skipped)
	for _, warning := range result.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	for _, syncErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "error: %v\n", syncErr)
	}
	if err != nil {
		return fmt.Errorf("%d documents failed to sync", len(result.Errors))
	}
	return nil
}
