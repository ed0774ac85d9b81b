package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	playbook "github.com/mwtmurphy/go-playbook"
	"github.com/mwtmurphy/go-playbook/cmd/playbook/internal/bootstrap"
	"github.com/mwtmurphy/go-playbook/internal/exporter"
)

var builder = bootstrap.Build

func main() {
	if err := runExport(os.Args[1:]); err != nil {
		log.Fatalf("playbook export: %v", err)
	}
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("playbook-export", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a TOML configuration file")
	corpusDir := fs.String("corpus", "", "Corpus directory (defaults to the embedded standards)")
	driver := fs.String("driver", "", "Storage driver when a DSN is set: sqlite or postgres")
	dsn := fs.String("dsn", "", "Database DSN; enables persistent storage")
	outputDir := fs.String("out", "", "Output directory for the generated site")
	baseURL := fs.String("base-url", "", "Absolute base URL recorded in the sitemap and feeds")
	theme := fs.String("theme", "", "Theme directory overriding the embedded one")
	slugs := fs.String("slugs", "", "Comma separated slugs to rebuild (defaults to the whole site)")
	force := fs.Bool("force", false, "Rebuild pages and assets regardless of the manifest")
	dryRun := fs.Bool("dry-run", false, "Render without writing files")
	skipSync := fs.Bool("no-sync", false, "Export the stored corpus without syncing first")
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
		Mutate: func(cfg *playbook.Config) {
			cfg.Export.Enabled = true
			if *outputDir != "" {
				cfg.Export.OutputDir = *outputDir
			}
			if *baseURL != "" {
				cfg.Export.BaseURL = *baseURL
			}
			if *theme != "" {
				cfg.Export.Theme.Dir = *theme
			}
		},
	})
	if err != nil {
		return err
	}
	defer res.Close()

	if !*skipSync {
		if _, err := res.Module.Sync(ctx); err != nil {
			return fmt.Errorf("sync corpus: %w", err)
		}
	}

	result, err := res.Module.Exporter().Export(ctx, exporter.ExportOptions{
		Slugs:  bootstrap.SplitList(*slugs),
		Force:  *force,
		DryRun: *dryRun,
	})
	if err != nil {
		return fmt.Errorf("export site: %w", err)
	}

	fmt.Printf("exported in %s: %d pages built, %d skipped, %d assets built, %d pruned\n",
		result.Duration.Round(time.Millisecond), result.PagesBuilt, result.PagesSkipped, result.AssetsBuilt, result.Pruned)
	for _, diag := range result.Diagnostics {
		if diag.Err != nil {
			fmt.Fprintf(os.Stderr, "page %s: %v\n", diag.Slug, diag.Err)
		}
	}
	if len(result.Errors) > 0 {
		for _, exportErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "error: %v\n", exportErr)
		}
		return fmt.Errorf("%d pages failed to export", len(result.Errors))
	}
	return nil
}
