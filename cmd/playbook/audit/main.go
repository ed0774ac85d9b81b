package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mwtmurphy/go-playbook/cmd/playbook/internal/bootstrap"
	"github.com/mwtmurphy/go-playbook/internal/audit"
)

var builder = bootstrap.Build

var errThresholdExceeded = errors.New("issues at or above the failure threshold")

func main() {
	if err := runAudit(os.Args[1:]); err != nil {
		log.Fatalf("playbook audit: %v", err)
	}
}

func runAudit(args []string) error {
	fs := flag.NewFlagSet("playbook-audit", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a TOML configuration file")
	corpusDir := fs.String("corpus", "", "Corpus directory (defaults to the embedded standards)")
	driver := fs.String("driver", "", "Storage driver when a DSN is set: sqlite or postgres")
	dsn := fs.String("dsn", "", "Database DSN; enables persistent storage")
	failOn := fs.String("fail-on", "", "Exit non-zero when issues reach this severity: info, warning, or error")
	disable := fs.String("disable", "", "Comma separated rule codes to skip for this run")
	skipSync := fs.Bool("no-sync", false, "Audit the stored corpus without syncing first")
	asJSON := fs.Bool("json", false, "Emit the report as JSON")
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

	if !*skipSync {
		if _, err := res.Module.Sync(ctx); err != nil {
			return fmt.Errorf("sync corpus: %w", err)
		}
	}

	report, err := res.Module.Audits().Run(ctx, audit.RunOptions{
		Disabled: bootstrap.SplitList(*disable),
	})
	if err != nil {
		return fmt.Errorf("run audit: %w", err)
	}

	if *asJSON {
		if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		printReport(report)
	}

	threshold := resolveThreshold(*failOn, res.Config.Audit.FailThreshold)
	if report.HasSeverityAtLeast(threshold) {
		return fmt.Errorf("%w (%s)", errThresholdExceeded, threshold)
	}
	return nil
}

func printReport(report *audit.Report) {
	fmt.Printf("audited %d documents: %d errors, %d warnings, %d infos\n",
		report.Run.Documents, report.Run.Errors, report.Run.Warnings, report.Run.Infos)
	for _, issue := range report.Issues {
		location := issue.Slug
		if location == "" {
			location = issue.Path
		}
		if issue.Line > 0 {
			location = fmt.Sprintf("%s:%d", location, issue.Line)
		}
		fmt.Printf("%-7s %s %s %s\n", issue.Severity, issue.Code, location, issue.Message)
	}
}

func resolveThreshold(flagValue, configured string) audit.Severity {
	value := strings.ToLower(strings.TrimSpace(flagValue))
	if value == "" {
		value = strings.ToLower(strings.TrimSpace(configured))
	}
	switch audit.Severity(value) {
	case audit.SeverityInfo, audit.SeverityWarning, audit.SeverityError:
		return audit.Severity(value)
	default:
		return audit.SeverityError
	}
}
