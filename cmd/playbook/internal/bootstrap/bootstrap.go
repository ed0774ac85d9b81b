package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	playbook "github.com/mwtmurphy/go-playbook"
	"github.com/mwtmurphy/go-playbook/internal/di"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// Options captures the flags shared across the playbook CLI tools. Values
// layer over the config file, which layers over the defaults.
type Options struct {
	ConfigPath string
	CorpusDir  string
	Driver     string
	DSN        string
	LogLevel   string
	// Mutate is the subcommand's last chance to adjust the resolved config
	// before the module is built.
	Mutate         func(*playbook.Config)
	LoggerProvider interfaces.LoggerProvider
}

// Resources wraps the module runtime handed to CLI commands. Close releases
// the database connection when one was opened.
type Resources struct {
	Module *playbook.Module
	Config playbook.Config
	Logger interfaces.Logger
	db     *sql.DB
}

// Close releases the resources held by the CLI runtime.
func (r *Resources) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Build loads configuration, applies CLI overrides, and constructs the
// module with storage wired per the resolved config.
func Build(ctx context.Context, opts Options) (*Resources, error) {
	cfg := playbook.DefaultConfig()

	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if dir := strings.TrimSpace(opts.CorpusDir); dir != "" {
		cfg.Corpus.Path = dir
	}
	if dsn := strings.TrimSpace(opts.DSN); dsn != "" {
		cfg.Storage.Provider = "bun"
		cfg.Storage.DSN = dsn
	}
	if driver := strings.TrimSpace(opts.Driver); driver != "" {
		cfg.Storage.Driver = driver
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if opts.Mutate != nil {
		opts.Mutate(&cfg)
	}

	var diOpts []di.Option
	if opts.LoggerProvider != nil {
		diOpts = append(diOpts, di.WithLoggerProvider(opts.LoggerProvider))
	}

	var sqlDB *sql.DB
	if strings.EqualFold(strings.TrimSpace(cfg.Storage.Provider), "bun") {
		db, bunDB, err := openDatabase(cfg.Storage)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.RunMigrations {
			if err := playbook.RunMigrations(ctx, bunDB); err != nil {
				db.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		sqlDB = db
		diOpts = append(diOpts, di.WithBunDB(bunDB))
	}

	module, err := playbook.New(cfg, diOpts...)
	if err != nil {
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, err
	}

	return &Resources{
		Module: module,
		Config: cfg,
		Logger: logging.ModuleLogger(module.Container().LoggerProvider(), "cli"),
		db:     sqlDB,
	}, nil
}

func openDatabase(cfg playbook.StorageConfig) (*sql.DB, *bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		db, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite database: %w", err)
		}
		db.SetMaxOpenConns(1)
		return db, bun.NewDB(db, sqlitedialect.New()), nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres database: %w", err)
		}
		return db, bun.NewDB(db, pgdialect.New()), nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// SplitList turns a comma separated flag value into trimmed entries.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
