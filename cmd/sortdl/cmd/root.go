package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solatis/sortdl/internal/core/config"
	"github.com/solatis/sortdl/internal/core/db"
	"github.com/solatis/sortdl/internal/core/logging"
)

// Version is the sortdl release.
const Version = "0.1.0"

// rootOptions holds state shared by all commands.
type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	defaults := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:          "sortdl",
		Short:        "sortdl download rule engine",
		Long:         `sortdl matches browser downloads against user rules and computes where each file should be saved.`,
		Version:      Version,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file path")
	flags.String("db-url", defaults.Database.URL, "database connection URL (sqlite://path or postgres://...)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, text)")
	flags.String("log-file", defaults.Log.File, "log file path (rotated); stderr when empty")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newResolveCmd(opts),
		newRenameCmd(),
		newRulesCmd(opts),
		newAPIKeyCmd(),
	)
	return rootCmd
}

// Execute runs the sortdl CLI.
func Execute() error {
	return newRootCmd().Execute()
}

// env is the configuration, logger and optional database a command runs with.
type env struct {
	cfg    *config.Config
	log    *logrus.Entry
	db     *sqlx.DB
	closer io.Closer
}

// setup loads configuration for cmd and builds its logger.
func (o *rootOptions) setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadConfig(o.configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	return &env{
		cfg:    cfg,
		log:    logrus.NewEntry(logger).WithField("command", cmd.Name()),
		closer: closer,
	}, nil
}

// openDB opens the configured database. When requireMigrated is set, a
// database with pending migrations is rejected.
func (e *env) openDB(requireMigrated bool) error {
	database, err := db.Open(e.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if requireMigrated {
		pending, err := db.Pending(database)
		if err != nil {
			database.Close()
			return fmt.Errorf("failed to check migrations: %w", err)
		}
		if pending {
			database.Close()
			return fmt.Errorf("database has pending migrations - run 'sortdl migrate up' first")
		}
	}

	e.db = database
	return nil
}

// stores loads the named queries and returns the rule and settings stores.
func (e *env) stores() (*db.RuleStore, *db.SettingsStore, error) {
	queries, err := db.LoadQueries(e.db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return db.NewRuleStore(e.db, queries), db.NewSettingsStore(queries), nil
}

func (e *env) Close() {
	if e.db != nil {
		e.db.Close()
	}
	if e.closer != nil {
		e.closer.Close()
	}
}

// withStores runs fn against a migrated database.
func (o *rootOptions) withStores(cmd *cobra.Command, fn func(ctx context.Context, e *env, rs *db.RuleStore, ss *db.SettingsStore) error) error {
	e, err := o.setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.openDB(true); err != nil {
		return err
	}
	rs, ss, err := e.stores()
	if err != nil {
		return err
	}
	return fn(cmd.Context(), e, rs, ss)
}
