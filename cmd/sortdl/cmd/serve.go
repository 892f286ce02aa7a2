package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solatis/sortdl/internal/core/api"
	"github.com/solatis/sortdl/internal/core/auth"
	"github.com/solatis/sortdl/internal/core/config"
	"github.com/solatis/sortdl/internal/core/db"
	"github.com/solatis/sortdl/internal/core/server"
	"github.com/solatis/sortdl/internal/rules"
	"github.com/solatis/sortdl/internal/rulesfile"
	"github.com/solatis/sortdl/internal/types"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start gRPC suggest service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("host", defaults.Server.Host, "gRPC server host")
	cmd.Flags().Int("port", defaults.Server.Port, "gRPC server port")
	cmd.Flags().Duration("request-timeout", defaults.Server.RequestTimeout, "per-request timeout")
	cmd.Flags().String("default-conflict", defaults.Downloads.DefaultConflict, "conflict action stored on first run (uniquify, overwrite, prompt)")
	cmd.Flags().Duration("reload-interval", defaults.Rules.ReloadInterval, "rule store poll interval (0 disables reloading)")
	cmd.Flags().Bool("migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	migrate, _ := cmd.Flags().GetBool("migrate")
	if err := e.openDB(!migrate); err != nil {
		return err
	}
	if migrate {
		if err := db.MigrateUp(e.db, e.log); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	ruleStore, settingsStore, err := e.stores()
	if err != nil {
		return err
	}

	if err := seedStore(ctx, e, ruleStore, settingsStore); err != nil {
		return err
	}

	engine := rules.NewEngine(rules.WithLogger(e.log))
	reloader := server.NewReloader(engine, ruleStore, settingsStore, e.log)
	if err := reloader.Load(ctx); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	var authenticator *auth.Authenticator
	if e.cfg.Server.APIKey != "" {
		authenticator, err = auth.NewAuthenticator(e.cfg.Server.APIKey)
		if err != nil {
			return fmt.Errorf("failed to set up authentication: %w", err)
		}
	} else {
		e.log.Warn("No API key configured (SORTDL_SERVER_API_KEY), serving without authentication")
	}

	service, err := api.NewSuggestService(engine, ruleStore, e.log)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&e.cfg.Server, service, authenticator, e.log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	go reloader.Run(ctx, e.cfg.Rules.ReloadInterval)

	e.log.WithField("version", Version).Infof("Starting sortdl on %s", grpcServer.Addr())
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		e.log.Info("Shutting down gracefully...")
		cancel()
		return grpcServer.Shutdown(context.Background())
	}
}

// seedStore installs the default rules into a store that has never been
// written and stores the configured default conflict action if none is
// stored yet.
func seedStore(ctx context.Context, e *env, ruleStore *db.RuleStore, settingsStore *db.SettingsStore) error {
	conflict, err := types.ParseConflictAction(e.cfg.Downloads.DefaultConflict)
	if err != nil {
		return err
	}
	if _, err := settingsStore.EnsureDefaultConflict(ctx, conflict); err != nil {
		return fmt.Errorf("failed to store default conflict action: %w", err)
	}

	if !e.cfg.Rules.SeedDefaults {
		return nil
	}

	revision, err := ruleStore.Revision(ctx)
	if err != nil {
		return fmt.Errorf("failed to read rules revision: %w", err)
	}
	if revision != 0 {
		return nil
	}

	defaults := rulesfile.DefaultRules()
	if err := ruleStore.ReplaceAll(ctx, defaults.Rules); err != nil {
		return fmt.Errorf("failed to seed default rules: %w", err)
	}
	e.log.WithField("rules", len(defaults.Rules)).Info("Seeded default rules")
	return nil
}
