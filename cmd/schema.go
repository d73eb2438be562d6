package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avkatev/autocrawl/internal/config"
	"github.com/avkatev/autocrawl/internal/logging"
	"github.com/avkatev/autocrawl/internal/store"
)

// newSchemaCmd creates the 'schema' subcommand, which applies the database
// schema and exits. Useful for provisioning before the first crawl.
func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Applies the database schema and exits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck // best-effort flush

			ctx := cmd.Context()
			st, err := store.New(ctx, store.Config{
				DSN:             cfg.DB.DSN,
				MaxConns:        cfg.DB.MaxConns,
				MinConns:        cfg.DB.MinConns,
				MaxConnLifetime: cfg.ConnLifetime(),
			})
			if err != nil {
				return fmt.Errorf("connect storage: %w", err)
			}
			defer st.Close()

			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}
			log.Info("schema applied")
			return nil
		},
	}
}
