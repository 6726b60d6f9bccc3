package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albarami/wellbeing/config"
	"github.com/albarami/wellbeing/internal/store"
)

func migrateCMD() *cobra.Command {
	var migDir string
	var migDirDefault = "file://migrations"
	var direction string
	var steps int
	var cfgPath string

	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			pg := cfg.Storage.Postgres
			if pg.Host == "" || pg.DBName == "" {
				return fmt.Errorf("postgres not configured (storage.postgres.host/dbname)")
			}
			if migDir == "" {
				migDir = migDirDefault
			}
			return store.Migrate(migDir, pg.DSN(), direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", migDirDefault, "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return migrate
}
