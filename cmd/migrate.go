package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
	"github.com/vibast-solutions/ms-go-novapay/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the MySQL schema",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		if cfg.Storage.Driver != config.StorageDriverMySQL {
			logrus.WithField("driver", cfg.Storage.Driver).Fatal("migrate requires the mysql storage driver")
		}

		db := mustOpenMySQL(cfg.MySQL)
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := repository.Migrate(ctx, db); err != nil {
			logrus.WithError(err).Fatal("Migration failed")
		}
		logrus.Info("Schema applied")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
