// Package main provides grcctl, an operations CLI for the workflow server.
// It talks directly to the database for migrations, sweeps, and approval
// inspection, and can mint bearer tokens for API access.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	cfgFile   string
	dbType    string
	dbDSN     string
	tenantID  string
	outputFmt string
)

var rootCmd = &cobra.Command{
	Use:   "grcctl",
	Short: "Operations CLI for the workflow server",
	Long: `grcctl manages a workflow server deployment.

It runs schema migrations, triggers one-shot effective-date sweeps, inspects
approval records, and issues bearer tokens. Database settings come from
flags, GRC_* environment variables, or a config file (default
~/.grcctl.yaml), in that order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.grcctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbType, "db-type", "", "Database type: postgres, mysql, or sqlite")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "", "Database connection string")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "default", "Tenant id to operate on")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig merges the optional config file and GRC_* environment variables
// under the flags. Flags win, then env, then file.
func loadConfig() error {
	viper.SetEnvPrefix("GRC")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".grcctl.yaml"))
		}
		viper.SetConfigType("yaml")
	}
	if err := viper.ReadInConfig(); err != nil {
		// Missing config files are fine; explicit ones must parse.
		if cfgFile != "" {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	if dbType == "" {
		dbType = viper.GetString("db_type")
	}
	if dbDSN == "" {
		dbDSN = viper.GetString("db_dsn")
	}
	return nil
}

// openDB connects to the configured database.
func openDB() (*gorm.DB, error) {
	if dbDSN == "" {
		return nil, fmt.Errorf("database DSN is required (use --db-dsn, GRC_DB_DSN, or the config file)")
	}
	kind := dbType
	if kind == "" {
		kind = "postgres"
	}

	var dialector gorm.Dialector
	switch kind {
	case "postgres":
		dialector = postgres.Open(dbDSN)
	case "mysql":
		dialector = mysql.Open(dbDSN)
	case "sqlite":
		dialector = sqlite.Open(dbDSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres, mysql, or sqlite)", kind)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
}
