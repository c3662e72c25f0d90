package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/complyard/grc-engine/pkg/audit"
	"github.com/complyard/grc-engine/pkg/ha"
	"github.com/complyard/grc-engine/pkg/jobs"
	"github.com/complyard/grc-engine/pkg/workflow"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run schema migrations",
	Long:  "Creates or updates all workflow, approval, audit, and job tables. Safe to run repeatedly and safe to run concurrently with server replicas.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}

		locker := ha.NewMigrationLocker(db, "grc-server-migration")
		err = locker.WithLock(context.Background(), func() error {
			if err := workflow.NewEntityStore(db, nil).AutoMigrate(); err != nil {
				return err
			}
			if err := workflow.NewApprovalStore(db).AutoMigrate(); err != nil {
				return err
			}
			if err := audit.NewStore(db).Migrate(); err != nil {
				return err
			}
			return jobs.NewJobStore(db).AutoMigrate()
		})
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}
