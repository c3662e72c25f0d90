package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/complyard/grc-engine/pkg/workflow"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a one-shot effective-date sweep",
	Long:  "Activates, schedules, or deactivates approved frameworks against today's date and expires overdue vendor SLAs. Idempotent.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}

		engine := workflow.NewEngine(db,
			workflow.NewEntityStore(db, nil),
			workflow.NewApprovalStore(db))

		res, err := engine.SweepEffectiveDates()
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}

		if outputFmt == "table" {
			printTable(
				[]string{"activated", "scheduled", "deactivated", "policies", "slas expired"},
				[][]string{{
					fmt.Sprint(res.FrameworksActivated),
					fmt.Sprint(res.FrameworksScheduled),
					fmt.Sprint(res.FrameworksDeactivated),
					fmt.Sprint(res.PoliciesUpdated),
					fmt.Sprint(res.SLAsExpired),
				}},
			)
			return nil
		}
		return printOutput(res)
	},
}
