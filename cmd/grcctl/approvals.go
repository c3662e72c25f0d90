package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/complyard/grc-engine/pkg/workflow"
)

var (
	approvalsAuthor      int64
	approvalsReviewer    int64
	approvalsRejectedFor int64
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Inspect approval records",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approval records for a tenant",
	Long:  "Without filters, shows the latest approval record per framework. The author, reviewer, and rejected-for filters each show that user's records, newest first, one per entity.",
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		store := workflow.NewApprovalStore(db)

		var records []workflow.ApprovalRecord
		switch {
		case approvalsAuthor != 0:
			records, err = store.ByAuthor(tenantID, approvalsAuthor)
		case approvalsReviewer != 0:
			records, err = store.ByReviewer(tenantID, approvalsReviewer)
		case approvalsRejectedFor != 0:
			records, err = store.RejectedForUser(tenantID, approvalsRejectedFor)
		default:
			records, err = store.LatestPerFramework(tenantID)
		}
		if err != nil {
			return fmt.Errorf("list approvals: %w", err)
		}

		if outputFmt == "table" {
			rows := make([][]string, len(records))
			for i, rec := range records {
				rows[i] = []string{
					fmt.Sprint(rec.ID),
					string(rec.EntityType),
					fmt.Sprint(rec.EntityID),
					rec.Version,
					verdictString(rec.ApprovedNot),
					fmt.Sprint(rec.AuthorID),
					fmt.Sprint(rec.ReviewerID),
					rec.CreatedAt.Format(time.RFC3339),
				}
			}
			printTable([]string{"id", "entity", "entity id", "version", "verdict", "author", "reviewer", "created"}, rows)
			return nil
		}
		return printOutput(records)
	},
}

func verdictString(approved *bool) string {
	switch {
	case approved == nil:
		return "pending"
	case *approved:
		return "approved"
	default:
		return "rejected"
	}
}

func init() {
	approvalsListCmd.Flags().Int64Var(&approvalsAuthor, "author", 0, "Filter to records authored by this user id")
	approvalsListCmd.Flags().Int64Var(&approvalsReviewer, "reviewer", 0, "Filter to records reviewed by this user id")
	approvalsListCmd.Flags().Int64Var(&approvalsRejectedFor, "rejected-for", 0, "Filter to rejected records visible to this user id")
	approvalsCmd.AddCommand(approvalsListCmd)
}
