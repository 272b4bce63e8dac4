package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

var (
	pendingCmd = &cobra.Command{
		Use:   "pending",
		Short: "List pending approvals, oldest first",
		RunE:  listPending,
	}

	approveCmd = &cobra.Command{
		Use:   "approve [approval-id]",
		Short: "Approve a request",
		Args:  cobra.ExactArgs(1),
		RunE:  decideCommand("approve"),
	}

	rejectCmd = &cobra.Command{
		Use:   "reject [approval-id]",
		Short: "Reject a request",
		Args:  cobra.ExactArgs(1),
		RunE:  decideCommand("reject"),
	}

	pendingType     string
	pendingReviewer string
	decisionInput   domain.DecisionInput
)

func init() {
	pendingCmd.Flags().StringVar(&pendingType, "type", "", "Only show this approval type")
	pendingCmd.Flags().StringVar(&pendingReviewer, "reviewer", "", "Only show requests assigned to this reviewer")

	for _, cmd := range []*cobra.Command{approveCmd, rejectCmd} {
		cmd.Flags().StringVar(&decisionInput.Reviewer, "reviewer", getEnvOrDefault("COORDINATOR_REVIEWER", ""), "Reviewer name")
		cmd.Flags().StringVar(&decisionInput.ReviewerRole, "role", "", "Reviewer role")
		cmd.Flags().StringVar(&decisionInput.Comments, "comments", "", "Decision comments")
		cmd.Flags().StringVar(&decisionInput.Rationale, "rationale", "", "Decision rationale")
	}
}

func listPending(cmd *cobra.Command, args []string) error {
	approvals, err := NewClient(apiURL).ListPending(cmd.Context(), pendingType, pendingReviewer)
	if err != nil {
		return fmt.Errorf("failed to list pending approvals: %w", err)
	}
	if printed, err := printJSON(cmd.OutOrStdout(), approvals); printed {
		return err
	}
	if len(approvals) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending approvals")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPRIORITY\tSTATUS\tREQUESTER\tTIMEOUT")
	for _, a := range approvals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ApprovalID, a.Type, a.Priority, a.Status, a.Requester, a.TimeoutAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func decideCommand(verb string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if decisionInput.Reviewer == "" {
			return fmt.Errorf("--reviewer is required")
		}
		approval, err := NewClient(apiURL).Decide(cmd.Context(), args[0], verb, decisionInput)
		if err != nil {
			return fmt.Errorf("failed to %s %s: %w", verb, args[0], err)
		}
		if printed, err := printJSON(cmd.OutOrStdout(), approval); printed {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", approval.ApprovalID, approval.Status)
		return nil
	}
}
