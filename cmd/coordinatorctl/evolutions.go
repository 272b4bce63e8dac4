package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	evolutionsCmd = &cobra.Command{
		Use:   "evolutions",
		Short: "List active evolutions, or one workshop's history",
		RunE:  listEvolutions,
	}

	evolutionsWorkshop string
)

func init() {
	evolutionsCmd.Flags().StringVarP(&evolutionsWorkshop, "workshop", "w", "", "Show this workshop's history instead of active evolutions")
}

func listEvolutions(cmd *cobra.Command, args []string) error {
	evolutions, err := NewClient(apiURL).ListEvolutions(cmd.Context(), evolutionsWorkshop)
	if err != nil {
		return fmt.Errorf("failed to list evolutions: %w", err)
	}
	if printed, err := printJSON(cmd.OutOrStdout(), evolutions); printed {
		return err
	}
	if len(evolutions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No evolutions found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWORKSHOP\tTYPE\tPHASE\tAPPROVAL")
	for _, e := range evolutions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.EvolutionID, e.WorkshopName, e.Type, e.Phase, e.ApprovalID)
	}
	return w.Flush()
}
