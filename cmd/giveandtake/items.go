package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List the active roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		rost, err := loadRoster()
		if err != nil {
			return err
		}
		snap := rost.Current()
		w := cmd.OutOrStdout()

		if jsonOutput {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"items":        snap.Items,
				"allocation":   snap.Allocation,
				"expected_sum": snap.ExpectedSum(),
			})
		}

		for _, item := range snap.Items {
			fmt.Fprintf(w, "%s - %d\n", item, snap.Allocation)
		}
		fmt.Fprintf(w, "\n%d items, expected sum %d\n", len(snap.Items), snap.ExpectedSum())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(itemsCmd)
}
