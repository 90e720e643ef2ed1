package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toppings/giveandtake/internal/killlist"
)

var killedCmd = &cobra.Command{
	Use:   "killed",
	Short: "Work with kill list text",
}

var killedRenderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Normalize a kill list",
	Long: `Parses the kill list in FILE ("-" for stdin) and prints it in canonical
form, keeping the order of entries. The output is what the bot would pin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		entries, err := killlist.Parse(text)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		_, err = fmt.Fprintln(w, killlist.Render(entries))
		return err
	},
}

func init() {
	rootCmd.AddCommand(killedCmd)
	killedCmd.AddCommand(killedRenderCmd)
}
