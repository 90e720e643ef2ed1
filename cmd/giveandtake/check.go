package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/toppings/giveandtake/internal/referee"
	"github.com/toppings/giveandtake/internal/scoreboard"
	"github.com/toppings/giveandtake/internal/types"
)

// exitError ends the process with a status code and no extra message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitCode(err error) (int, bool) {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code, true
	}
	return 0, false
}

var checkCmd = &cobra.Command{
	Use:   "check PREVIOUS CURRENT",
	Short: "Check a scoreboard against the previous one",
	Long: `Validates the scoreboard in file CURRENT against the one in PREVIOUS using
the same rules as the bot. Use "-" to read either file from stdin.
Exits with status 1 when the round is invalid.`,
	Args: cobra.ExactArgs(2),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	prev, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	cur, err := readInput(cmd.InOrStdin(), args[1])
	if err != nil {
		return err
	}

	rost, err := loadRoster()
	if err != nil {
		return err
	}
	out, err := referee.Check(scoreboard.NewDecoder(newResolver()), rost.Current(), prev, cur)
	if err != nil {
		return err
	}

	if err := printOutcome(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if !out.Valid {
		return &exitError{code: 1}
	}
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied input file
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printOutcome(w io.Writer, out types.Outcome) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if !out.Valid {
		_, err := fmt.Fprintf(w, "invalid: %s\n", out.Reason)
		return err
	}
	if out.Death != nil {
		_, err := fmt.Fprintf(w, "valid: %d items, %s died\n", out.ItemCount, *out.Death)
		return err
	}
	_, err := fmt.Fprintf(w, "valid: %d items\n", out.ItemCount)
	return err
}
