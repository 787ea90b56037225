package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryJSON         bool
	validateRuns      int
	validateTolerance int
)

var queryCmd = &cobra.Command{
	Use:   "query <repo_id> <question>",
	Short: "Ask a question about an ingested repository",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		ans, err := a.engine.Ask(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if queryJSON {
			return printJSON(ans)
		}

		fmt.Println(ans.Text)
		if len(ans.Citations) > 0 {
			fmt.Println()
			fmt.Println("Citations:")
			for _, c := range ans.Citations {
				fmt.Printf("  %s:%d-%d\n", c.File, c.StartLine, c.EndLine)
			}
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <repo_id> <question>",
	Short: "Check that repeated queries produce identical output",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.engine.CheckDeterminism(ctx, args[0], strings.Join(args[1:], " "), validateRuns, validateTolerance)
		if err != nil {
			return err
		}

		fmt.Printf("Runs:             %d\n", report.Runs)
		fmt.Printf("Distinct outputs: %d\n", report.DistinctOutputs)
		fmt.Printf("Distinct answers: %d\n", report.DistinctAnswers)
		if report.Deterministic {
			fmt.Println("✓ Deterministic")
			return nil
		}

		fmt.Printf("✗ %s\n", report.Message)
		if report.Diff != "" {
			fmt.Println()
			fmt.Print(report.Diff)
		}
		return errors.New("output is not deterministic")
	},
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the full answer with chunks as JSON")
	validateCmd.Flags().IntVar(&validateRuns, "runs", 3, "Number of identical queries")
	validateCmd.Flags().IntVar(&validateTolerance, "tolerance", 1, "Maximum distinct outputs allowed")
	rootCmd.AddCommand(queryCmd, validateCmd)
}
