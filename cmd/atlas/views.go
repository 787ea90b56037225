package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	sourceStart int
	sourceEnd   int
	graphJSON   bool
)

var graphCmd = &cobra.Command{
	Use:   "graph <repo_id>",
	Short: "Show the import graph of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.engine.Graph(ctx, args[0])
		if err != nil {
			return err
		}
		if graphJSON {
			return printJSON(view)
		}

		fmt.Printf("%d files, %d import edges\n\n", len(view.Nodes), len(view.Edges))
		for _, e := range view.Edges {
			fmt.Printf("  %s -> %s\n", e.Source, e.Target)
		}
		return nil
	},
}

var onboardingCmd = &cobra.Command{
	Use:   "onboarding <repo_id>",
	Short: "Show the suggested reading order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.engine.Onboarding(ctx, args[0])
		if err != nil {
			return err
		}
		if len(view.Path) == 0 {
			fmt.Println("No onboarding path available.")
			return nil
		}
		for i, step := range view.Path {
			fmt.Printf("%2d. %s (importance %d)\n", i+1, step.File, step.Importance)
			if step.Reason != "" {
				fmt.Printf("    %s\n", step.Reason)
			}
			if step.Summary != "" {
				fmt.Printf("    %s\n", step.Summary)
			}
		}
		return nil
	},
}

var sourceCmd = &cobra.Command{
	Use:   "source <repo_id> <file>",
	Short: "Print lines of a file from an ingested snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.engine.Source(ctx, args[0], args[1], sourceStart, sourceEnd)
		if err != nil {
			return err
		}
		for i, line := range view.Lines {
			fmt.Printf("%5d  %s\n", view.Start+i, line)
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "Print nodes and edges as JSON")
	sourceCmd.Flags().IntVar(&sourceStart, "start", 1, "First line (1-indexed)")
	sourceCmd.Flags().IntVar(&sourceEnd, "end", -1, "Last line, inclusive (-1 for end of file)")
	rootCmd.AddCommand(graphCmd, onboardingCmd, sourceCmd)
}
