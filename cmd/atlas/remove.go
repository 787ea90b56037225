package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <repo_id>",
	Short: "Forget an ingested repository",
	Long: `Delete a repository's chunks, vectors, graph cache entry and clone.
Local trees that were ingested in place are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		repoID := args[0]
		if _, err := a.db.GetRepo(ctx, repoID); err != nil {
			return err
		}
		if err := a.cache.Delete(ctx, repoID); err != nil {
			return err
		}
		if err := a.db.DeleteRepo(ctx, repoID); err != nil {
			return err
		}
		if err := os.RemoveAll(a.pipeline.CloneDir(repoID)); err != nil {
			return fmt.Errorf("failed to remove clone: %w", err)
		}
		fmt.Printf("✓ Removed %s\n", repoID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
