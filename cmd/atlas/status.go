package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and ingested repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		profile, _, err := loadProfile()
		if err != nil {
			return err
		}
		database, err := openDB(profile)
		if err != nil {
			return err
		}
		defer database.Close()

		fmt.Println("Atlas Status")
		fmt.Println("============")
		fmt.Printf("Data dir:   %s\n", profile.DataDir)
		fmt.Printf("Database:   %s\n", database.Path())
		fmt.Printf("Embedding:  %s/%s (dim %d)\n", profile.Embedding.Provider, profile.Embedding.Model, database.EmbeddingDim())
		fmt.Printf("LLM:        %s/%s\n", profile.LLM.Provider, profile.LLM.Model)
		fmt.Printf("Cache:      %s\n", profile.Cache.Backend)
		if err := database.HealthCheck(); err != nil {
			fmt.Printf("Health:     ✗ %v\n", err)
		} else {
			fmt.Println("Health:     ✓ ok")
		}
		fmt.Println()

		repos, err := database.ListRepos(ctx)
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("No repositories ingested.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "REPO\tFILES\tCHUNKS\tINGESTED\tSOURCE")
		for _, r := range repos {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.ID, r.FileCount, r.ChunkCount, r.IngestedAt.Format("2006-01-02 15:04"), r.Source)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
