package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wouteroostervld/atlas/pkg/ingest"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <url|path>",
	Short: "Ingest a repository",
	Long: `Clone (or read in place) a repository, embed its chunks, build the import
graph and compute the onboarding path. A repository that is already fully
ingested is skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "Re-ingest even if a complete ingest exists")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	events := a.pipeline.Run(ctx, ingest.Request{Source: args[0], Force: ingestForce})
	res, err := ingest.Wait(events, func(ev ingest.Event) {
		fmt.Printf("[%s] %s\n", ev.Step, ev.Message)
	})
	if err != nil {
		return err
	}

	if res.Cached {
		fmt.Printf("✓ Already ingested: %s (%d files, %d chunks)\n", res.RepoID, res.Files, res.Chunks)
		return nil
	}
	fmt.Printf("✓ Ingested %s: %d files, %d chunks\n", res.RepoID, res.Files, res.Chunks)
	return nil
}
