package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wouteroostervld/atlas/pkg/config"
	"github.com/wouteroostervld/atlas/pkg/filter"
	"github.com/wouteroostervld/atlas/pkg/ingest"
	"github.com/wouteroostervld/atlas/pkg/watcher"
	"github.com/wouteroostervld/atlas/pkg/worker"
)

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Ingest a local tree and re-ingest it whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := ingest.Wait(a.pipeline.Run(ctx, ingest.Request{Source: root}), func(ev ingest.Event) {
		fmt.Printf("[%s] %s\n", ev.Step, ev.Message)
	})
	if err != nil {
		return err
	}
	fmt.Printf("✓ Ingested %s: %d files, %d chunks\n", res.RepoID, res.Files, res.Chunks)

	w := worker.New(&worker.Config{
		Ingester: a.pipeline,
		OnResult: func(job worker.Job, res *ingest.Result, err error) {
			if err != nil {
				fmt.Printf("✗ Re-ingest failed: %v\n", err)
				return
			}
			fmt.Printf("✓ Re-ingested %s: %d files, %d chunks\n", res.RepoID, res.Files, res.Chunks)
		},
	})

	scan := a.profile.Scan
	if local, err := config.NewDefaultLoader().LoadLocal(root); err == nil {
		scan = config.MergeLocal(scan, local)
	}
	tw, err := watcher.New(&watcher.Config{
		Filter: filter.New(filter.Rules{
			Exclude:    scan.Exclude,
			Extensions: scan.Extensions,
			Blacklist:  scan.Blacklist,
			Whitelist:  scan.Whitelist,
		}),
		OnChange: func(changed string) {
			if _, ok := w.Enqueue(changed); ok {
				fmt.Printf("Change detected, re-ingest queued\n")
			}
		},
	})
	if err != nil {
		return err
	}
	defer tw.Close()

	if err := tw.Watch(root); err != nil {
		return err
	}

	go func() {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Ingest worker error", "error", err)
		}
	}()

	fmt.Printf("Watching %s (%d directories). Press Ctrl+C to stop.\n", root, tw.WatchedDirs())
	if err := tw.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("Stopped.")
	return nil
}
