package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of texts sent per embedding request
const DefaultBatchSize = 100

// EmbedBatches embeds texts in fixed-size batches.
// With concurrency > 1 independent batches run in parallel, but each batch
// writes into its own slot so the result order always equals the input order.
func EmbedBatches(ctx context.Context, e Embedder, texts []string, batchSize, concurrency int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			batch := texts[start:end]
			out, err := e.Embed(gctx, batch)
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(out) != len(batch) {
				return fmt.Errorf("embed batch %d-%d: got %d vectors for %d texts", start, end, len(out), len(batch))
			}
			copy(vectors[start:end], out)
			slog.Debug("Embedded batch", "start", start, "end", end)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// StripMarkdownCodeFence removes a surrounding markdown code fence.
// Handles ```json\n...\n``` and ```\n...\n```; anything else is returned trimmed.
func StripMarkdownCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	firstNewline := strings.Index(s, "\n")
	if firstNewline == -1 {
		return s // Malformed, return as-is
	}
	s = s[firstNewline+1:]
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
