package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/wouteroostervld/atlas/pkg/importgraph"
	"github.com/wouteroostervld/atlas/pkg/llm"
)

// FallbackReason is used for steps whose order did not come from the model
const FallbackReason = "Suggested by importance score."

const pathSystemPrompt = `You are designing a reading order for a developer who is new to a codebase. Order the given files so that every file comes after the files it imports, starting with foundational modules and ending with the code that ties them together.

Respond with a JSON array only, one object per file, in reading order:
[{"file": "<path as given>", "reason": "<one sentence: what the reader learns here>"}]`

// Candidates returns the files eligible for the onboarding path: every file
// scoring at least threshold, or the topN best files when none do. Order is
// score descending, then path.
func Candidates(analyses map[string]Record, threshold, topN int) []string {
	ranked := make([]string, 0, len(analyses))
	for f := range analyses {
		ranked = append(ranked, f)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := analyses[ranked[i]].Importance, analyses[ranked[j]].Importance
		if si != sj {
			return si > sj
		}
		return ranked[i] < ranked[j]
	})

	var picked []string
	for _, f := range ranked {
		if analyses[f].Importance >= threshold {
			picked = append(picked, f)
		}
	}
	if len(picked) > 0 {
		return picked
	}
	return ranked[:min(topN, len(ranked))]
}

// BuildPath orders the candidate files into a reading path. A failed or
// unparseable model response falls back to the score order; no candidate
// is ever left out. Only context cancellation is returned as an error.
func (a *Analyzer) BuildPath(ctx context.Context, analyses map[string]Record, edges []importgraph.Edge) ([]Step, error) {
	candidates := Candidates(analyses, a.cfg.ImportanceThreshold, a.cfg.FallbackTopN)
	if len(candidates) <= 1 {
		return scoreOrder(candidates, analyses), nil
	}

	response, err := a.completer.Complete(ctx, pathSystemPrompt, pathPrompt(candidates, analyses, edges))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Warn("Onboarding path request failed, using score order", "error", err)
		return scoreOrder(candidates, analyses), nil
	}

	steps, err := parsePath(response, candidates, analyses)
	if err != nil {
		slog.Warn("Onboarding path unparseable, using score order", "error", err)
		return scoreOrder(candidates, analyses), nil
	}
	return steps, nil
}

func pathPrompt(candidates []string, analyses map[string]Record, edges []importgraph.Edge) string {
	in := make(map[string]bool, len(candidates))
	var sb strings.Builder
	sb.WriteString("Files:\n")
	for _, f := range candidates {
		in[f] = true
		r := analyses[f]
		fmt.Fprintf(&sb, "- %s (importance %d): %s\n", f, r.Importance, r.Summary)
	}

	sb.WriteString("\nImports (importer -> imported):\n")
	n := 0
	for _, e := range edges {
		if in[e.Source] && in[e.Target] {
			fmt.Fprintf(&sb, "%s -> %s\n", e.Source, e.Target)
			n++
		}
	}
	if n == 0 {
		sb.WriteString("(none)\n")
	}
	return sb.String()
}

type rawStep struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// parsePath keeps the model's order for known candidates, drops duplicates
// and unknown files, then appends whatever the model left out in score order.
func parsePath(response string, candidates []string, analyses map[string]Record) ([]Step, error) {
	body := llm.StripMarkdownCodeFence(response)

	var raw []rawStep
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		var names []string
		if err2 := json.Unmarshal([]byte(body), &names); err2 != nil {
			return nil, fmt.Errorf("failed to parse onboarding path: %w", err)
		}
		for _, n := range names {
			raw = append(raw, rawStep{File: n})
		}
	}

	wanted := make(map[string]bool, len(candidates))
	for _, f := range candidates {
		wanted[f] = true
	}

	steps := make([]Step, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, r := range raw {
		if !wanted[r.File] || seen[r.File] {
			continue
		}
		seen[r.File] = true
		steps = append(steps, newStep(r.File, r.Reason, analyses[r.File]))
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("onboarding path names none of the %d candidates", len(candidates))
	}

	for _, f := range candidates {
		if !seen[f] {
			steps = append(steps, newStep(f, "", analyses[f]))
		}
	}
	return steps, nil
}

func scoreOrder(candidates []string, analyses map[string]Record) []Step {
	steps := make([]Step, 0, len(candidates))
	for _, f := range candidates {
		steps = append(steps, Step{File: f, Reason: FallbackReason, Record: analyses[f].normalize()})
	}
	return steps
}

func newStep(file, reason string, r Record) Step {
	if reason == "" {
		reason = r.OnboardingReason
	}
	if reason == "" {
		reason = FallbackReason
	}
	return Step{File: file, Reason: reason, Record: r.normalize()}
}
