// Package determinism detects non-reproducible answers across repeated runs.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/wouteroostervld/atlas/pkg/answer"
	"github.com/wouteroostervld/atlas/pkg/retrieval"
)

// Output is one run of a question through the pipeline
type Output struct {
	Answer    string            `json:"answer"`
	Citations []answer.Citation `json:"citations"`
	Chunks    []retrieval.Match `json:"chunks"`
}

// FromAnswer converts a composed answer
func FromAnswer(a *answer.Answer) Output {
	return Output{Answer: a.Text, Citations: a.Citations, Chunks: a.Chunks}
}

// Report is the verdict over a set of runs
type Report struct {
	Runs            int      `json:"runs"`
	Deterministic   bool     `json:"deterministic"`
	DistinctOutputs int      `json:"distinct_outputs"`
	DistinctAnswers int      `json:"distinct_answers"`
	Hashes          []string `json:"hashes"`
	Message         string   `json:"message,omitempty"`
	Diff            string   `json:"diff,omitempty"`
}

// Hash returns the hex sha256 of the normalized output. Citation and chunk
// order do not affect the digest; answer text does.
func Hash(out Output) string {
	sum := sha256.Sum256(canonical(out))
	return hex.EncodeToString(sum[:])
}

// canonical sorts citations and chunks by (file, start, end) and encodes the
// result with sorted keys and no insignificant whitespace.
func canonical(out Output) []byte {
	citations := append([]answer.Citation{}, out.Citations...)
	sort.SliceStable(citations, func(i, j int) bool {
		a, b := citations[i], citations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.EndLine < b.EndLine
	})

	chunks := append([]retrieval.Match{}, out.Chunks...)
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		if a.EndLine != b.EndLine {
			return a.EndLine < b.EndLine
		}
		return a.Text < b.Text
	})

	// Round-trip through a generic map: encoding/json writes map keys sorted
	normalized := map[string]any{
		"answer":    out.Answer,
		"citations": citations,
		"chunks":    chunks,
	}
	data, _ := json.Marshal(normalized)
	var generic any
	_ = json.Unmarshal(data, &generic)
	data, _ = json.Marshal(generic)
	return data
}

// AnswerHash digests only the raw answer text
func AnswerHash(out Output) string {
	sum := sha256.Sum256([]byte(out.Answer))
	return hex.EncodeToString(sum[:])
}

// ValidateRepeated reports whether outputs are reproducible. Up to
// tolerance+1 distinct normalized outputs (and distinct answers) are accepted.
// Fewer than two outputs are trivially deterministic.
func ValidateRepeated(outputs []Output, tolerance int) Report {
	if tolerance < 0 {
		tolerance = 0
	}
	r := Report{Runs: len(outputs), Deterministic: true, Hashes: make([]string, len(outputs))}
	if len(outputs) == 0 {
		return r
	}

	distinct := map[string]int{}
	answers := map[string]bool{}
	for i, out := range outputs {
		h := Hash(out)
		r.Hashes[i] = h
		if _, ok := distinct[h]; !ok {
			distinct[h] = i
		}
		answers[AnswerHash(out)] = true
	}
	r.DistinctOutputs = len(distinct)
	r.DistinctAnswers = len(answers)

	if len(outputs) < 2 {
		return r
	}

	switch {
	case r.DistinctOutputs > tolerance+1:
		r.Deterministic = false
		r.Message = fmt.Sprintf("found %d different outputs (expected <= %d)", r.DistinctOutputs, tolerance+1)
	case r.DistinctAnswers > tolerance+1:
		r.Deterministic = false
		r.Message = fmt.Sprintf("found %d different answers (expected <= %d)", r.DistinctAnswers, tolerance+1)
	}

	if r.DistinctOutputs > 1 {
		r.Diff = firstDivergence(outputs, r.Hashes)
	}
	return r
}

// firstDivergence diffs the first run against the first run that differs from it
func firstDivergence(outputs []Output, hashes []string) string {
	for i := 1; i < len(outputs); i++ {
		if hashes[i] == hashes[0] {
			continue
		}
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(pretty(outputs[0])),
			B:        difflib.SplitLines(pretty(outputs[i])),
			FromFile: "run 1",
			ToFile:   fmt.Sprintf("run %d", i+1),
			Context:  2,
		})
		if err != nil {
			return ""
		}
		return diff
	}
	return ""
}

func pretty(out Output) string {
	var generic any
	_ = json.Unmarshal(canonical(out), &generic)
	data, _ := json.MarshalIndent(generic, "", "  ")
	return string(data) + "\n"
}
