package determinism

import (
	"strings"
	"testing"

	"github.com/wouteroostervld/atlas/pkg/answer"
	"github.com/wouteroostervld/atlas/pkg/retrieval"
)

func sample() Output {
	return Output{
		Answer: "main wires the server [cmd/main.go:1-40] and config [pkg/config.go:10-20].",
		Citations: []answer.Citation{
			{File: "pkg/config.go", StartLine: 10, EndLine: 20},
			{File: "cmd/main.go", StartLine: 1, EndLine: 40},
		},
		Chunks: []retrieval.Match{
			{File: "pkg/config.go", StartLine: 1, EndLine: 80, Text: "package config\n"},
			{File: "cmd/main.go", StartLine: 1, EndLine: 80, Text: "package main\n"},
			{File: "cmd/main.go", StartLine: 71, EndLine: 90, Text: "}\n"},
		},
	}
}

func TestHash_PermutationInvariant(t *testing.T) {
	a := sample()
	b := sample()
	b.Citations[0], b.Citations[1] = b.Citations[1], b.Citations[0]
	b.Chunks[0], b.Chunks[2] = b.Chunks[2], b.Chunks[0]

	if Hash(a) != Hash(b) {
		t.Error("hash depends on list order")
	}
	if len(Hash(a)) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(Hash(a)))
	}
}

func TestHash_AnswerTextMatters(t *testing.T) {
	a := sample()
	b := sample()
	b.Answer += " "
	if Hash(a) == Hash(b) {
		t.Error("different answers hash the same")
	}
}

func TestHash_DoesNotMutateInput(t *testing.T) {
	out := sample()
	Hash(out)
	if out.Citations[0].File != "pkg/config.go" || out.Chunks[0].File != "pkg/config.go" {
		t.Error("Hash reordered caller's slices")
	}
}

func TestHash_NilAndEmptyListsEqual(t *testing.T) {
	a := Output{Answer: "x"}
	b := Output{Answer: "x", Citations: []answer.Citation{}, Chunks: []retrieval.Match{}}
	if Hash(a) != Hash(b) {
		t.Error("nil and empty lists hash differently")
	}
}

func TestCanonical_SortedKeys(t *testing.T) {
	got := string(canonical(Output{
		Answer:    "a",
		Citations: []answer.Citation{{File: "f", StartLine: 1, EndLine: 2}},
	}))
	want := `{"answer":"a","chunks":[],"citations":[{"end_line":2,"file":"f","start_line":1}]}`
	if got != want {
		t.Errorf("canonical =\n%s\nwant\n%s", got, want)
	}
}

func TestValidateRepeated(t *testing.T) {
	base := sample()
	reordered := sample()
	reordered.Chunks[0], reordered.Chunks[1] = reordered.Chunks[1], reordered.Chunks[0]
	changed := sample()
	changed.Answer = "something else entirely"
	changedAgain := sample()
	changedAgain.Answer = "yet another answer"
	sameTextNewCitations := sample()
	sameTextNewCitations.Citations = nil

	tests := []struct {
		name      string
		outputs   []Output
		tolerance int
		want      bool
		msg       string
	}{
		{"empty", nil, 0, true, ""},
		{"single run", []Output{base}, 0, true, ""},
		{"identical", []Output{base, base, base}, 0, true, ""},
		{"reordered lists", []Output{base, reordered, base}, 0, true, ""},
		{"one divergent run", []Output{base, base, changed}, 0, false, "2 different outputs"},
		{"divergence within tolerance", []Output{base, changed, base}, 1, true, ""},
		{"beyond tolerance", []Output{base, changed, changedAgain}, 1, false, "3 different outputs"},
		{"structure differs", []Output{base, sameTextNewCitations}, 0, false, "2 different outputs"},
		{"negative tolerance treated as zero", []Output{base, changed}, -3, false, "expected <= 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateRepeated(tt.outputs, tt.tolerance)
			if r.Deterministic != tt.want {
				t.Errorf("Deterministic = %v, want %v (%s)", r.Deterministic, tt.want, r.Message)
			}
			if !strings.Contains(r.Message, tt.msg) {
				t.Errorf("Message = %q, want substring %q", r.Message, tt.msg)
			}
			if r.Runs != len(tt.outputs) || len(r.Hashes) != len(tt.outputs) {
				t.Errorf("Runs = %d, Hashes = %d", r.Runs, len(r.Hashes))
			}
		})
	}
}

func TestValidateRepeated_Diff(t *testing.T) {
	changed := sample()
	changed.Answer = "different"

	r := ValidateRepeated([]Output{sample(), sample(), changed}, 0)
	if r.Diff == "" {
		t.Fatal("expected a diff")
	}
	for _, want := range []string{"--- run 1", "+++ run 3", `+  "answer": "different",`} {
		if !strings.Contains(r.Diff, want) {
			t.Errorf("diff missing %q:\n%s", want, r.Diff)
		}
	}

	if r := ValidateRepeated([]Output{sample(), sample()}, 0); r.Diff != "" {
		t.Errorf("unexpected diff for identical runs:\n%s", r.Diff)
	}
}

func TestFromAnswer(t *testing.T) {
	a := &answer.Answer{Text: "t", Citations: []answer.Citation{{File: "f", StartLine: 1, EndLine: 1}}}
	out := FromAnswer(a)
	if out.Answer != "t" || len(out.Citations) != 1 {
		t.Errorf("unexpected output: %+v", out)
	}
}
