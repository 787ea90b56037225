package answer

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/wouteroostervld/atlas/pkg/llm"
	"github.com/wouteroostervld/atlas/pkg/retrieval"
)

var testChunks = []retrieval.Match{
	{File: "app/main.py", StartLine: 1, EndLine: 80, Text: "import os\n"},
	{File: "app/util.py", StartLine: 71, EndLine: 100, Text: "def helper():\n    pass\n"},
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("What does helper do?", testChunks)
	want := "Code context:\n" +
		"--- Chunk 1: app/main.py (lines 1-80) ---\nimport os\n" +
		"\n\n" +
		"--- Chunk 2: app/util.py (lines 71-100) ---\ndef helper():\n    pass\n" +
		"\n\nQuestion: What does helper do?"
	if got != want {
		t.Errorf("BuildPrompt mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestParseCitations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Citation
	}{
		{
			name: "single",
			text: "The entry point is main [app/main.py:1-80].",
			want: []Citation{{File: "app/main.py", StartLine: 1, EndLine: 80}},
		},
		{
			name: "multiple in order",
			text: "See [b.go:5-9] and [a.go:1-2]; also [b.go:5-9].",
			want: []Citation{
				{File: "b.go", StartLine: 5, EndLine: 9},
				{File: "a.go", StartLine: 1, EndLine: 2},
				{File: "b.go", StartLine: 5, EndLine: 9},
			},
		},
		{
			name: "no markers",
			text: "I don't know.",
			want: []Citation{},
		},
		{
			name: "malformed markers",
			text: "[a.go:1] [a.go:x-2] [:1-2] [a.go 1-2] [a:b.go:1-2]",
			want: []Citation{},
		},
		{
			name: "path with spaces and dashes",
			text: "[src/my-file name.ts:10-12]",
			want: []Citation{{File: "src/my-file name.ts", StartLine: 10, EndLine: 12}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCitations(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCitations(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCompose(t *testing.T) {
	mock := llm.NewMockClient(4)
	mock.CompleteFunc = func(ctx context.Context, system, prompt string) (string, error) {
		return "helper does nothing [app/util.py:71-100] [ghost.py:1-3]", nil
	}

	ans, err := NewComposer(mock).Compose(context.Background(), "What does helper do?", testChunks)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if len(ans.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %+v", ans.Citations)
	}
	// Citations pass through unverified
	if ans.Citations[1].File != "ghost.py" {
		t.Errorf("unexpected citation: %+v", ans.Citations[1])
	}
	if !reflect.DeepEqual(ans.Chunks, testChunks) {
		t.Error("chunks not returned in supplied order")
	}

	if len(mock.CompleteCalls) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(mock.CompleteCalls))
	}
	call := mock.CompleteCalls[0]
	if call.System != SystemPrompt || call.Prompt != BuildPrompt("What does helper do?", testChunks) {
		t.Error("unexpected prompt sent to model")
	}
}

func TestCompose_NoChunks(t *testing.T) {
	mock := llm.NewMockClient(4)
	ans, err := NewComposer(mock).Compose(context.Background(), "anything", nil)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != NoMatchAnswer || len(ans.Citations) != 0 || ans.Chunks == nil {
		t.Errorf("unexpected answer: %+v", ans)
	}
	if _, complete := mock.Calls(); complete != 0 {
		t.Error("model should not be called without context")
	}
}

func TestCompose_Error(t *testing.T) {
	boom := errors.New("timeout")
	mock := llm.NewMockClient(4)
	mock.CompleteFunc = func(ctx context.Context, system, prompt string) (string, error) { return "", boom }

	if _, err := NewComposer(mock).Compose(context.Background(), "q", testChunks); !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestUnsupported(t *testing.T) {
	citations := []Citation{
		{File: "app/main.py", StartLine: 10, EndLine: 20},
		{File: "app/util.py", StartLine: 1, EndLine: 70},
		{File: "app/util.py", StartLine: 100, EndLine: 120},
		{File: "other.py", StartLine: 1, EndLine: 2},
	}
	got := Unsupported(citations, testChunks)
	want := []Citation{citations[1], citations[3]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unsupported = %+v, want %+v", got, want)
	}
}
