// Package answer builds grounded prompts and extracts citations from model output.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/wouteroostervld/atlas/pkg/llm"
	"github.com/wouteroostervld/atlas/pkg/retrieval"
)

// SystemPrompt is sent with every question
const SystemPrompt = `You are Atlas, an expert code analyst. Answer the user's question about a codebase using ONLY the provided code context. Be concise and precise.

Rules:
- Ground every claim in the provided chunks.
- Cite sources as [file:start_line-end_line] inline.
- If the context doesn't contain enough information, say so.
- Use technical language appropriate for developers.`

// NoMatchAnswer is returned without calling the model when retrieval found nothing
const NoMatchAnswer = "No relevant code found for your question."

var citationPattern = regexp.MustCompile(`\[([^:\]]+):(\d+)-(\d+)\]`)

// Citation is a file and line range referenced inline in an answer
type Citation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Answer is the result of a question
type Answer struct {
	Text      string            `json:"answer"`
	Citations []Citation        `json:"citations"`
	Chunks    []retrieval.Match `json:"chunks"`
}

// Composer turns ranked chunks into a cited answer
type Composer struct {
	completer llm.Completer
}

// NewComposer creates a Composer
func NewComposer(completer llm.Completer) *Composer {
	return &Composer{completer: completer}
}

// Compose asks the model question over chunks, in the order given
func (c *Composer) Compose(ctx context.Context, question string, chunks []retrieval.Match) (*Answer, error) {
	if len(chunks) == 0 {
		return &Answer{Text: NoMatchAnswer, Citations: []Citation{}, Chunks: []retrieval.Match{}}, nil
	}

	text, err := c.completer.Complete(ctx, SystemPrompt, BuildPrompt(question, chunks))
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	citations := ParseCitations(text)
	slog.Debug("Composed answer", "chunks", len(chunks), "citations", len(citations), "length", len(text))
	return &Answer{Text: text, Citations: citations, Chunks: chunks}, nil
}

// BuildPrompt renders the user message: every chunk under a header with its
// file and line range, then the question.
func BuildPrompt(question string, chunks []retrieval.Match) string {
	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = fmt.Sprintf("--- Chunk %d: %s (lines %d-%d) ---\n%s", i+1, ch.File, ch.StartLine, ch.EndLine, ch.Text)
	}
	return fmt.Sprintf("Code context:\n%s\n\nQuestion: %s", strings.Join(parts, "\n\n"), question)
}

// ParseCitations extracts every [file:start-end] marker in order of appearance.
// Text without markers, or with malformed ones, yields an empty list.
func ParseCitations(text string) []Citation {
	citations := []Citation{}
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		start, err1 := strconv.Atoi(m[2])
		end, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil {
			continue // out of int range
		}
		citations = append(citations, Citation{File: m[1], StartLine: start, EndLine: end})
	}
	return citations
}

// Unsupported returns the citations that do not overlap any of the chunks
func Unsupported(citations []Citation, chunks []retrieval.Match) []Citation {
	var out []Citation
	for _, c := range citations {
		supported := false
		for _, ch := range chunks {
			if ch.File == c.File && c.StartLine <= ch.EndLine && c.EndLine >= ch.StartLine {
				supported = true
				break
			}
		}
		if !supported {
			out = append(out, c)
		}
	}
	return out
}
