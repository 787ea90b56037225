package chunker

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Default window settings used when a profile leaves them unset
const (
	DefaultWindowSize = 80
	DefaultOverlap    = 10
)

// ErrInvalidWindow is returned when the window configuration cannot advance
var ErrInvalidWindow = errors.New("invalid chunk window")

// Config controls the sliding line window
type Config struct {
	WindowSize int // Lines per chunk
	Overlap    int // Lines shared between consecutive chunks
}

// DefaultConfig returns the standard 80/10 window
func DefaultConfig() Config {
	return Config{WindowSize: DefaultWindowSize, Overlap: DefaultOverlap}
}

// Validate checks that the window advances by at least one line
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidWindow, c.WindowSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.WindowSize {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidWindow, c.Overlap, c.WindowSize)
	}
	return nil
}

// Chunk is a window of lines from one file
type Chunk struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"` // 1-indexed, inclusive
	EndLine   int    `json:"end_line"`   // 1-indexed, inclusive
	Text      string `json:"text"`
}

// SplitLines breaks content into lines that keep their terminating newline.
// CRLF and bare CR are normalized to LF and invalid UTF-8 is replaced.
func SplitLines(content string) []string {
	content = strings.ToValidUTF8(content, "\uFFFD")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	// SplitAfter leaves an empty tail when content ends with a newline
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Split slides a window over lines and returns the non-blank windows in order.
// A blank window is skipped but still advances the position.
func Split(file string, lines []string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	step := cfg.WindowSize - cfg.Overlap
	var chunks []Chunk
	for start := 0; start < len(lines); start += step {
		end := min(start+cfg.WindowSize, len(lines))
		text := strings.Join(lines[start:end], "")
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			File:      file,
			StartLine: start + 1,
			EndLine:   end,
			Text:      text,
		})
	}
	return chunks, nil
}

// SplitContent is Split over raw file content
func SplitContent(file, content string, cfg Config) ([]Chunk, error) {
	return Split(file, SplitLines(content), cfg)
}

// SplitFile reads path from disk and chunks it under the name file.
// An unreadable file yields no chunks rather than an error.
func SplitFile(file, path string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	return SplitContent(file, string(data), cfg)
}
