package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestStripMarkdownCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
		{"plain fence", "```\n[1]\n```", "[1]"},
		{"surrounding whitespace", "  \n```json\n{}\n```  \n", "{}"},
		{"missing closing fence", "```json\n{}", "{}"},
		{"single line fence", "```{}```", "```{}```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownCodeFence(tt.in); got != tt.want {
				t.Errorf("StripMarkdownCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// indexEmbedder encodes each text's numeric value in the vector
func indexEmbedder(delay func(first string) time.Duration) *MockClient {
	m := NewMockClient(1)
	m.EmbedFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if delay != nil {
			time.Sleep(delay(texts[0]))
		}
		out := make([][]float32, len(texts))
		for i, s := range texts {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, err
			}
			out[i] = []float32{float32(n)}
		}
		return out, nil
	}
	return m
}

func TestEmbedBatches_PreservesOrder(t *testing.T) {
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			// Earlier batches finish last to shake out ordering bugs
			m := indexEmbedder(func(first string) time.Duration {
				n, _ := strconv.Atoi(first)
				return time.Duration(250-n) * 10 * time.Microsecond
			})

			vecs, err := EmbedBatches(context.Background(), m, texts, 100, concurrency)
			if err != nil {
				t.Fatalf("EmbedBatches failed: %v", err)
			}
			if len(vecs) != len(texts) {
				t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
			}
			for i, v := range vecs {
				if int(v[0]) != i {
					t.Fatalf("vector %d holds %v", i, v)
				}
			}
			if embed, _ := m.Calls(); embed != 3 {
				t.Errorf("expected 3 batch calls, got %d", embed)
			}
		})
	}
}

func TestEmbedBatches_Error(t *testing.T) {
	var calls atomic.Int32
	m := NewMockClient(2)
	boom := errors.New("rate limited")
	m.EmbedFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls.Add(1)
		return nil, boom
	}

	_, err := EmbedBatches(context.Background(), m, []string{"a", "b", "c"}, 2, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestEmbedBatches_ShortResponse(t *testing.T) {
	m := NewMockClient(2)
	m.EmbedFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2}}, nil
	}

	if _, err := EmbedBatches(context.Background(), m, []string{"a", "b"}, 10, 1); err == nil {
		t.Fatal("expected error for vector count mismatch")
	}
}

func TestEmbedBatches_Empty(t *testing.T) {
	m := NewMockClient(2)
	vecs, err := EmbedBatches(context.Background(), m, nil, 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 0 {
		t.Errorf("expected no vectors, got %d", len(vecs))
	}
	if embed, _ := m.Calls(); embed != 0 {
		t.Errorf("expected no calls, got %d", embed)
	}
}
