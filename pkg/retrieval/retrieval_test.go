package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/wouteroostervld/atlas/pkg/db"
	"github.com/wouteroostervld/atlas/pkg/llm"
)

type mockSearcher struct {
	results []*db.SearchResult
	err     error
	calls   int
	lastK   int
	lastID  string
}

func (m *mockSearcher) SearchSimilar(ctx context.Context, repoID string, vec []float32, k int) ([]*db.SearchResult, error) {
	m.calls++
	m.lastK = k
	m.lastID = repoID
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*db.SearchResult, len(m.results))
	copy(out, m.results)
	return out, nil
}

func hit(file string, start, end int, dist float64) *db.SearchResult {
	return &db.SearchResult{
		Chunk:    db.Chunk{FilePath: file, StartLine: start, EndLine: end, Content: file + " body"},
		Distance: dist,
	}
}

func TestRank_Order(t *testing.T) {
	results := []*db.SearchResult{
		hit("b.go", 1, 80, 0.2),
		hit("a.go", 71, 100, 0.2),
		hit("a.go", 1, 80, 0.2),
		hit("z.go", 1, 10, 0.1),
		hit("a.go", 1, 50, 0.2),
	}

	got := Rank(results)
	want := []string{"z.go:1-10", "a.go:1-50", "a.go:1-80", "a.go:71-100", "b.go:1-80"}
	if len(got) != len(want) {
		t.Fatalf("got %d matches, want %d", len(got), len(want))
	}
	for i, m := range got {
		if key := m.File + ":" + strconv.Itoa(m.StartLine) + "-" + strconv.Itoa(m.EndLine); key != want[i] {
			t.Errorf("position %d: got %s, want %s", i, key, want[i])
		}
	}
}

func TestRank_JitterBelowPrecision(t *testing.T) {
	// The noisy run sees the same hits in another order with distances
	// that only differ below the rounding threshold.
	clean := []*db.SearchResult{
		hit("a.py", 1, 80, 0.3000001),
		hit("b.py", 1, 80, 0.3000002),
		hit("c.py", 1, 80, 0.1),
	}
	noisy := []*db.SearchResult{
		hit("c.py", 1, 80, 0.10000000004),
		hit("b.py", 1, 80, 0.30000009),
		hit("a.py", 1, 80, 0.30000012),
	}

	a, _ := json.Marshal(Rank(clean))
	b, _ := json.Marshal(Rank(noisy))
	if string(a) != string(b) {
		t.Errorf("rank not stable under jitter:\n%s\n%s", a, b)
	}
}

func TestRank_NoDistanceInPayload(t *testing.T) {
	data, err := json.Marshal(Rank([]*db.SearchResult{hit("a.go", 1, 2, 0.5)}))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "distance") || strings.Contains(string(data), "0.5") {
		t.Errorf("distance leaked into payload: %s", data)
	}
	if !strings.Contains(string(data), `"start_line":1`) {
		t.Errorf("unexpected payload: %s", data)
	}
}

func TestRoundDistance(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.1234564, 0.123456},
		{0.1234565001, 0.123457},
		{1, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := RoundDistance(tt.in); got != tt.want {
			t.Errorf("RoundDistance(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRetrieve(t *testing.T) {
	searcher := &mockSearcher{results: []*db.SearchResult{
		hit("b.go", 1, 80, 0.4),
		hit("a.go", 1, 80, 0.1),
		hit("c.go", 1, 80, 0.9),
	}}
	mock := llm.NewMockClient(4)
	r := New(mock, searcher)

	got, err := r.Retrieve(context.Background(), "repo1", "where is main?", 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 2 || got[0].File != "a.go" || got[1].File != "b.go" {
		t.Errorf("unexpected matches: %+v", got)
	}
	if searcher.lastK != 2 || searcher.lastID != "repo1" {
		t.Errorf("searcher called with k=%d id=%s", searcher.lastK, searcher.lastID)
	}
	if embed, _ := mock.Calls(); embed != 1 || !reflect.DeepEqual(mock.EmbedCalls[0], []string{"where is main?"}) {
		t.Errorf("unexpected embed calls: %v", mock.EmbedCalls)
	}

	again, _ := r.Retrieve(context.Background(), "repo1", "where is main?", 2)
	if !reflect.DeepEqual(got, again) {
		t.Error("repeated retrieval differs")
	}
}

func TestRetrieve_Errors(t *testing.T) {
	boom := errors.New("boom")

	mock := llm.NewMockClient(4)
	mock.EmbedFunc = func(ctx context.Context, texts []string) ([][]float32, error) { return nil, boom }
	if _, err := New(mock, &mockSearcher{}).Retrieve(context.Background(), "r", "q", 3); !errors.Is(err, boom) {
		t.Errorf("expected embed error, got %v", err)
	}

	searcher := &mockSearcher{err: boom}
	if _, err := New(llm.NewMockClient(4), searcher).Retrieve(context.Background(), "r", "q", 3); !errors.Is(err, boom) {
		t.Errorf("expected search error, got %v", err)
	}
}

func TestRetrieve_Empty(t *testing.T) {
	got, err := New(llm.NewMockClient(4), &mockSearcher{}).Retrieve(context.Background(), "r", "q", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}
