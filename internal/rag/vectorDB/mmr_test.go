package vectorDB

import (
	"fmt"
	"sort"
	"testing"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

func makeCandidates(scores []float32, vectors [][]float32) []ragModel.RetrievalCandidate {
	out := make([]ragModel.RetrievalCandidate, len(scores))
	for i, s := range scores {
		out[i] = ragModel.RetrievalCandidate{
			DocumentID: fmt.Sprintf("doc-%d", i),
			Content:    fmt.Sprintf("candidate %d", i),
			Score:      s,
			Vector:     vectors[i],
		}
	}
	return out
}

func TestRerankMMR_LambdaOneIsPureRelevance(t *testing.T) {
	scores := []float32{0.3, 0.9, 0.7, 0.5, 0.8}
	vectors := [][]float32{
		{1, 0}, {1, 0}, {1, 0}, {1, 0}, {1, 0}, // identical vectors: max redundancy
	}
	got := RerankMMR(makeCandidates(scores, vectors), 5, 1.0)

	want := append([]float32(nil), scores...)
	sort.Slice(want, func(i, j int) bool { return want[i] > want[j] })
	for i, c := range got {
		if c.Score != want[i] {
			t.Errorf("position %d: got score %v, want %v", i, c.Score, want[i])
		}
	}
}

func TestRerankMMR_NoDuplicatesAndBounds(t *testing.T) {
	scores := []float32{0.9, 0.8, 0.7}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	cands := makeCandidates(scores, vectors)

	tests := []struct {
		topK     int
		wantLen  int
	}{
		{1, 1},
		{3, 3},
		{10, 3}, // capped at len(candidates)
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("topK=%d", tt.topK), func(t *testing.T) {
			got := RerankMMR(cands, tt.topK, 0.6)
			if len(got) != tt.wantLen {
				t.Fatalf("got %d results, want %d", len(got), tt.wantLen)
			}
			seen := map[string]bool{}
			for _, c := range got {
				if seen[c.DocumentID] {
					t.Errorf("duplicate candidate %s", c.DocumentID)
				}
				seen[c.DocumentID] = true
			}
		})
	}
}

func TestRerankMMR_DiversityBeatsRedundancy(t *testing.T) {
	// Candidates 0 and 1 are near-identical in vector space; candidate 2 is
	// orthogonal with a slightly lower score. With a balanced lambda the
	// orthogonal candidate must displace the redundant one.
	cands := makeCandidates(
		[]float32{0.9, 0.85, 0.7},
		[][]float32{{1, 0}, {0.99, 0.01}, {0, 1}},
	)
	got := RerankMMR(cands, 2, 0.5)
	if len(got) != 2 {
		t.Fatalf("got %d results", len(got))
	}
	ids := map[string]bool{}
	for _, c := range got {
		ids[c.DocumentID] = true
	}
	if !ids["doc-0"] || !ids["doc-2"] {
		t.Errorf("expected the top candidate plus the orthogonal one, got %v", ids)
	}
}

func TestRerankMMR_NegativeSimilarityNotClamped(t *testing.T) {
	// Candidate 1 points opposite the already-selected vector, so its
	// similarity is -1 and its marginal score 0.6*0.5 - 0.4*(-1) = 0.7.
	// Candidate 2 is orthogonal with a higher raw score but only reaches
	// 0.6*0.7 - 0.4*0 = 0.42. Clamping the similarity at zero would hand
	// the second slot to candidate 2 instead.
	cands := makeCandidates(
		[]float32{0.9, 0.5, 0.7},
		[][]float32{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}},
	)
	got := RerankMMR(cands, 2, 0.6)
	if len(got) != 2 {
		t.Fatalf("got %d results", len(got))
	}
	ids := map[string]bool{}
	for _, c := range got {
		ids[c.DocumentID] = true
	}
	if !ids["doc-0"] || !ids["doc-1"] {
		t.Errorf("expected the top candidate plus the opposing one, got %v", ids)
	}
}

func TestRerankMMR_OutputSortedByRelevance(t *testing.T) {
	cands := makeCandidates(
		[]float32{0.9, 0.5, 0.85, 0.6},
		[][]float32{{1, 0}, {0, 1}, {1, 0.1}, {0.5, 0.5}},
	)
	got := RerankMMR(cands, 4, 0.3)
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("output not sorted by relevance at %d: %v > %v",
				i, got[i].Score, got[i-1].Score)
		}
	}
}

func TestRerankMMR_ZeroNormVector(t *testing.T) {
	cands := makeCandidates(
		[]float32{0.9, 0.8},
		[][]float32{{0, 0}, {1, 0}},
	)
	got := RerankMMR(cands, 2, 0.6)
	if len(got) != 2 {
		t.Fatalf("zero-norm vector must not break selection, got %d results", len(got))
	}
}

func TestRerankMMR_EmptyInput(t *testing.T) {
	if got := RerankMMR(nil, 5, 0.6); len(got) != 0 {
		t.Errorf("expected empty result for empty input")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"Identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"Orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"ZeroNorm", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
