package vectorDB

import (
	"math"
	"sort"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

// RerankMMR selects min(topK, len(candidates)) candidates by Maximum
// Marginal Relevance: the first pick is the most relevant candidate, each
// following pick maximizes
//
//	lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// lambda 1.0 degenerates to pure relevance, 0.0 to pure diversity. The
// result is re-sorted by descending relevance: selection order is not the
// display order. O(topK * len(candidates)), fine for the ~60 candidates an
// over-fetching search returns, not meant for large pools.
func RerankMMR(candidates []ragModel.RetrievalCandidate, topK int, lambda float32) []ragModel.RetrievalCandidate {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}

	remaining := make([]ragModel.RetrievalCandidate, len(candidates))
	copy(remaining, candidates)

	var selected []ragModel.RetrievalCandidate
	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		if len(selected) == 0 {
			for i, c := range remaining {
				if c.Score > remaining[bestIdx].Score {
					bestIdx = i
				}
			}
		} else {
			bestScore := float32(math.Inf(-1))
			for i, c := range remaining {
				// starts below any cosine value: a candidate pointing away
				// from everything selected keeps its negative similarity
				// instead of being clamped to 0
				maxSim := float32(math.Inf(-1))
				for _, s := range selected {
					if sim := cosineSimilarity(c.Vector, s.Vector); sim > maxSim {
						maxSim = sim
					}
				}
				score := lambda*c.Score - (1-lambda)*maxSim
				if score > bestScore {
					bestScore = score
					bestIdx = i
				}
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})
	return selected
}

// cosineSimilarity of a zero-norm vector against anything is 0, not an
// error.
func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, x := range a {
		normA += float64(x) * float64(x)
	}
	for _, x := range b {
		normB += float64(x) * float64(x)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
