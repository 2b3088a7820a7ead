package retrieval

import (
	"sort"

	"legal-rag/internal/domain"
)

// DefaultRRFK is the reciprocal rank fusion damping constant.
const DefaultRRFK = 60.0

// FuseRRF merges ranked candidate lists with reciprocal rank fusion.
// A chunk at 1-indexed rank r in a list contributes 1/(r+k); lists that do not
// contain it contribute nothing. Only the first occurrence of a chunk within a
// list counts. Results are ordered by fused score, ties by ascending chunk id,
// and truncated to topN when topN is positive.
func FuseRRF(k float64, topN int, lists ...[]domain.RetrievalCandidate) []domain.FusedResult {
	scores := make(map[int64]float64)
	for _, list := range lists {
		seen := make(map[int64]struct{}, len(list))
		for rank, c := range list {
			if _, dup := seen[c.ChunkID]; dup {
				continue
			}
			seen[c.ChunkID] = struct{}{}
			scores[c.ChunkID] += 1.0 / (float64(rank+1) + k)
		}
	}

	fused := make([]domain.FusedResult, 0, len(scores))
	for id, s := range scores {
		fused = append(fused, domain.FusedResult{ChunkID: id, RRFScore: s})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].RRFScore != fused[j].RRFScore {
			return fused[i].RRFScore > fused[j].RRFScore
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})

	if topN > 0 && len(fused) > topN {
		fused = fused[:topN]
	}
	return fused
}
