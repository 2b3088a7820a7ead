package retrieval_test

import (
	"testing"

	"legal-rag/internal/domain"
	"legal-rag/internal/usecase/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ranked(ids ...int64) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, len(ids))
	for i, id := range ids {
		out[i] = domain.RetrievalCandidate{ChunkID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func fusedIDs(f []domain.FusedResult) []int64 {
	ids := make([]int64, len(f))
	for i, x := range f {
		ids[i] = x.ChunkID
	}
	return ids
}

func TestFuseRRF_MurderExample(t *testing.T) {
	// A = 1, B = 2. Lexical: A, B. Vector: B, x, A.
	lexical := ranked(1, 2)
	vector := ranked(2, 99, 1)

	got := retrieval.FuseRRF(60, 2, lexical, vector)
	require.Len(t, got, 2)

	assert.Equal(t, int64(2), got[0].ChunkID)
	assert.InDelta(t, 1.0/62+1.0/61, got[0].RRFScore, 1e-12)
	assert.Equal(t, int64(1), got[1].ChunkID)
	assert.InDelta(t, 1.0/61+1.0/63, got[1].RRFScore, 1e-12)
	assert.InDelta(t, 0.032522, got[0].RRFScore, 1e-6)
	assert.InDelta(t, 0.032266, got[1].RRFScore, 1e-6)
}

func TestFuseRRF_SelfFusionPreservesOrder(t *testing.T) {
	list := ranked(40, 7, 13, 2, 91)

	got := retrieval.FuseRRF(60, 0, list, list)

	assert.Equal(t, []int64{40, 7, 13, 2, 91}, fusedIDs(got))
	for i, r := range got {
		assert.InDelta(t, 2.0/(float64(i+1)+60), r.RRFScore, 1e-12)
	}
}

func TestFuseRRF_MissingFromOneRetrieverScoresLess(t *testing.T) {
	single := retrieval.FuseRRF(60, 0, ranked(5), nil)
	both := retrieval.FuseRRF(60, 0, ranked(5), ranked(5))

	require.Len(t, single, 1)
	require.Len(t, both, 1)
	assert.InDelta(t, 1.0/61, single[0].RRFScore, 1e-12)
	assert.Less(t, single[0].RRFScore, both[0].RRFScore)
}

func TestFuseRRF_TieBreakAndTruncation(t *testing.T) {
	// 8 and 3 each appear once at rank 1.
	got := retrieval.FuseRRF(60, 0, ranked(8), ranked(3))
	assert.Equal(t, []int64{3, 8}, fusedIDs(got))

	got = retrieval.FuseRRF(60, 1, ranked(8), ranked(3))
	assert.Equal(t, []int64{3}, fusedIDs(got))
}

func TestFuseRRF_DuplicateWithinListCountsOnce(t *testing.T) {
	got := retrieval.FuseRRF(60, 0, []domain.RetrievalCandidate{{ChunkID: 1}, {ChunkID: 1}, {ChunkID: 2}})

	assert.Equal(t, []int64{1, 2}, fusedIDs(got))
	assert.InDelta(t, 1.0/61, got[0].RRFScore, 1e-12)
	assert.InDelta(t, 1.0/63, got[1].RRFScore, 1e-12)
}

func TestFuseRRF_Empty(t *testing.T) {
	assert.Empty(t, retrieval.FuseRRF(60, 3))
	assert.Empty(t, retrieval.FuseRRF(60, 3, nil, nil))
}
