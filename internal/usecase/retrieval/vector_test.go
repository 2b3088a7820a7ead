package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"legal-rag/internal/domain"
	"legal-rag/internal/usecase/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newScanner() *memoryScanner {
	return &memoryScanner{
		ids: []int64{5, 4, 3, 2, 1},
		embeddings: map[int64][]float32{
			1: {1, 0},
			2: {0.6, 0.8},
			3: {0, 1},
			4: {2, 0},
			5: {-1, 0},
		},
	}
}

func TestCosineSearcher_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("Filters by floor and orders by similarity then id", func(t *testing.T) {
		s := retrieval.NewCosineSearcher(newScanner())
		got, err := s.Search(ctx, []float32{1, 0}, 10, 0.5, domain.SearchFilter{})
		require.NoError(t, err)

		assert.Equal(t, []int64{1, 4, 2}, chunkIDs(got))
		assert.InDelta(t, 1.0, got[0].Score, 1e-9)
		assert.InDelta(t, 1.0, got[1].Score, 1e-9)
		assert.InDelta(t, 0.6, got[2].Score, 1e-6)
	})

	t.Run("Truncates to topN", func(t *testing.T) {
		s := retrieval.NewCosineSearcher(newScanner())
		got, err := s.Search(ctx, []float32{1, 0}, 2, 0.5, domain.SearchFilter{})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 4}, chunkIDs(got))
	})

	t.Run("Passes the filter to the scanner", func(t *testing.T) {
		scanner := newScanner()
		s := retrieval.NewCosineSearcher(scanner)
		_, err := s.Search(ctx, []float32{1, 0}, 2, 0.5, domain.SearchFilter{JudgmentID: 42})
		require.NoError(t, err)
		assert.Equal(t, []domain.SearchFilter{{JudgmentID: 42}}, scanner.filters)
	})

	t.Run("Scanner failure is returned", func(t *testing.T) {
		scanner := newScanner()
		scanner.err = errors.New("connection reset")
		_, err := retrieval.NewCosineSearcher(scanner).Search(ctx, []float32{1, 0}, 2, 0.5, domain.SearchFilter{})
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, retrieval.CosineSimilarity([]float32{3, 4}, []float32{6, 8}), 1e-9)
	assert.InDelta(t, -1.0, retrieval.CosineSimilarity([]float32{1, 0}, []float32{-2, 0}), 1e-9)
	assert.Zero(t, retrieval.CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, retrieval.CosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestVectorRetriever_Retrieve(t *testing.T) {
	ctx := context.Background()
	filter := domain.SearchFilter{JudgmentID: 7}

	t.Run("Embeds the query and searches with the floor", func(t *testing.T) {
		enc := new(MockVectorEncoder)
		searcher := new(MockVectorSearcher)
		enc.On("Encode", mock.Anything, []string{"murder"}).Return([][]float32{{0.1, 0.2}}, nil)
		want := []domain.RetrievalCandidate{{ChunkID: 3, Score: 0.9}}
		searcher.On("Search", mock.Anything, []float32{0.1, 0.2}, 15, 0.5, filter).Return(want, nil)

		got, err := retrieval.NewVectorRetriever(enc, searcher, 0.5).Retrieve(ctx, "murder", 15, filter)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		enc.AssertExpectations(t)
		searcher.AssertExpectations(t)
	})

	t.Run("Embedder failure is a collaborator error", func(t *testing.T) {
		enc := new(MockVectorEncoder)
		enc.On("Encode", mock.Anything, mock.Anything).Return(nil, errors.New("ollama down"))

		_, err := retrieval.NewVectorRetriever(enc, new(MockVectorSearcher), 0.5).Retrieve(ctx, "murder", 15, filter)
		require.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
		var ce *domain.CollaboratorError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "embedder", ce.Collaborator)
	})

	t.Run("Empty embedding is a collaborator error", func(t *testing.T) {
		enc := new(MockVectorEncoder)
		enc.On("Encode", mock.Anything, mock.Anything).Return([][]float32{}, nil)

		_, err := retrieval.NewVectorRetriever(enc, new(MockVectorSearcher), 0.5).Retrieve(ctx, "murder", 15, filter)
		assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
	})

	t.Run("Store failure is a collaborator error", func(t *testing.T) {
		enc := new(MockVectorEncoder)
		searcher := new(MockVectorSearcher)
		enc.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{1}}, nil)
		searcher.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		_, err := retrieval.NewVectorRetriever(enc, searcher, 0.5).Retrieve(ctx, "murder", 15, filter)
		var ce *domain.CollaboratorError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "vector_store", ce.Collaborator)
	})
}

func TestFallbackSearcher_Search(t *testing.T) {
	ctx := context.Background()
	query := []float32{1, 0}
	scanner := &memoryScanner{
		ids:        []int64{1, 2},
		embeddings: map[int64][]float32{1: {1, 0}, 2: {0, 1}},
	}

	t.Run("Native results are used while available", func(t *testing.T) {
		native := new(MockVectorSearcher)
		native.On("Search", mock.Anything, query, 5, 0.5, domain.SearchFilter{}).
			Return([]domain.RetrievalCandidate{{ChunkID: 9, Score: 0.9}}, nil).Once()
		s := retrieval.NewFallbackSearcher(native, retrieval.NewCosineSearcher(scanner))

		got, err := s.Search(ctx, query, 5, 0.5, domain.SearchFilter{})
		require.NoError(t, err)
		assert.Equal(t, []domain.RetrievalCandidate{{ChunkID: 9, Score: 0.9}}, got)
		assert.True(t, s.Native())
	})

	t.Run("Other native errors are returned", func(t *testing.T) {
		native := new(MockVectorSearcher)
		native.On("Search", mock.Anything, query, 5, 0.5, domain.SearchFilter{}).
			Return(nil, errors.New("timeout")).Once()
		s := retrieval.NewFallbackSearcher(native, retrieval.NewCosineSearcher(scanner))

		_, err := s.Search(ctx, query, 5, 0.5, domain.SearchFilter{})
		assert.EqualError(t, err, "timeout")
		assert.True(t, s.Native())
	})

	t.Run("Unavailable native search switches to in-process for good", func(t *testing.T) {
		native := new(MockVectorSearcher)
		native.On("Search", mock.Anything, query, 5, 0.5, domain.SearchFilter{}).
			Return(nil, domain.ErrNativeSearchUnavailable).Once()
		s := retrieval.NewFallbackSearcher(native, retrieval.NewCosineSearcher(scanner))

		for range 2 {
			got, err := s.Search(ctx, query, 5, 0.5, domain.SearchFilter{})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, int64(1), got[0].ChunkID)
		}
		assert.False(t, s.Native())
		native.AssertNumberOfCalls(t, "Search", 1)
	})
}

func TestParseVectorSearchMode(t *testing.T) {
	m, err := retrieval.ParseVectorSearchMode("")
	require.NoError(t, err)
	assert.Equal(t, retrieval.VectorSearchAuto, m)

	m, err = retrieval.ParseVectorSearchMode("inprocess")
	require.NoError(t, err)
	assert.Equal(t, retrieval.VectorSearchInProcess, m)

	_, err = retrieval.ParseVectorSearchMode("faiss")
	assert.Error(t, err)
}
