package retrieval_test

import (
	"context"

	"legal-rag/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockVectorEncoder struct {
	mock.Mock
}

func (m *MockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockVectorEncoder) Version() string {
	return "mock"
}

type MockVectorSearcher struct {
	mock.Mock
}

func (m *MockVectorSearcher) Search(ctx context.Context, query []float32, topN int, floor float64, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error) {
	args := m.Called(ctx, query, topN, floor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalCandidate), args.Error(1)
}

type MockLexicalRetriever struct {
	mock.Mock
}

func (m *MockLexicalRetriever) Retrieve(query string, topN int) ([]domain.RetrievalCandidate, error) {
	args := m.Called(query, topN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalCandidate), args.Error(1)
}

type MockSemanticRetriever struct {
	mock.Mock
}

func (m *MockSemanticRetriever) Retrieve(ctx context.Context, query string, topN int, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error) {
	args := m.Called(ctx, query, topN, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalCandidate), args.Error(1)
}

// memoryScanner serves embeddings from a map, in ascending id order.
type memoryScanner struct {
	ids        []int64
	embeddings map[int64][]float32
	err        error
	filters    []domain.SearchFilter
}

func (s *memoryScanner) ScanEmbeddings(_ context.Context, filter domain.SearchFilter, fn func(int64, []float32) error) error {
	s.filters = append(s.filters, filter)
	if s.err != nil {
		return s.err
	}
	for _, id := range s.ids {
		if err := fn(id, s.embeddings[id]); err != nil {
			return err
		}
	}
	return nil
}
