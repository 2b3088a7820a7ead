package usecase_test

import (
	"context"
	"io"
	"log/slog"

	"legal-rag/internal/domain"
	"legal-rag/internal/usecase/retrieval"

	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- Mocks ---

type MockJudgmentRepository struct {
	mock.Mock
}

func (m *MockJudgmentRepository) FindExisting(ctx context.Context, caseNumber, fileHash string) (int64, error) {
	args := m.Called(ctx, caseNumber, fileHash)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJudgmentRepository) Create(ctx context.Context, j *domain.Judgment) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *MockJudgmentRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockJudgmentChunkRepository struct {
	mock.Mock
}

func (m *MockJudgmentChunkRepository) GetChunks(ctx context.Context, ids []int64) ([]domain.RetrievedChunk, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedChunk), args.Error(1)
}

func (m *MockJudgmentChunkRepository) BulkInsert(ctx context.Context, chunks []domain.JudgmentChunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockJudgmentChunkRepository) ListLexicalDocuments(ctx context.Context) ([]domain.LexicalDocument, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LexicalDocument), args.Error(1)
}

func (m *MockJudgmentChunkRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockNamedEntityRepository struct {
	mock.Mock
}

func (m *MockNamedEntityRepository) BulkInsert(ctx context.Context, records []domain.NamedEntityRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

type MockStatuteStore struct {
	mock.Mock
}

func (m *MockStatuteStore) GetStatuteText(ctx context.Context, act, sectionNumber string) (*domain.StatuteText, error) {
	args := m.Called(ctx, act, sectionNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatuteText), args.Error(1)
}

func (m *MockStatuteStore) UpsertStatute(ctx context.Context, s domain.StatuteText) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

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
	return "mock-embedder"
}

type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	args := m.Called(ctx, prompt, maxTokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *MockLLMClient) Version() string {
	return "mock-llm"
}

type MockHybridSearcher struct {
	mock.Mock
}

func (m *MockHybridSearcher) Retrieve(ctx context.Context, query string, topN int, filter domain.SearchFilter) (retrieval.HybridResult, error) {
	args := m.Called(ctx, query, topN, filter)
	return args.Get(0).(retrieval.HybridResult), args.Error(1)
}

// passthroughTx runs fn directly and counts calls.
type passthroughTx struct {
	calls int
}

func (p *passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}
