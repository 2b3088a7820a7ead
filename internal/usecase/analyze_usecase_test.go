package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"legal-rag/internal/domain"
	"legal-rag/internal/usecase"
	"legal-rag/internal/usecase/analysis"
	"legal-rag/internal/usecase/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const convictionText = "The appellant was convicted under Section 302 of the Indian Penal Code."

var murderStatute = &domain.StatuteText{
	Act:           "IPC",
	SectionNumber: "302",
	Title:         "Punishment for murder",
	Text:          "Whoever commits murder shall be punished with death, or imprisonment for life.",
}

type analyzeDeps struct {
	hybrid   *MockHybridSearcher
	chunks   *MockJudgmentChunkRepository
	statutes *MockStatuteStore
}

func newAnalyzeUsecase(cfg usecase.AnalyzeConfig) (usecase.AnalyzeUsecase, analyzeDeps) {
	patterns := domain.NewPatternRegistry()
	extractor := analysis.NewEntityExtractor(patterns)
	detector := analysis.NewDarkZoneDetector(extractor, analysis.DefaultDarkZoneConfig())
	enhancer := analysis.NewQueryEnhancer(extractor, detector, analysis.DefaultEnhancerConfig())

	deps := analyzeDeps{
		hybrid:   new(MockHybridSearcher),
		chunks:   new(MockJudgmentChunkRepository),
		statutes: new(MockStatuteStore),
	}
	uc := usecase.NewAnalyzeUsecase(extractor, detector, enhancer, deps.hybrid, deps.chunks, deps.statutes, cfg, discardLogger())
	return uc, deps
}

func fused(ids ...int64) []domain.FusedResult {
	out := make([]domain.FusedResult, len(ids))
	for i, id := range ids {
		out[i] = domain.FusedResult{ChunkID: id, RRFScore: 1 / float64(61+i)}
	}
	return out
}

func TestAnalyzeUsecase_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("Assembles excerpts, sections and dark zone resolutions", func(t *testing.T) {
		uc, deps := newAnalyzeUsecase(usecase.DefaultAnalyzeConfig())

		deps.hybrid.On("Retrieve", mock.Anything, mock.MatchedBy(func(q string) bool {
			return strings.Contains(q, "IPC Section 302")
		}), 6, domain.SearchFilter{}).
			Return(retrieval.HybridResult{Results: fused(2, 1, 7, 9)}, nil).Once()
		deps.chunks.On("GetChunks", mock.Anything, []int64{2, 1, 7}).
			Return([]domain.RetrievedChunk{
				{ChunkID: 1, JudgmentID: 10, Text: "Chunk one text"},
				{ChunkID: 2, JudgmentID: 11, Text: "Chunk two text", CaseNumber: "Crl.A. 1/2019", JudgmentDate: "2019-02-01", Court: "Supreme Court"},
			}, nil).Once()
		deps.statutes.On("GetStatuteText", mock.Anything, "IPC", "302").Return(murderStatute, nil).Once()

		got, err := uc.Execute(ctx, usecase.NewAnalyzeInput(convictionText))
		require.NoError(t, err)

		assert.NotEmpty(t, got.RequestID)
		require.Len(t, got.Entities, 1)
		require.Len(t, got.DarkZones, 1)
		assert.Contains(t, got.EnhancedQuery, "IPC Section 302")
		assert.Empty(t, got.Degraded)

		require.Len(t, got.RetrievedChunks, 2)
		assert.Equal(t, int64(2), got.RetrievedChunks[0].ChunkID)
		assert.Equal(t, int64(1), got.RetrievedChunks[1].ChunkID)
		assert.InDelta(t, 1.0/61, got.RetrievedChunks[0].RRFScore, 1e-12)
		assert.InDelta(t, 1.0/62, got.RetrievedChunks[1].RRFScore, 1e-12)
		assert.Equal(t, []domain.StatuteText{*murderStatute}, got.Statutes)

		statute := "IPC Section 302: Punishment for murder\nWhoever commits murder shall be punished with death, or imprisonment for life."
		want := strings.Join([]string{
			"[RETRIEVED JUDGMENT EXCERPTS]",
			"\n--- Excerpt 1 ---\nCase: Crl.A. 1/2019 | Date: 2019-02-01 | Court: Supreme Court\nChunk two text",
			"\n--- Excerpt 2 ---\nCase: N/A\nChunk one text",
			"\n[LEGAL SECTIONS]\n\n" + statute,
			"\n\n[DARK ZONE RESOLUTIONS]\nDark Zone: IPC Section 302\nResolution: " + statute,
			"\n[ORIGINAL QUERY/CONTEXT]\n" + convictionText,
		}, "\n")
		assert.Equal(t, want, got.AssembledText)

		deps.hybrid.AssertExpectations(t)
		deps.chunks.AssertExpectations(t)
		deps.statutes.AssertExpectations(t)
	})

	t.Run("Top K widens the retrieval pool and forwards the judgment filter", func(t *testing.T) {
		uc, deps := newAnalyzeUsecase(usecase.DefaultAnalyzeConfig())

		deps.hybrid.On("Retrieve", mock.Anything, mock.Anything, 10, domain.SearchFilter{JudgmentID: 42}).
			Return(retrieval.HybridResult{Results: fused(1, 2, 3, 4, 5, 6, 7)}, nil).Once()
		deps.chunks.On("GetChunks", mock.Anything, []int64{1, 2, 3, 4, 5}).
			Return([]domain.RetrievedChunk{{ChunkID: 5, Text: "five"}, {ChunkID: 3, Text: "three"}}, nil).Once()

		in := usecase.AnalyzeInput{Text: "Bail was granted by the court.", TopK: 5, JudgmentID: 42}
		got, err := uc.Execute(ctx, in)
		require.NoError(t, err)

		require.Len(t, got.RetrievedChunks, 2)
		assert.Equal(t, int64(3), got.RetrievedChunks[0].ChunkID)
		assert.Equal(t, int64(5), got.RetrievedChunks[1].ChunkID)
		assert.NotContains(t, got.AssembledText, "[LEGAL SECTIONS]")
		deps.statutes.AssertNotCalled(t, "GetStatuteText", mock.Anything, mock.Anything, mock.Anything)
		deps.hybrid.AssertExpectations(t)
	})

	t.Run("Invalid input is rejected before retrieval", func(t *testing.T) {
		uc, deps := newAnalyzeUsecase(usecase.DefaultAnalyzeConfig())

		for _, in := range []usecase.AnalyzeInput{
			{Text: "   "},
			{Text: convictionText, TopK: -1},
			{Text: convictionText, TopK: 51},
		} {
			_, err := uc.Execute(ctx, in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		}
		deps.hybrid.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Retrieval failure fails the request", func(t *testing.T) {
		uc, deps := newAnalyzeUsecase(usecase.DefaultAnalyzeConfig())

		deps.hybrid.On("Retrieve", mock.Anything, mock.Anything, 6, domain.SearchFilter{}).
			Return(retrieval.HybridResult{}, domain.ErrRetrievalUnavailable).Once()

		got, err := uc.Execute(ctx, usecase.NewAnalyzeInput(convictionText))
		assert.Nil(t, got)
		assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
	})

	t.Run("Degraded retrievers and stores are reported", func(t *testing.T) {
		uc, deps := newAnalyzeUsecase(usecase.DefaultAnalyzeConfig())

		deps.hybrid.On("Retrieve", mock.Anything, mock.Anything, 6, domain.SearchFilter{}).
			Return(retrieval.HybridResult{Results: fused(4), Degraded: []string{retrieval.SourceVector}}, nil).Once()
		deps.chunks.On("GetChunks", mock.Anything, []int64{4}).
			Return(nil, errors.New("connection refused")).Once()
		deps.statutes.On("GetStatuteText", mock.Anything, "IPC", "302").
			Return(nil, errors.New("connection refused")).Once()

		got, err := uc.Execute(ctx, usecase.NewAnalyzeInput(convictionText))
		require.NoError(t, err)

		assert.Equal(t, []string{retrieval.SourceVector, usecase.DegradedChunkStore, usecase.DegradedStatuteStore}, got.Degraded)
		assert.Empty(t, got.RetrievedChunks)
		assert.Empty(t, got.Statutes)
		assert.Equal(t, "\n[ORIGINAL QUERY/CONTEXT]\n"+convictionText, got.AssembledText)
		deps.statutes.AssertExpectations(t)
	})

	t.Run("Statute retrieval can be disabled", func(t *testing.T) {
		uc, deps := newAnalyzeUsecase(usecase.DefaultAnalyzeConfig())

		deps.hybrid.On("Retrieve", mock.Anything, mock.Anything, 6, domain.SearchFilter{}).
			Return(retrieval.HybridResult{}, nil).Once()

		in := usecase.NewAnalyzeInput(convictionText)
		in.RetrieveStatutes = false
		got, err := uc.Execute(ctx, in)
		require.NoError(t, err)

		require.Len(t, got.DarkZones, 1)
		assert.NotContains(t, got.AssembledText, "[DARK ZONE RESOLUTIONS]")
		deps.statutes.AssertNotCalled(t, "GetStatuteText", mock.Anything, mock.Anything, mock.Anything)
		deps.chunks.AssertNotCalled(t, "GetChunks", mock.Anything, mock.Anything)
	})

	t.Run("Statute lookups are capped and memoised", func(t *testing.T) {
		uc, deps := newAnalyzeUsecase(usecase.DefaultAnalyzeConfig())

		text := "Charges under Section 302 IPC; Section 304 IPC; Section 307 IPC; Section 323 IPC; Section 324 IPC; Section 325 IPC."
		deps.hybrid.On("Retrieve", mock.Anything, mock.Anything, 6, domain.SearchFilter{}).
			Return(retrieval.HybridResult{}, nil).Once()
		deps.statutes.On("GetStatuteText", mock.Anything, "IPC", mock.Anything).Return(nil, nil)

		got, err := uc.Execute(ctx, usecase.NewAnalyzeInput(text))
		require.NoError(t, err)

		assert.Len(t, domain.FilterEntities(got.Entities, domain.EntityLegalSection), 6)
		assert.Empty(t, got.Statutes)
		assert.Empty(t, got.Degraded)
		deps.statutes.AssertNumberOfCalls(t, "GetStatuteText", 5)
		deps.statutes.AssertCalled(t, "GetStatuteText", mock.Anything, "IPC", "302")
		deps.statutes.AssertNotCalled(t, "GetStatuteText", mock.Anything, "IPC", "325")
	})
}
