package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"legal-rag/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJudgmentChunkRepository_GetChunks(t *testing.T) {
	ctx := context.Background()

	t.Run("Joins judgment metadata", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewJudgmentChunkRepository(mock)

		date := time.Date(2020, 3, 12, 0, 0, 0, 0, time.UTC)
		page := 4
		mock.ExpectQuery(regexp.QuoteMeta(getChunksQuery)).
			WithArgs([]int64{2, 1}).
			WillReturnRows(pgxmock.NewRows([]string{"id", "judgment_id", "content", "section_type", "page_number", "case_number", "title", "judgment_date", "court"}).
				AddRow(int64(1), int64(10), "first", "facts", &page, "1523/2019", "State v. Ram", &date, "Supreme Court of India").
				AddRow(int64(2), int64(11), "second", "", (*int)(nil), "", "", (*time.Time)(nil), "")).
			RowsWillBeClosed()

		got, err := repo.GetChunks(ctx, []int64{2, 1})
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, domain.RetrievedChunk{
			ChunkID: 1, JudgmentID: 10, Text: "first", SectionType: domain.SectionFacts, PageNumber: &page,
			CaseNumber: "1523/2019", Title: "State v. Ram", JudgmentDate: "2020-03-12", Court: "Supreme Court of India",
		}, got[0])
		assert.Empty(t, got[1].JudgmentDate)
		assert.Nil(t, got[1].PageNumber)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No ids skip the query", func(t *testing.T) {
		mock := newMockPool(t)
		got, err := NewJudgmentChunkRepository(mock).GetChunks(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJudgmentChunkRepository_BulkInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("Assigns sequence ids then copies rows", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewJudgmentChunkRepository(mock)

		chunks := []domain.JudgmentChunk{
			{JudgmentID: 7, ChunkIndex: 0, Content: "a", Embedding: pgvector.NewVector([]float32{1, 0})},
			{JudgmentID: 7, ChunkIndex: 1, Content: "b", SectionType: domain.SectionAnalysis, Embedding: pgvector.NewVector([]float32{0, 1})},
		}

		mock.ExpectQuery(regexp.QuoteMeta(nextChunkIDsQuery)).
			WithArgs(2).
			WillReturnRows(pgxmock.NewRows([]string{"nextval"}).AddRow(int64(40)).AddRow(int64(41)))
		mock.ExpectCopyFrom(pgx.Identifier{"judgment_chunks"}, judgmentChunkColumns).
			WillReturnResult(2)

		require.NoError(t, repo.BulkInsert(ctx, chunks))
		assert.Equal(t, int64(40), chunks[0].ID)
		assert.Equal(t, int64(41), chunks[1].ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Copy failure is wrapped", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewJudgmentChunkRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(nextChunkIDsQuery)).
			WithArgs(1).
			WillReturnRows(pgxmock.NewRows([]string{"nextval"}).AddRow(int64(1)))
		mock.ExpectCopyFrom(pgx.Identifier{"judgment_chunks"}, judgmentChunkColumns).
			WillReturnError(errors.New("disk full"))

		err := repo.BulkInsert(ctx, []domain.JudgmentChunk{{Content: "a"}})
		require.ErrorContains(t, err, "failed to bulk insert chunks")
	})

	t.Run("Empty input is a no-op", func(t *testing.T) {
		mock := newMockPool(t)
		require.NoError(t, NewJudgmentChunkRepository(mock).BulkInsert(ctx, nil))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJudgmentChunkRepository_ListLexicalDocuments(t *testing.T) {
	mock := newMockPool(t)
	repo := NewJudgmentChunkRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(listLexicalDocumentsQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "content"}).
			AddRow(int64(1), "bail granted").
			AddRow(int64(2), "appeal dismissed"))

	got, err := repo.ListLexicalDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.LexicalDocument{{ChunkID: 1, Text: "bail granted"}, {ChunkID: 2, Text: "appeal dismissed"}}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJudgmentChunkRepository_Search(t *testing.T) {
	ctx := context.Background()
	query := []float32{1, 0}

	t.Run("Native similarity search", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewJudgmentChunkRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(searchChunksQuery)).
			WithArgs(pgvector.NewVector(query), 5, int64(3), 0.5).
			WillReturnRows(pgxmock.NewRows([]string{"id", "similarity"}).
				AddRow(int64(8), 0.97).
				AddRow(int64(2), 0.61))

		got, err := repo.Search(ctx, query, 5, 0.5, domain.SearchFilter{JudgmentID: 3})
		require.NoError(t, err)
		assert.Equal(t, []domain.RetrievalCandidate{{ChunkID: 8, Score: 0.97}, {ChunkID: 2, Score: 0.61}}, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing operator reports native search unavailable", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewJudgmentChunkRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(searchChunksQuery)).
			WithArgs(pgvector.NewVector(query), 5, int64(0), 0.5).
			WillReturnError(&pgconn.PgError{Code: "42883", Message: "operator does not exist: vector <=> vector"})

		_, err := repo.Search(ctx, query, 5, 0.5, domain.SearchFilter{})
		assert.ErrorIs(t, err, domain.ErrNativeSearchUnavailable)
	})

	t.Run("Other failures are plain errors", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewJudgmentChunkRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(searchChunksQuery)).
			WithArgs(pgvector.NewVector(query), 5, int64(0), 0.5).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.Search(ctx, query, 5, 0.5, domain.SearchFilter{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNativeSearchUnavailable)
	})
}

func TestJudgmentChunkRepository_ScanEmbeddings(t *testing.T) {
	mock := newMockPool(t)
	repo := NewJudgmentChunkRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(scanEmbeddingsQuery)).
		WithArgs(int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "embedding"}).
			AddRow(int64(1), "[1,0]").
			AddRow(int64(2), "[0.5,0.5]"))

	got := map[int64][]float32{}
	err := repo.ScanEmbeddings(context.Background(), domain.SearchFilter{}, func(id int64, emb []float32) error {
		got[id] = emb
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[int64][]float32{1: {1, 0}, 2: {0.5, 0.5}}, got)
}

func TestJudgmentChunkRepository_SupportsNativeSearch(t *testing.T) {
	mock := newMockPool(t)
	repo := NewJudgmentChunkRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(vectorExtensionQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.SupportsNativeSearch(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
