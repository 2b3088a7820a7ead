package domain_test

import (
	"fmt"
	"strings"
	"testing"

	"legal-rag/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedSentences(n int) string {
	parts := make([]string, n)
	for i := range parts {
		// 8 words -> 10 tokens
		parts[i] = fmt.Sprintf("Sentence number %d discusses the evidence on record.", i+1)
	}
	return strings.Join(parts, " ")
}

func smallChunker(policy domain.TailPolicy, overlap, minSize int) domain.Chunker {
	return domain.NewChunker(domain.NewPatternRegistry(), domain.WordTokenCounter{}, domain.ChunkerConfig{
		ChunkSize:      100,
		Overlap:        overlap,
		MinChunkSize:   minSize,
		HeadingSpacing: domain.DefaultHeadingSpacing,
		TailPolicy:     policy,
	})
}

func TestChunker_Chunk(t *testing.T) {
	chunker := domain.NewChunker(domain.NewPatternRegistry(), nil, domain.DefaultChunkerConfig())

	t.Run("Empty input yields no chunks", func(t *testing.T) {
		chunks, err := chunker.Chunk("")
		assert.NoError(t, err)
		assert.Empty(t, chunks)

		chunks, err = chunker.Chunk("  \n\t ")
		assert.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Document without headings is one unlabeled section", func(t *testing.T) {
		body := "The appellant was convicted. The High Court affirmed the sentence."
		chunks, err := chunker.Chunk(body)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, body, chunks[0].Text)
		assert.Equal(t, domain.Span{Start: 0, End: len(body)}, chunks[0].Span)
		assert.Equal(t, domain.SectionNone, chunks[0].SectionType)
		assert.Equal(t, 0, chunks[0].SequenceIndex)
		assert.NotEmpty(t, chunks[0].Hash)
	})

	t.Run("Short only chunk is kept", func(t *testing.T) {
		chunks, err := chunker.Chunk("Tiny.")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "Tiny.", chunks[0].Text)
	})

	t.Run("Labels sections by heading", func(t *testing.T) {
		filler := strings.Repeat("The witness deposed before the trial court. ", 20)
		body := "FACTS\nThe accused was arrested on the spot. " + filler + "\nANALYSIS\nThe court examined the evidence."
		chunks, err := chunker.Chunk(body)
		require.NoError(t, err)
		require.Len(t, chunks, 2)

		assert.Equal(t, domain.SectionFacts, chunks[0].SectionType)
		assert.Contains(t, chunks[0].Text, "arrested on the spot")
		assert.NotContains(t, chunks[0].Text, "ANALYSIS")
		assert.Equal(t, 0, chunks[0].SequenceIndex)

		assert.Equal(t, domain.SectionAnalysis, chunks[1].SectionType)
		assert.Equal(t, "\nThe court examined the evidence.", chunks[1].Text)
		assert.Equal(t, 1, chunks[1].SequenceIndex)
	})

	t.Run("Headings close to the previous section are ignored", func(t *testing.T) {
		body := "FACTS\nShort statement of facts.\nBACKGROUND\nMore background text here."
		chunks, err := chunker.Chunk(body)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, domain.SectionFacts, chunks[0].SectionType)
		assert.Contains(t, chunks[0].Text, "BACKGROUND")
	})

	t.Run("Heading words inside prose are not headings", func(t *testing.T) {
		body := "The conviction was upheld and the order of the trial court stands."
		chunks, err := chunker.Chunk(body)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, domain.SectionNone, chunks[0].SectionType)
	})

	t.Run("Text before the first heading is kept as a preamble", func(t *testing.T) {
		body := "IN THE SUPREME COURT OF INDIA\nCriminal Appeal No. 12/2019\nFACTS\nThe appellant was tried."
		chunks, err := chunker.Chunk(body)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, domain.SectionNone, chunks[0].SectionType)
		assert.Contains(t, chunks[0].Text, "Criminal Appeal No. 12/2019")
		assert.Equal(t, domain.SectionFacts, chunks[1].SectionType)
	})

	t.Run("Sections tile the body except for their headings", func(t *testing.T) {
		filler := strings.Repeat("The witness deposed before the trial court. ", 80)
		body := "Criminal Appeal No. 12/2019\nFACTS\nThe accused was arrested on the spot. " + filler +
			"\nANALYSIS\nThe court examined the evidence. " + filler
		chunks, err := chunker.Chunk(body)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 3)

		covered := make([]bool, len(body))
		for _, c := range chunks {
			assert.Equal(t, body[c.Span.Start:c.Span.End], c.Text)
			for i := c.Span.Start; i < c.Span.End; i++ {
				covered[i] = true
			}
		}

		var gaps []string
		for i := 0; i < len(body); {
			if covered[i] {
				i++
				continue
			}
			j := i
			for j < len(body) && !covered[j] {
				j++
			}
			gaps = append(gaps, strings.TrimSpace(body[i:j]))
			i = j
		}
		assert.Equal(t, []string{"FACTS", "ANALYSIS"}, gaps)
	})

	t.Run("Is deterministic", func(t *testing.T) {
		body := numberedSentences(120)
		c1, err := chunker.Chunk(body)
		require.NoError(t, err)
		c2, err := chunker.Chunk(body)
		require.NoError(t, err)
		assert.Equal(t, c1, c2)
	})
}

func TestChunker_OverlapAndTiling(t *testing.T) {
	chunker := smallChunker(domain.TailMerge, 25, 20)
	body := numberedSentences(40)

	chunks, err := chunker.Chunk(body)
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	rebuilt := chunks[0].Text
	for i, c := range chunks {
		assert.Equal(t, body[c.Span.Start:c.Span.End], c.Text)
		assert.LessOrEqual(t, c.TokenCount, 100)
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, c.TokenCount, 20)
		}
		if i > 0 {
			prev := chunks[i-1]
			assert.Less(t, prev.Span.Start, c.Span.Start, "spans increase")
			assert.Less(t, c.Span.Start, prev.Span.End, "overlap starts inside the previous chunk")
			rebuilt += body[prev.Span.End:c.Span.End]
		}
	}
	assert.Equal(t, body, rebuilt)

	// two 10-token sentences fit the 25-token overlap budget
	assert.True(t, strings.HasPrefix(chunks[1].Text, "Sentence number 9 "))
}

func TestChunker_TrailingChunk(t *testing.T) {
	body := numberedSentences(11)

	t.Run("Merge folds the short tail into the previous chunk", func(t *testing.T) {
		chunks, err := smallChunker(domain.TailMerge, 0, 50).Chunk(body)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, body, chunks[0].Text)
		assert.Equal(t, 110, chunks[0].TokenCount)
	})

	t.Run("Drop discards the short tail", func(t *testing.T) {
		chunks, err := smallChunker(domain.TailDrop, 0, 50).Chunk(body)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, 100, chunks[0].TokenCount)
		assert.NotContains(t, chunks[0].Text, "number 11 discusses")
	})

	t.Run("Long enough tail is kept", func(t *testing.T) {
		chunks, err := smallChunker(domain.TailDrop, 0, 5).Chunk(body)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Sentence number 11 discusses the evidence on record.", chunks[1].Text)
	})
}

func TestChunker_DefaultTailPolicy(t *testing.T) {
	cfg := domain.DefaultChunkerConfig()
	require.Equal(t, domain.TailMerge, cfg.TailPolicy)

	// 55 sentences of 10 tokens: a 510-token window, then a 90-token tail
	// (50 of them overlap) that is below the 100-token minimum.
	body := numberedSentences(55)
	chunks, err := domain.NewChunker(domain.NewPatternRegistry(), nil, cfg).Chunk(body)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, body, chunks[0].Text)
	assert.Equal(t, 550, chunks[0].TokenCount)
}

func TestChunkerConfig_Validate(t *testing.T) {
	assert.NoError(t, domain.DefaultChunkerConfig().Validate())

	cfg := domain.DefaultChunkerConfig()
	cfg.Overlap = cfg.ChunkSize
	assert.Error(t, cfg.Validate())

	cfg = domain.DefaultChunkerConfig()
	cfg.TailPolicy = "keep"
	assert.Error(t, cfg.Validate())
}

func TestWordTokenCounter(t *testing.T) {
	counter := domain.WordTokenCounter{}
	assert.Equal(t, 0, counter.Count(""))
	assert.Equal(t, 3, counter.Count("a b c"))
	assert.Equal(t, 13, counter.Count("one two three four five six seven eight nine ten"))
}
