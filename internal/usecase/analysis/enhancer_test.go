package analysis_test

import (
	"strings"
	"testing"

	"legal-rag/internal/domain"
	"legal-rag/internal/usecase/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnhancer(cfg analysis.EnhancerConfig) *analysis.QueryEnhancer {
	x, d := newDetector(analysis.DefaultDarkZoneConfig())
	return analysis.NewQueryEnhancer(x, d, cfg)
}

func tokenSet(query string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(query) {
		set[strings.ToLower(tok)] = true
	}
	return set
}

func TestQueryEnhancer_Enhance(t *testing.T) {
	q := newEnhancer(analysis.DefaultEnhancerConfig())

	t.Run("Section reference is folded into the query", func(t *testing.T) {
		got := q.Enhance("The appellant was convicted under Section 302 of the Indian Penal Code.")

		require.Len(t, got.Entities, 1)
		require.Len(t, got.DarkZones, 1)
		assert.Equal(t, []string{"IPC Section 302"}, got.EntityTerms)
		assert.Equal(t, "The appellant was convicted under Section 302 of the Indian Penal Code. IPC Section 302", got.Query)
		assert.Contains(t, got.Query, "IPC Section 302")
	})

	t.Run("High confidence entity tokens always survive", func(t *testing.T) {
		for _, text := range []string{
			richJudgment,
			"Bail in Crl.A. No. 45/2017 under u/s 438 Cr.P.C.",
			"Article 21 of the Constitution and Section 27 of the Evidence Act",
		} {
			got := q.Enhance(text)
			tokens := tokenSet(got.Query)
			assert.NotEmpty(t, got.EntityTerms)
			for _, term := range got.EntityTerms {
				for _, tok := range strings.Fields(term) {
					assert.True(t, tokens[strings.ToLower(tok)], "%q missing from %q", tok, got.Query)
				}
			}
		}
	})

	t.Run("Long text is reduced to key sentences", func(t *testing.T) {
		text := strings.Repeat("Nothing relevant happened here. ", 20) + "The accused was convicted under Section 302 IPC."
		got := q.Enhance(text)

		assert.True(t, strings.HasPrefix(got.Query, "The accused was convicted under Section 302 IPC Nothing relevant happened here"), got.Query)
		assert.Equal(t, 1, strings.Count(got.Query, "Nothing"))
	})

	t.Run("Tokens are deduplicated case-insensitively", func(t *testing.T) {
		got := q.Compose("Bail bail BAIL granted", nil, nil)
		assert.Equal(t, "Bail granted", got.Query)
		assert.Equal(t, []string{"bail"}, got.LegalTerms)
	})

	t.Run("Dark zone context is appended", func(t *testing.T) {
		zone := domain.DarkZone{
			SectionEntity: domain.Entity{Text: "IPC Section 376", Type: domain.EntityLegalSection},
			Context:       "  custodial interrogation was sought  ",
		}
		got := q.Compose("hearing", nil, []domain.DarkZone{zone})
		assert.Equal(t, "hearing IPC Section 376 custodial interrogation was sought", got.Query)
	})
}

func TestQueryEnhancer_KeySentences(t *testing.T) {
	q := newEnhancer(analysis.DefaultEnhancerConfig())
	text := "Nothing relevant happened here. The court heard the appeal. Rain fell. The court noted the appeal."

	assert.Equal(t, []string{"The court heard the appeal", "The court noted the appeal"}, q.KeySentences(text, 2))
	assert.Len(t, q.KeySentences(text, 10), 4)
	assert.Empty(t, q.KeySentences("  ", 3))
}

func TestQueryEnhancer_LegalTerms(t *testing.T) {
	text := "The prosecution examined the witness and the accused sought bail. Bail was refused; the Accused appealed."

	q := newEnhancer(analysis.DefaultEnhancerConfig())
	assert.Equal(t, []string{"bail", "prosecution", "accused", "witness"}, q.LegalTerms(text))

	cfg := analysis.DefaultEnhancerConfig()
	cfg.MaxLegalTerms = 2
	assert.Equal(t, []string{"bail", "prosecution"}, newEnhancer(cfg).LegalTerms(text))

	assert.Equal(t, []string{"petition", "habeas corpus"}, q.LegalTerms("a petition for Habeas   Corpus relief"))
}

func TestQueryEnhancer_Helpers(t *testing.T) {
	q := newEnhancer(analysis.DefaultEnhancerConfig())

	assert.Equal(t, "Murder homicide killing and theft larceny robbery", q.ExpandWithSynonyms("Murder and theft"))
	assert.Equal(t, "no synonyms here", q.ExpandWithSynonyms("no synonyms here"))

	entities := newExtractor().Extract("Crl.A. No. 45/2017 under Section 302 IPC on 12/03/2019 by the District Court")
	assert.Equal(t, "45/2017 IPC Section 302", analysis.EntityQuery(entities))
}

func TestEnhancerConfig_Validate(t *testing.T) {
	assert.NoError(t, analysis.DefaultEnhancerConfig().Validate())

	cfg := analysis.DefaultEnhancerConfig()
	cfg.EntityConfidence = 1.5
	assert.Error(t, cfg.Validate())
}
