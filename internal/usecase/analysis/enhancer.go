package analysis

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"legal-rag/internal/domain"
)

// EnhancerConfig holds the query enhancement limits.
type EnhancerConfig struct {
	LongTextThreshold int
	KeySentences      int
	EntityConfidence  float64
	ContextSnippet    int
	MaxLegalTerms     int
}

// DefaultEnhancerConfig returns the production limits.
func DefaultEnhancerConfig() EnhancerConfig {
	return EnhancerConfig{
		LongTextThreshold: 500,
		KeySentences:      5,
		EntityConfidence:  0.8,
		ContextSnippet:    150,
		MaxLegalTerms:     10,
	}
}

// Validate rejects non-positive limits.
func (c EnhancerConfig) Validate() error {
	if c.LongTextThreshold <= 0 || c.KeySentences <= 0 || c.ContextSnippet < 0 || c.MaxLegalTerms < 0 {
		return errors.New("enhancer limits must be positive")
	}
	if c.EntityConfidence < 0 || c.EntityConfidence > 1 {
		return errors.New("entity confidence must be in [0, 1]")
	}
	return nil
}

var queryEntityTypes = map[domain.EntityType]bool{
	domain.EntityLegalSection: true,
	domain.EntityCaseNumber:   true,
	domain.EntityStatute:      true,
}

// EnhancedQuery is the retrieval query built from a text and its analysis.
// EntityTerms lists the high-confidence entity texts folded into Query.
type EnhancedQuery struct {
	Query       string            `json:"enhanced_query"`
	EntityTerms []string          `json:"entity_terms"`
	LegalTerms  []string          `json:"legal_terms"`
	Entities    []domain.Entity   `json:"entities"`
	DarkZones   []domain.DarkZone `json:"dark_zones"`
}

// QueryEnhancer expands a text into a retrieval query.
type QueryEnhancer struct {
	extractor *EntityExtractor
	detector  *DarkZoneDetector
	patterns  *domain.PatternRegistry
	cfg       EnhancerConfig
}

// NewQueryEnhancer creates an enhancer over the given extractor and detector.
func NewQueryEnhancer(extractor *EntityExtractor, detector *DarkZoneDetector, cfg EnhancerConfig) *QueryEnhancer {
	return &QueryEnhancer{
		extractor: extractor,
		detector:  detector,
		patterns:  extractor.patterns,
		cfg:       cfg,
	}
}

// Enhance analyses text and builds its enhanced query.
func (q *QueryEnhancer) Enhance(text string) EnhancedQuery {
	entities := q.extractor.Extract(text)
	zones := q.detector.DetectEntities(text, entities)
	return q.Compose(text, entities, zones)
}

// Compose builds the enhanced query from an already analysed text.
func (q *QueryEnhancer) Compose(text string, entities []domain.Entity, zones []domain.DarkZone) EnhancedQuery {
	var b queryBuilder
	if utf8.RuneCountInString(text) > q.cfg.LongTextThreshold {
		for _, s := range q.KeySentences(text, q.cfg.KeySentences) {
			b.addTokens(s)
		}
	} else {
		b.addTokens(text)
	}

	var entityTerms []string
	for _, e := range entities {
		if e.Confidence >= q.cfg.EntityConfidence && queryEntityTypes[e.Type] {
			entityTerms = append(entityTerms, e.Text)
			b.addPhrase(e.Text)
		}
	}

	for _, z := range zones {
		b.addPhrase(z.SectionEntity.Text)
		b.addTokens(domain.TruncateRunes(z.Context, q.cfg.ContextSnippet))
	}

	terms := q.LegalTerms(text)
	for _, t := range terms {
		b.addTokens(t)
	}

	return EnhancedQuery{
		Query:       b.String(),
		EntityTerms: entityTerms,
		LegalTerms:  terms,
		Entities:    entities,
		DarkZones:   zones,
	}
}

type scoredSentence struct {
	text  string
	score float64
}

// KeySentences returns up to n sentences of text ranked by legal salience.
// Equal scores keep their original order.
func (q *QueryEnhancer) KeySentences(text string, n int) []string {
	var scored []scoredSentence
	for _, raw := range q.patterns.SentenceBreak.Split(text, -1) {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		scored = append(scored, scoredSentence{text: sentence, score: q.sentenceScore(sentence)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > n {
		scored = scored[:n]
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.text
	}
	return out
}

func (q *QueryEnhancer) sentenceScore(sentence string) float64 {
	lower := strings.ToLower(sentence)
	score := 0.0
	for _, kw := range q.patterns.KeySentenceKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	if words := len(strings.Fields(sentence)); words >= 10 && words <= 30 {
		score++
	}
	score += 0.5 * float64(len(q.extractor.Extract(sentence)))
	return score
}

// LegalTerms returns up to MaxLegalTerms distinct lowercase legal terms of text,
// in pattern order then position.
func (q *QueryEnhancer) LegalTerms(text string) []string {
	var terms []string
	seen := make(map[string]struct{})
	for _, re := range q.patterns.EnhancerTerms {
		for _, m := range re.FindAllString(text, -1) {
			term := strings.ToLower(strings.Join(strings.Fields(m), " "))
			if _, ok := seen[term]; ok {
				continue
			}
			if len(terms) == q.cfg.MaxLegalTerms {
				return terms
			}
			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	}
	return terms
}

// ExpandWithSynonyms appends up to two registry synonyms after each matching word.
func (q *QueryEnhancer) ExpandWithSynonyms(query string) string {
	var expanded []string
	for _, word := range strings.Fields(query) {
		expanded = append(expanded, word)
		syns := q.patterns.Synonyms[strings.ToLower(word)]
		if len(syns) > 2 {
			syns = syns[:2]
		}
		expanded = append(expanded, syns...)
	}
	return strings.Join(expanded, " ")
}

// EntityQuery joins the texts of section, statute and case-number entities.
func EntityQuery(entities []domain.Entity) string {
	var parts []string
	for _, e := range entities {
		if queryEntityTypes[e.Type] {
			parts = append(parts, e.Text)
		}
	}
	return strings.Join(parts, " ")
}

// queryBuilder joins query parts, dropping repeated tokens case-insensitively.
// Entity phrases are kept whole so a reference such as "IPC Section 302"
// stays contiguous even when its tokens appeared earlier.
type queryBuilder struct {
	seen map[string]struct{}
	out  []string
}

func (b *queryBuilder) mark(tok string) bool {
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	key := strings.ToLower(tok)
	if _, ok := b.seen[key]; ok {
		return false
	}
	b.seen[key] = struct{}{}
	return true
}

func (b *queryBuilder) addTokens(s string) {
	for _, tok := range strings.Fields(s) {
		if b.mark(tok) {
			b.out = append(b.out, tok)
		}
	}
}

func (b *queryBuilder) addPhrase(phrase string) {
	fields := strings.Fields(phrase)
	if len(fields) == 0 {
		return
	}
	norm := strings.Join(fields, " ")
	if strings.Contains(" "+strings.ToLower(b.String())+" ", " "+strings.ToLower(norm)+" ") {
		return
	}
	for _, tok := range fields {
		b.mark(tok)
	}
	b.out = append(b.out, norm)
}

func (b *queryBuilder) String() string {
	return strings.Join(b.out, " ")
}
