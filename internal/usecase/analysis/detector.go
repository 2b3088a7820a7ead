package analysis

import (
	"errors"
	"strings"
	"unicode/utf8"

	"legal-rag/internal/domain"
)

// DarkZoneConfig holds the thresholds of the "explained" heuristic.
type DarkZoneConfig struct {
	// ContextRadius is the number of bytes kept on each side of a mention.
	ContextRadius int
	// ExplanationProximity is the largest gap between an explanation phrase and the mention.
	ExplanationProximity int
	// TrailingContentMin is the trailing text length needed before definitional verbs count.
	TrailingContentMin int
	// DefinitionLookahead is how much trailing text is searched for definitional verbs.
	DefinitionLookahead int
}

// DefaultDarkZoneConfig returns the production thresholds.
func DefaultDarkZoneConfig() DarkZoneConfig {
	return DarkZoneConfig{
		ContextRadius:        500,
		ExplanationProximity: 200,
		TrailingContentMin:   100,
		DefinitionLookahead:  200,
	}
}

// Validate rejects negative thresholds.
func (c DarkZoneConfig) Validate() error {
	if c.ContextRadius < 0 || c.ExplanationProximity < 0 || c.TrailingContentMin < 0 || c.DefinitionLookahead < 0 {
		return errors.New("dark zone thresholds must not be negative")
	}
	return nil
}

const (
	maxRelatedSectionHints = 3
	maxKeyPhrasesExamined  = 5
	maxKeyPhrasesPerZone   = 3
	keyPhraseRunes         = 100
)

// DarkZoneDetector flags statute references that their surrounding text does not explain.
type DarkZoneDetector struct {
	extractor *EntityExtractor
	patterns  *domain.PatternRegistry
	cfg       DarkZoneConfig
}

// NewDarkZoneDetector creates a detector sharing the extractor's pattern registry.
func NewDarkZoneDetector(extractor *EntityExtractor, cfg DarkZoneConfig) *DarkZoneDetector {
	return &DarkZoneDetector{extractor: extractor, patterns: extractor.patterns, cfg: cfg}
}

// Detect extracts entities from text and returns its dark zones.
func (d *DarkZoneDetector) Detect(text string) []domain.DarkZone {
	return d.DetectEntities(text, d.extractor.Extract(text))
}

// DetectEntities returns the dark zones of text given its extracted entities.
func (d *DarkZoneDetector) DetectEntities(text string, entities []domain.Entity) []domain.DarkZone {
	var zones []domain.DarkZone
	for i, e := range entities {
		if e.Type != domain.EntityLegalSection {
			continue
		}

		window := d.window(text, e.Span)
		context := text[window.Start:window.End]
		mention := domain.Span{Start: e.Span.Start - window.Start, End: e.Span.End - window.Start}
		if d.isExplained(context, mention) {
			continue
		}

		var related []domain.Entity
		for j, o := range entities {
			if j != i && o.Span.Start >= window.Start && o.Span.End <= window.End {
				related = append(related, o)
			}
		}

		zones = append(zones, domain.DarkZone{
			SectionEntity:   e,
			Context:         context,
			ContextSpan:     window,
			RelatedEntities: related,
			ResolutionHints: resolutionHints(e, related),
		})
	}
	return zones
}

// window clips [span.Start-radius, span.End+radius) to text and to rune boundaries.
func (d *DarkZoneDetector) window(text string, span domain.Span) domain.Span {
	start := max(0, span.Start-d.cfg.ContextRadius)
	end := min(len(text), span.End+d.cfg.ContextRadius)
	for start < span.Start && !utf8.RuneStart(text[start]) {
		start++
	}
	for end > span.End && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	return domain.Span{Start: start, End: end}
}

func (d *DarkZoneDetector) isExplained(context string, mention domain.Span) bool {
	for _, re := range d.patterns.ExplanationIndicators {
		for _, loc := range re.FindAllStringIndex(context, -1) {
			if gap(domain.Span{Start: loc[0], End: loc[1]}, mention) < d.cfg.ExplanationProximity {
				return true
			}
		}
	}

	after := context[mention.End:]
	if utf8.RuneCountInString(strings.TrimSpace(after)) > d.cfg.TrailingContentMin {
		lookahead := strings.ToLower(domain.TruncateRunes(after, d.cfg.DefinitionLookahead))
		for _, verb := range d.patterns.DefinitionalVerbs {
			if strings.Contains(lookahead, verb) {
				return true
			}
		}
	}
	return false
}

// gap is the number of bytes between two spans, zero when they overlap.
func gap(a, b domain.Span) int {
	switch {
	case a.End <= b.Start:
		return b.Start - a.End
	case b.End <= a.Start:
		return a.Start - b.End
	default:
		return 0
	}
}

func resolutionHints(section domain.Entity, related []domain.Entity) []string {
	var siblings []string
	for _, e := range related {
		if e.Type == domain.EntityLegalSection {
			siblings = append(siblings, e.Text)
			if len(siblings) == maxRelatedSectionHints {
				break
			}
		}
	}

	relatedHint := "Retrieve provisions related to " + section.Text
	if len(siblings) > 0 {
		relatedHint = "Retrieve related sections: " + strings.Join(siblings, ", ")
	}

	return []string{
		"Retrieve full text of " + section.Text,
		relatedHint,
		"Search for judgments citing " + section.Text,
	}
}

// ResolutionQuery builds a retrieval query that targets the unexplained
// provisions: each section reference followed by key phrases of its context.
func (d *DarkZoneDetector) ResolutionQuery(zones []domain.DarkZone) string {
	var parts []string
	for _, z := range zones {
		parts = append(parts, z.SectionEntity.Text)
		phrases := d.keyPhrases(z.Context)
		if len(phrases) > maxKeyPhrasesPerZone {
			phrases = phrases[:maxKeyPhrasesPerZone]
		}
		parts = append(parts, phrases...)
	}
	return strings.Join(parts, " ")
}

func (d *DarkZoneDetector) keyPhrases(text string) []string {
	var phrases []string
	seen := make(map[string]struct{})
	for _, sentence := range d.patterns.SentenceBreak.Split(text, -1) {
		lower := strings.ToLower(sentence)
		for _, kw := range d.patterns.KeyPhraseKeywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			phrase := domain.TruncateRunes(strings.TrimSpace(sentence), keyPhraseRunes)
			if _, dup := seen[phrase]; phrase != "" && !dup {
				seen[phrase] = struct{}{}
				phrases = append(phrases, phrase)
			}
			break
		}
		if len(phrases) >= maxKeyPhrasesExamined {
			break
		}
	}
	return phrases
}
