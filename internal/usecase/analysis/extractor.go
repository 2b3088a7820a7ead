package analysis

import (
	"regexp"
	"sort"

	"legal-rag/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Confidence assigned to each scanner's matches.
const (
	ConfidenceSection    = 0.9
	ConfidenceCaseNumber = 0.95
	ConfidenceCourt      = 0.9
	ConfidenceStatute    = 0.85
	ConfidenceLegalTerm  = 0.7
	ConfidenceDate       = 0.8
)

// EntityExtractor recognises legal entities with the shared pattern registry.
// It holds no mutable state and is safe for concurrent use.
type EntityExtractor struct {
	patterns *domain.PatternRegistry
}

// NewEntityExtractor creates an extractor over patterns.
func NewEntityExtractor(patterns *domain.PatternRegistry) *EntityExtractor {
	return &EntityExtractor{patterns: patterns}
}

// Extract returns the non-overlapping entities of text ordered by start offset.
func (x *EntityExtractor) Extract(text string) []domain.Entity {
	if text == "" {
		return nil
	}

	scanners := []func(string) []domain.Entity{
		x.scanSections,
		x.scanCaseNumbers,
		x.scanCourts,
		x.scanStatutes,
		x.scanLegalTerms,
		x.scanDates,
	}

	// Scanners are independent; results are merged in scanner order so the
	// stable sort below sees the same input regardless of scheduling.
	results := make([][]domain.Entity, len(scanners))
	var g errgroup.Group
	for i, scan := range scanners {
		g.Go(func() error {
			results[i] = scan(text)
			return nil
		})
	}
	_ = g.Wait()

	var all []domain.Entity
	for _, r := range results {
		all = append(all, r...)
	}
	return resolveOverlaps(all)
}

func (x *EntityExtractor) scanSections(text string) []domain.Entity {
	var out []domain.Entity
	for _, sp := range x.patterns.Sections {
		for _, m := range sp.Regexp.FindAllStringSubmatchIndex(text, -1) {
			number := text[m[2]:m[3]]
			out = append(out, domain.Entity{
				Text:       domain.SectionLabel(sp.Act, number),
				Type:       domain.EntityLegalSection,
				Span:       domain.Span{Start: m[0], End: m[1]},
				Confidence: ConfidenceSection,
				Attributes: map[string]string{
					domain.AttrAct:           sp.Act,
					domain.AttrSectionNumber: number,
				},
			})
		}
	}
	return out
}

func (x *EntityExtractor) scanCaseNumbers(text string) []domain.Entity {
	var out []domain.Entity
	for _, re := range x.patterns.CaseNumbers {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			out = append(out, domain.Entity{
				Text:       text[m[2]:m[3]],
				Type:       domain.EntityCaseNumber,
				Span:       domain.Span{Start: m[0], End: m[1]},
				Confidence: ConfidenceCaseNumber,
				Attributes: map[string]string{domain.AttrFullMatch: text[m[0]:m[1]]},
			})
		}
	}
	return out
}

func (x *EntityExtractor) scanCourts(text string) []domain.Entity {
	return scanPlain(text, x.patterns.Courts, domain.EntityCourt, ConfidenceCourt)
}

func (x *EntityExtractor) scanStatutes(text string) []domain.Entity {
	return scanPlain(text, x.patterns.Statutes, domain.EntityStatute, ConfidenceStatute)
}

func (x *EntityExtractor) scanLegalTerms(text string) []domain.Entity {
	return scanPlain(text, x.patterns.LegalTerms, domain.EntityLegalTerm, ConfidenceLegalTerm)
}

func (x *EntityExtractor) scanDates(text string) []domain.Entity {
	return scanPlain(text, x.patterns.Dates, domain.EntityDate, ConfidenceDate)
}

func scanPlain(text string, patterns []*regexp.Regexp, typ domain.EntityType, confidence float64) []domain.Entity {
	var out []domain.Entity
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			out = append(out, domain.Entity{
				Text:       text[loc[0]:loc[1]],
				Type:       typ,
				Span:       domain.Span{Start: loc[0], End: loc[1]},
				Confidence: confidence,
			})
		}
	}
	return out
}

// resolveOverlaps keeps at most one entity per overlapping region. Entities are
// visited by start then confidence; a later entity evicts the accepted one it
// overlaps only with strictly higher confidence.
func resolveOverlaps(entities []domain.Entity) []domain.Entity {
	if len(entities) == 0 {
		return nil
	}

	sorted := make([]domain.Entity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Span.Start != sorted[j].Span.Start {
			return sorted[i].Span.Start < sorted[j].Span.Start
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	accepted := make([]domain.Entity, 0, len(sorted))
	for _, e := range sorted {
		idx := -1
		for j, a := range accepted {
			if a.Span.Overlaps(e.Span) {
				idx = j
				break
			}
		}
		switch {
		case idx < 0:
			accepted = append(accepted, e)
		case e.Confidence > accepted[idx].Confidence:
			accepted = append(accepted[:idx], accepted[idx+1:]...)
			accepted = append(accepted, e)
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Span.Start < accepted[j].Span.Start
	})
	return accepted
}

