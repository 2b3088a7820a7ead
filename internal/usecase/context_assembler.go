package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"legal-rag/internal/domain"
)

type statuteRef struct {
	act     string
	section string
}

func referenceOf(e domain.Entity) (statuteRef, bool) {
	act, section := e.Act(), e.SectionNumber()
	if e.Type != domain.EntityLegalSection || act == "" || section == "" {
		return statuteRef{}, false
	}
	return statuteRef{act: act, section: section}, true
}

// statuteReferences lists the distinct provisions mentioned by section
// entities followed by dark zones, in that order.
func statuteReferences(entities []domain.Entity, zones []domain.DarkZone) []statuteRef {
	seen := make(map[statuteRef]struct{})
	var refs []statuteRef
	add := func(e domain.Entity) {
		ref, ok := referenceOf(e)
		if !ok {
			return
		}
		if _, dup := seen[ref]; dup {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	for _, e := range entities {
		add(e)
	}
	for _, z := range zones {
		add(z.SectionEntity)
	}
	return refs
}

// statuteLookup memoises statute store results for one request.
// Failed lookups are logged, remembered as misses and flagged.
type statuteLookup struct {
	store  domain.StatuteStore
	logger *slog.Logger
	cache  map[statuteRef]*domain.StatuteText
	failed bool
}

func newStatuteLookup(store domain.StatuteStore, logger *slog.Logger) *statuteLookup {
	return &statuteLookup{
		store:  store,
		logger: logger,
		cache:  make(map[statuteRef]*domain.StatuteText),
	}
}

func (l *statuteLookup) get(ctx context.Context, ref statuteRef) *domain.StatuteText {
	if st, ok := l.cache[ref]; ok {
		return st
	}
	st, err := l.store.GetStatuteText(ctx, ref.act, ref.section)
	if err != nil {
		l.failed = true
		l.logger.WarnContext(ctx, "statute_lookup_failed",
			slog.String("act", ref.act),
			slog.String("section_number", ref.section),
			slog.String("error", err.Error()))
		st = nil
	}
	if st != nil && strings.TrimSpace(st.Text) == "" {
		st = nil
	}
	l.cache[ref] = st
	return st
}

// forReferences looks up the first limit references and returns the ones found.
func (l *statuteLookup) forReferences(ctx context.Context, refs []statuteRef, limit int) []domain.StatuteText {
	if len(refs) > limit {
		refs = refs[:limit]
	}
	var out []domain.StatuteText
	for _, ref := range refs {
		if st := l.get(ctx, ref); st != nil {
			out = append(out, *st)
		}
	}
	return out
}

func formatStatute(st domain.StatuteText, snippet int) string {
	return fmt.Sprintf("%s: %s\n%s", st.Label(), st.Title, domain.TruncateRunes(st.Text, snippet))
}

// assembleContext renders the context blob: excerpts, legal sections, dark
// zone resolutions, then the start of the original input.
func assembleContext(cfg AnalyzeConfig, chunks []domain.RetrievedChunk, statutes []domain.StatuteText, resolutions []string, original string) string {
	var parts []string

	if len(chunks) > 0 {
		parts = append(parts, "[RETRIEVED JUDGMENT EXCERPTS]")
		for i, c := range chunks {
			caseNumber := c.CaseNumber
			if caseNumber == "" {
				caseNumber = "N/A"
			}
			info := "\nCase: " + caseNumber
			if c.JudgmentDate != "" {
				info += " | Date: " + c.JudgmentDate
			}
			if c.Court != "" {
				info += " | Court: " + c.Court
			}
			parts = append(parts, fmt.Sprintf("\n--- Excerpt %d ---%s\n%s", i+1, info, c.Text))
		}
	}

	if len(statutes) > 0 {
		sections := []string{"\n[LEGAL SECTIONS]"}
		for _, st := range statutes {
			sections = append(sections, "\n"+formatStatute(st, cfg.StatuteSnippet))
		}
		parts = append(parts, strings.Join(sections, "\n"))
	}

	if len(resolutions) > 0 {
		parts = append(parts, "\n\n[DARK ZONE RESOLUTIONS]\n"+strings.Join(resolutions, "\n\n"))
	}

	parts = append(parts, "\n[ORIGINAL QUERY/CONTEXT]\n"+domain.TruncateRunes(original, cfg.OriginalSnippet))

	return strings.Join(parts, "\n")
}
