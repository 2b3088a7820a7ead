package domain

import "regexp"

// PatternRegistryVersion identifies the pattern tables below. Bump it whenever a
// pattern changes so stored entities can be traced back to the rules that produced them.
const PatternRegistryVersion = "legal-patterns/v1"

// Canonical act tags attached to LegalSection entities.
const (
	ActIPC          = "IPC"
	ActCrPC         = "CrPC"
	ActEvidenceAct  = "Evidence_Act"
	ActConstitution = "Constitution"
)

// SectionPattern recognises a section reference for one act. Group 1 is the section number.
type SectionPattern struct {
	Act    string
	Regexp *regexp.Regexp
}

// HeadingPattern recognises a judgment section heading.
type HeadingPattern struct {
	SectionType SectionType
	Regexp      *regexp.Regexp
}

// PatternRegistry is the single set of compiled legal patterns shared by the
// chunker, the entity extractor, the dark-zone detector and the query enhancer.
// A registry is immutable once built and safe for concurrent use.
type PatternRegistry struct {
	version string

	Sections    []SectionPattern
	CaseNumbers []*regexp.Regexp
	Courts      []*regexp.Regexp
	Statutes    []*regexp.Regexp
	LegalTerms  []*regexp.Regexp
	Dates       []*regexp.Regexp

	Headings []HeadingPattern

	ExplanationIndicators []*regexp.Regexp
	DefinitionalVerbs     []string
	KeyPhraseKeywords     []string

	SentenceBreak       *regexp.Regexp
	KeySentenceKeywords []string
	EnhancerTerms       []*regexp.Regexp
	Synonyms            map[string][]string

	MetadataCaseNumbers []*regexp.Regexp
	MetadataParties     *regexp.Regexp
	MetadataDate        *regexp.Regexp
	MetadataJudges      []*regexp.Regexp
}

// NewPatternRegistry compiles the default legal pattern tables.
func NewPatternRegistry() *PatternRegistry {
	return &PatternRegistry{
		version: PatternRegistryVersion,
		Sections: []SectionPattern{
			{ActIPC, ci(`Section\s+(\d+[A-Z]?)\s+of\s+the\s+Indian\s+Penal\s+Code`)},
			{ActIPC, ci(`Section\s+(\d+[A-Z]?)\s+IPC`)},
			{ActIPC, ci(`IPC\s+Section\s+(\d+[A-Z]?)`)},
			{ActIPC, ci(`u/s\.?\s*(\d+[A-Z]?)\s+IPC`)},
			{ActIPC, ci(`under\s+Section\s+(\d+[A-Z]?)\s+IPC`)},
			{ActCrPC, ci(`Section\s+(\d+[A-Z]?)\s+of\s+the\s+Code\s+of\s+Criminal\s+Procedure`)},
			{ActCrPC, ci(`Section\s+(\d+[A-Z]?)\s+of\s+Cr\.?P\.?C\.?`)},
			{ActCrPC, ci(`Cr\.?P\.?C\.?\s+Section\s+(\d+[A-Z]?)`)},
			{ActCrPC, ci(`u/s\.?\s*(\d+[A-Z]?)\s+Cr\.?P\.?C\.?`)},
			{ActEvidenceAct, ci(`Section\s+(\d+[A-Z]?)\s+of\s+the\s+Evidence\s+Act`)},
			{ActEvidenceAct, ci(`Evidence\s+Act\s+Section\s+(\d+[A-Z]?)`)},
			{ActConstitution, ci(`Article\s+(\d+[A-Z]?)\s+of\s+the\s+Constitution`)},
			{ActConstitution, ci(`Constitution\s+Article\s+(\d+[A-Z]?)`)},
		},
		CaseNumbers: []*regexp.Regexp{
			ci(`Crl\.?\s*A\.?\s*No\.?\s*(\d+/\d+)`),
			ci(`Criminal\s+Appeal\s+No\.?\s*(\d+/\d+)`),
			ci(`W\.?P\.?\s*\(?C\)?\s*No\.?\s*(\d+/\d+)`),
			ci(`Writ\s+Petition\s+No\.?\s*(\d+/\d+)`),
			ci(`SLP\s*\(?C\)?\s*No\.?\s*(\d+/\d+)`),
			ci(`Special\s+Leave\s+Petition\s+No\.?\s*(\d+/\d+)`),
			ci(`Civil\s+Appeal\s+No\.?\s*(\d+/\d+)`),
			ci(`Cr\.?\s*No\.?\s*(\d+/\d+)`),
		},
		Courts: []*regexp.Regexp{
			ci(`Supreme\s+Court\s+of\s+India`),
			ci(`High\s+Court\s+of\s+([A-Z][a-z]+)`),
			ci(`District\s+Court`),
			ci(`Sessions\s+Court`),
			ci(`Magistrate\s+Court`),
		},
		Statutes: []*regexp.Regexp{
			ci(`Indian\s+Penal\s+Code`),
			ci(`Code\s+of\s+Criminal\s+Procedure`),
			ci(`Evidence\s+Act`),
			ci(`Constitution\s+of\s+India`),
			ci(`Criminal\s+Procedure\s+Code`),
		},
		LegalTerms: []*regexp.Regexp{
			ci(`\bAcquittal\b`),
			ci(`\bConviction\b`),
			ci(`\bBail\b`),
			ci(`\bAppeal\b`),
			ci(`\bRevision\b`),
			ci(`\bPetition\b`),
			ci(`\bWrit\b`),
			ci(`\bHabeas\s+Corpus\b`),
			ci(`\bMandamus\b`),
		},
		Dates: []*regexp.Regexp{
			ci(`\d{1,2}[./-]\d{1,2}[./-]\d{4}`),
			ci(`\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}`),
		},
		Headings: []HeadingPattern{
			{SectionFacts, heading(`FACTS|FACTUAL\s+BACKGROUND|BACKGROUND|CASE\s+FACTS`)},
			{SectionAnalysis, heading(`ANALYSIS|DISCUSSION|REASONING|HELD|OBSERVATION`)},
			{SectionConclusion, heading(`CONCLUSION|DECISION|ORDER|JUDGMENT`)},
			{SectionHeadnote, heading(`HEADNOTE|SYNOPSIS|SUMMARY`)},
			{SectionIssue, heading(`ISSUES|ISSUE|QUESTION`)},
		},
		ExplanationIndicators: []*regexp.Regexp{
			ci(`as\s+provided\s+in`),
			ci(`according\s+to`),
			ci(`under\s+the\s+provisions\s+of`),
			ci(`as\s+per`),
			ci(`in\s+accordance\s+with`),
			ci(`which\s+states`),
			ci(`which\s+provides`),
			ci(`which\s+reads`),
			ci(`section.*provides`),
			ci(`section.*states`),
			ci(`as\s+defined\s+in`),
		},
		DefinitionalVerbs: []string{"means", "refers", "includes", "defines"},
		KeyPhraseKeywords: []string{
			"section", "act", "code", "provision", "statute",
			"judgment", "court", "accused", "conviction", "appeal",
		},
		SentenceBreak: regexp.MustCompile(`[.!?]+`),
		KeySentenceKeywords: []string{
			"section", "act", "code", "judgment", "court",
			"conviction", "acquittal", "appeal", "statute",
		},
		EnhancerTerms: []*regexp.Regexp{
			ci(`\b(?:Acquittal|Conviction|Bail|Appeal|Revision|Petition|Writ)\b`),
			ci(`\b(?:Habeas\s+Corpus|Mandamus|Certiorari|Prohibition)\b`),
			ci(`\b(?:Prosecution|Defense|Accused|Complainant|Respondent)\b`),
			ci(`\b(?:Evidence|Witness|Testimony|Examination)\b`),
			ci(`\b(?:Punishment|Sentence|Fine|Imprisonment)\b`),
		},
		Synonyms: map[string][]string{
			"murder":     {"homicide", "killing"},
			"theft":      {"larceny", "robbery"},
			"fraud":      {"deceit", "cheating"},
			"assault":    {"battery", "attack"},
			"bail":       {"bail bond", "release"},
			"conviction": {"guilty verdict", "sentence"},
			"acquittal":  {"not guilty", "discharge"},
		},
		MetadataCaseNumbers: []*regexp.Regexp{
			ci(`(Crl\.?A\.?\s*No\.?\s*\d+/\d+)`),
			ci(`(Criminal\s+Appeal\s+No\.?\s*\d+/\d+)`),
			ci(`(W\.?P\.?\s*\(?C\)?\s*No\.?\s*\d+/\d+)`),
			ci(`(SLP\s*\(?C\)?\s*No\.?\s*\d+/\d+)`),
		},
		MetadataParties: ci(`([A-Z][^.\n]{3,100}?)\s+(?:v\.|vs\.?|versus)\s+([A-Z][^.\n]{3,100})`),
		MetadataDate:    regexp.MustCompile(`(\d{1,2}[./-]\d{1,2}[./-]\d{4})`),
		MetadataJudges: []*regexp.Regexp{
			regexp.MustCompile(`HON'?BLE\s+MR\.?\s+JUSTICE\s+([A-Z][A-Z\s.]+)`),
			regexp.MustCompile(`JUSTICE\s+([A-Z][A-Z\s.]+)`),
		},
	}
}

// Version returns the registry version tag.
func (r *PatternRegistry) Version() string {
	return r.version
}

func ci(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

// heading anchors a heading alternative to the start of a line.
func heading(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*(?:` + alternatives + `)\b[ \t]*:?`)
}
