package domain

// DarkZone is a statute reference left unexplained in its surrounding text.
type DarkZone struct {
	SectionEntity   Entity   `json:"section_entity"`
	Context         string   `json:"context"`
	ContextSpan     Span     `json:"context_span"`
	RelatedEntities []Entity `json:"related_entities"`
	ResolutionHints []string `json:"resolution_hints"`
}

// RetrievalCandidate is a single retriever's result before fusion.
type RetrievalCandidate struct {
	ChunkID int64   `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// FusedResult is a chunk ranked by reciprocal rank fusion.
type FusedResult struct {
	ChunkID  int64   `json:"chunk_id"`
	RRFScore float64 `json:"rrf_score"`
}

// RetrievedChunk is a fused chunk resolved against storage for display.
type RetrievedChunk struct {
	ChunkID      int64       `json:"chunk_id"`
	JudgmentID   int64       `json:"judgment_id"`
	Text         string      `json:"text"`
	SectionType  SectionType `json:"section_type,omitempty"`
	PageNumber   *int        `json:"page_number,omitempty"`
	CaseNumber   string      `json:"case_number"`
	Title        string      `json:"title"`
	JudgmentDate string      `json:"judgment_date,omitempty"`
	Court        string      `json:"court,omitempty"`
	RRFScore     float64     `json:"rrf_score"`
}

// StatuteText is the canonical text of one provision.
type StatuteText struct {
	Act           string `json:"act"`
	SectionNumber string `json:"section_number"`
	Title         string `json:"title"`
	Text          string `json:"text"`
}

// Label returns the provision reference, e.g. "IPC Section 302".
func (s StatuteText) Label() string {
	return SectionLabel(s.Act, s.SectionNumber)
}

// AnnotatedContext is the assembled output of one analysis.
type AnnotatedContext struct {
	RequestID       string           `json:"request_id"`
	Entities        []Entity         `json:"entities"`
	DarkZones       []DarkZone       `json:"dark_zones"`
	EnhancedQuery   string           `json:"enhanced_query"`
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
	Statutes        []StatuteText    `json:"statutes,omitempty"`
	AssembledText   string           `json:"assembled_text"`
	Degraded        []string         `json:"degraded,omitempty"`
}
