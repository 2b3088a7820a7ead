package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// ChunkerVersion defines the version of the chunking algorithm.
// Stored alongside every chunk so a corpus can be re-chunked selectively.
type ChunkerVersion string

// ChunkerVersionSectionV1 is the section-aware sentence-window chunker.
const ChunkerVersionSectionV1 ChunkerVersion = "section-v1"

// SectionType labels the judgment section a chunk was cut from.
type SectionType string

const (
	SectionNone       SectionType = ""
	SectionFacts      SectionType = "facts"
	SectionAnalysis   SectionType = "analysis"
	SectionConclusion SectionType = "conclusion"
	SectionHeadnote   SectionType = "headnote"
	SectionIssue      SectionType = "issue"
)

// TailPolicy decides what happens to a trailing chunk below the minimum size.
// TailMerge is the default and keeps every sentence of a section in some chunk.
type TailPolicy string

const (
	// TailMerge folds the short tail's new sentences into the previous chunk.
	TailMerge TailPolicy = "merge"
	// TailDrop discards the short tail.
	TailDrop TailPolicy = "drop"
)

const (
	DefaultChunkSize      = 512
	DefaultChunkOverlap   = 50
	DefaultMinChunkSize   = 100
	DefaultHeadingSpacing = 500
)

// ChunkerConfig holds the token budgets of the chunker.
type ChunkerConfig struct {
	ChunkSize      int
	Overlap        int
	MinChunkSize   int
	HeadingSpacing int
	TailPolicy     TailPolicy
}

// DefaultChunkerConfig returns the production chunking budgets.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:      DefaultChunkSize,
		Overlap:        DefaultChunkOverlap,
		MinChunkSize:   DefaultMinChunkSize,
		HeadingSpacing: DefaultHeadingSpacing,
		TailPolicy:     TailMerge,
	}
}

// Validate checks that the budgets are consistent.
func (c ChunkerConfig) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		errs = append(errs, errors.New("overlap must be in [0, chunk size)"))
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.ChunkSize {
		errs = append(errs, errors.New("min chunk size must be in [0, chunk size]"))
	}
	if c.HeadingSpacing < 0 {
		errs = append(errs, errors.New("heading spacing must not be negative"))
	}
	if c.TailPolicy != TailMerge && c.TailPolicy != TailDrop {
		errs = append(errs, errors.New("tail policy must be merge or drop"))
	}
	return errors.Join(errs...)
}

// Chunk represents a single passage of a judgment.
// Chunks tile their own section only: the heading line that opens a section
// belongs to no chunk.
type Chunk struct {
	Text          string      `json:"text"`
	Span          Span        `json:"span"`
	SectionType   SectionType `json:"section_type,omitempty"`
	SequenceIndex int         `json:"sequence_index"`
	TokenCount    int         `json:"token_count"`
	Hash          string      `json:"hash"`
}

// Chunker defines the interface for splitting text into chunks.
type Chunker interface {
	Chunk(body string) ([]Chunk, error)
	Version() ChunkerVersion
}

type sectionChunker struct {
	patterns *PatternRegistry
	counter  TokenCounter
	cfg      ChunkerConfig
}

// NewChunker creates the section-aware chunker.
func NewChunker(patterns *PatternRegistry, counter TokenCounter, cfg ChunkerConfig) Chunker {
	if counter == nil {
		counter = WordTokenCounter{}
	}
	return &sectionChunker{patterns: patterns, counter: counter, cfg: cfg}
}

func (c *sectionChunker) Version() ChunkerVersion {
	return ChunkerVersionSectionV1
}

// Chunk cuts body into overlapping sentence windows per detected section.
// Chunk spans index into body; the non-overlapping parts of consecutive
// chunks of a section tile that section exactly.
func (c *sectionChunker) Chunk(body string) ([]Chunk, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	var chunks []Chunk
	for _, sec := range c.detectSections(body) {
		chunks = append(chunks, c.chunkSection(body, sec)...)
	}
	for i := range chunks {
		chunks[i].SequenceIndex = i
	}
	return chunks, nil
}

type section struct {
	typ     SectionType
	heading int // offset of the heading that opened the section
	span    Span
}

func (c *sectionChunker) detectSections(body string) []section {
	var marks []section
	for _, hp := range c.patterns.Headings {
		for _, loc := range hp.Regexp.FindAllStringIndex(body, -1) {
			marks = append(marks, section{typ: hp.SectionType, heading: loc[0], span: Span{Start: loc[1]}})
		}
	}
	if len(marks) == 0 {
		return []section{{span: Span{Start: 0, End: len(body)}}}
	}

	sort.SliceStable(marks, func(i, j int) bool {
		return marks[i].span.Start < marks[j].span.Start
	})

	var accepted []section
	for _, m := range marks {
		if len(accepted) == 0 || m.span.Start > accepted[len(accepted)-1].span.Start+c.cfg.HeadingSpacing {
			accepted = append(accepted, m)
		}
	}

	for i := range accepted {
		if i+1 < len(accepted) {
			accepted[i].span.End = accepted[i+1].heading
		} else {
			accepted[i].span.End = len(body)
		}
	}

	if pre := accepted[0].heading; pre > 0 && strings.TrimSpace(body[:pre]) != "" {
		accepted = append([]section{{span: Span{Start: 0, End: pre}}}, accepted...)
	}
	return accepted
}

func (c *sectionChunker) chunkSection(body string, sec section) []Chunk {
	sentences := splitSentenceSpans(body, sec.span.Start, sec.span.End)
	if len(sentences) == 0 {
		return nil
	}

	tokens := make([]int, len(sentences))
	for i, s := range sentences {
		tokens[i] = c.counter.Count(body[s.Start:s.End])
	}

	groups := c.groupSentences(tokens)

	last := len(groups) - 1
	if last > 0 && sumTokens(groups[last], tokens) < c.cfg.MinChunkSize {
		tail := groups[last]
		groups = groups[:last]
		if c.cfg.TailPolicy == TailMerge {
			prev := groups[last-1]
			for i := prev[len(prev)-1] + 1; i <= tail[len(tail)-1]; i++ {
				prev = append(prev, i)
			}
			groups[last-1] = prev
		}
	}

	chunks := make([]Chunk, 0, len(groups))
	for j, g := range groups {
		start := sentences[g[0]].Start
		if j == 0 {
			start = sec.span.Start
		}
		end := sec.span.End
		if next := g[len(g)-1] + 1; next < len(sentences) {
			end = sentences[next].Start
		}
		text := body[start:end]
		chunks = append(chunks, Chunk{
			Text:        text,
			Span:        Span{Start: start, End: end},
			SectionType: sec.typ,
			TokenCount:  sumTokens(g, tokens),
			Hash:        contentHash(text),
		})
	}
	return chunks
}

// groupSentences greedily packs sentence indices into windows that fit the
// chunk budget, seeding each new window with an overlap suffix of the last.
func (c *sectionChunker) groupSentences(tokens []int) [][]int {
	var groups [][]int
	var current []int
	currentTokens := 0

	for i, t := range tokens {
		if len(current) > 0 && currentTokens+t > c.cfg.ChunkSize {
			groups = append(groups, current)
			overlap := c.overlapSuffix(current, tokens)
			for len(overlap) > 0 && sumTokens(overlap, tokens)+t > c.cfg.ChunkSize {
				overlap = overlap[1:]
			}
			current = append([]int(nil), overlap...)
			currentTokens = sumTokens(current, tokens)
		}
		current = append(current, i)
		currentTokens += t
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// overlapSuffix walks back from the end of group collecting sentences while
// they fit the overlap budget. The first sentence of group is never reused.
func (c *sectionChunker) overlapSuffix(group []int, tokens []int) []int {
	if len(group) < 2 {
		return nil
	}
	acc := 0
	from := len(group)
	for k := len(group) - 1; k >= 1; k-- {
		if acc+tokens[group[k]] > c.cfg.Overlap {
			break
		}
		acc += tokens[group[k]]
		from = k
	}
	return group[from:]
}

func sumTokens(idx []int, tokens []int) int {
	total := 0
	for _, i := range idx {
		total += tokens[i]
	}
	return total
}

func contentHash(content string) string {
	hashBytes := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hashBytes[:])
}
