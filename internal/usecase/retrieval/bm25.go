package retrieval

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"legal-rag/internal/domain"
)

// IndexState is the lifecycle state of a LexicalIndex.
type IndexState int

const (
	IndexUninitialized IndexState = iota
	IndexIndexed
)

func (s IndexState) String() string {
	switch s {
	case IndexIndexed:
		return "indexed"
	default:
		return "uninitialized"
	}
}

// BM25Params are the Okapi BM25 parameters.
// Epsilon replaces negative idf values with Epsilon times the mean idf.
type BM25Params struct {
	K1      float64
	B       float64
	Epsilon float64
}

// DefaultBM25Params returns k1=1.5, b=0.75, epsilon=0.25.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.5, B: 0.75, Epsilon: 0.25}
}

// Validate rejects parameters outside the usual BM25 ranges.
func (p BM25Params) Validate() error {
	if p.K1 < 0 {
		return errors.New("bm25 k1 must be non-negative")
	}
	if p.B < 0 || p.B > 1 {
		return errors.New("bm25 b must be in [0, 1]")
	}
	if p.Epsilon < 0 {
		return errors.New("bm25 epsilon must be non-negative")
	}
	return nil
}

type bm25Snapshot struct {
	ids    []int64
	freqs  []map[string]int
	docLen []int
	avgdl  float64
	idf    map[string]float64
}

// LexicalIndex is an in-memory BM25 index over chunk texts.
// Build swaps in a new snapshot; concurrent Retrieve calls keep reading the old one.
type LexicalIndex struct {
	params BM25Params

	mu   sync.RWMutex
	snap *bm25Snapshot
}

// NewLexicalIndex creates an uninitialized index.
func NewLexicalIndex(params BM25Params) *LexicalIndex {
	return &LexicalIndex{params: params}
}

// Tokenize lowercases text and splits it on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Build indexes docs and replaces the current snapshot.
func (ix *LexicalIndex) Build(docs []domain.LexicalDocument) {
	snap := buildSnapshot(docs, ix.params.Epsilon)

	ix.mu.Lock()
	ix.snap = snap
	ix.mu.Unlock()
}

func buildSnapshot(docs []domain.LexicalDocument, epsilon float64) *bm25Snapshot {
	snap := &bm25Snapshot{
		ids:    make([]int64, len(docs)),
		freqs:  make([]map[string]int, len(docs)),
		docLen: make([]int, len(docs)),
		idf:    make(map[string]float64),
	}

	docFreq := make(map[string]int)
	total := 0
	for i, d := range docs {
		tokens := Tokenize(d.Text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			docFreq[tok]++
		}
		snap.ids[i] = d.ChunkID
		snap.freqs[i] = tf
		snap.docLen[i] = len(tokens)
		total += len(tokens)
	}
	if len(docs) > 0 {
		snap.avgdl = float64(total) / float64(len(docs))
	}

	n := float64(len(docs))
	idfSum := 0.0
	var negative []string
	for tok, df := range docFreq {
		idf := math.Log(n-float64(df)+0.5) - math.Log(float64(df)+0.5)
		snap.idf[tok] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	if len(docFreq) > 0 {
		eps := epsilon * idfSum / float64(len(docFreq))
		for _, tok := range negative {
			snap.idf[tok] = eps
		}
	}
	return snap
}

// State reports whether Build has run.
func (ix *LexicalIndex) State() IndexState {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return IndexUninitialized
	}
	return IndexIndexed
}

// Size returns the number of indexed documents.
func (ix *LexicalIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return 0
	}
	return len(ix.snap.ids)
}

// Retrieve scores every document against query and returns the topN with a
// positive score, ordered by score then ascending chunk id.
// Repeated query tokens contribute once per occurrence.
func (ix *LexicalIndex) Retrieve(query string, topN int) ([]domain.RetrievalCandidate, error) {
	ix.mu.RLock()
	snap := ix.snap
	ix.mu.RUnlock()

	if snap == nil {
		return nil, domain.ErrIndexNotReady
	}
	if topN <= 0 || len(snap.ids) == 0 {
		return nil, nil
	}

	tokens := Tokenize(query)
	var out []domain.RetrievalCandidate
	for i, tf := range snap.freqs {
		score := 0.0
		norm := ix.params.K1 * (1 - ix.params.B + ix.params.B*float64(snap.docLen[i])/snap.avgdl)
		for _, tok := range tokens {
			f := float64(tf[tok])
			if f == 0 {
				continue
			}
			score += snap.idf[tok] * (f * (ix.params.K1 + 1) / (f + norm))
		}
		if score > 0 {
			out = append(out, domain.RetrievalCandidate{ChunkID: snap.ids[i], Score: score})
		}
	}

	sortCandidates(out)
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func sortCandidates(c []domain.RetrievalCandidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].ChunkID < c[j].ChunkID
	})
}
