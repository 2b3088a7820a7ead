package domain

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultCourt is assumed when a judgment names no court in its header.
const DefaultCourt = "Supreme Court of India"

const (
	metadataHeaderRunes = 2000
	judgeHeaderRunes    = 3000
	titleHeaderRunes    = 500
	maxTitleRunes       = 200
	maxJudges           = 5
)

var judgmentDateLayouts = []string{"2/1/2006", "2-1-2006", "2.1.2006"}

// JudgmentMetadata is the header information parsed from a judgment.
type JudgmentMetadata struct {
	CaseNumber   string     `json:"case_number"`
	Title        string     `json:"title"`
	Parties      string     `json:"parties"`
	JudgmentDate *time.Time `json:"judgment_date,omitempty"`
	Court        string     `json:"court"`
	Judges       []string   `json:"judges"`
	Year         *int       `json:"year,omitempty"`
}

// ExtractJudgmentMetadata parses the header of a judgment. sourceName is used
// as the case number when none is found.
func ExtractJudgmentMetadata(patterns *PatternRegistry, text, sourceName string) JudgmentMetadata {
	head := TruncateRunes(text, metadataHeaderRunes)
	meta := JudgmentMetadata{Court: DefaultCourt, Judges: []string{}}

	for _, re := range patterns.MetadataCaseNumbers {
		if m := re.FindStringSubmatch(head); m != nil {
			meta.CaseNumber = m[1]
			break
		}
	}
	if strings.TrimSpace(meta.CaseNumber) == "" {
		stem := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
		meta.CaseNumber = TruncateRunes(stem, maxTitleRunes)
	}

	if m := patterns.MetadataParties.FindStringSubmatch(head); m != nil {
		meta.Parties = strings.TrimSpace(m[1]) + " vs " + strings.TrimSpace(m[2])
	}

	if m := patterns.MetadataDate.FindStringSubmatch(head); m != nil {
		for _, layout := range judgmentDateLayouts {
			if d, err := time.Parse(layout, m[1]); err == nil {
				year := d.Year()
				meta.JudgmentDate = &d
				meta.Year = &year
				break
			}
		}
	}

	for _, re := range patterns.Courts {
		if loc := re.FindString(head); loc != "" {
			meta.Court = loc
			break
		}
	}

	judgeHead := TruncateRunes(text, judgeHeaderRunes)
	seen := make(map[string]struct{})
	for _, re := range patterns.MetadataJudges {
		for _, m := range re.FindAllStringSubmatch(judgeHead, -1) {
			name := strings.TrimSpace(m[1])
			if n := utf8.RuneCountInString(name); n <= 3 || n >= 50 {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			if len(meta.Judges) < maxJudges {
				meta.Judges = append(meta.Judges, name)
			}
		}
	}

	lines := strings.Split(TruncateRunes(text, titleHeaderRunes), "\n")
	if len(lines) > 3 {
		lines = lines[:3]
	}
	meta.Title = TruncateRunes(strings.TrimSpace(strings.Join(lines, " ")), maxTitleRunes)

	return meta
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
