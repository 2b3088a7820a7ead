package domain

import "fmt"

// EntityType classifies a legal entity found in text.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityCaseNumber   EntityType = "CASE_NUMBER"
	EntityLegalSection EntityType = "LEGAL_SECTION"
	EntityCourt        EntityType = "COURT"
	EntityDate         EntityType = "DATE"
	EntityPenalty      EntityType = "PENALTY"
	EntityLegalTerm    EntityType = "LEGAL_TERM"
	EntityStatute      EntityType = "STATUTE"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityJudge        EntityType = "JUDGE"
	EntityLawyer       EntityType = "LAWYER"
)

// Attribute keys carried by entities.
const (
	AttrAct           = "act"
	AttrSectionNumber = "section_number"
	AttrFullMatch     = "full_match"
)

// Span is a half-open [Start, End) byte interval into a source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Contains reports whether pos lies inside the span.
func (s Span) Contains(pos int) bool {
	return pos >= s.Start && pos < s.End
}

// Entity is a legal entity recognised in a text.
type Entity struct {
	Text       string            `json:"text"`
	Type       EntityType        `json:"type"`
	Span       Span              `json:"span"`
	Confidence float64           `json:"confidence"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Act returns the canonical act tag of a LegalSection entity.
func (e Entity) Act() string {
	return e.Attributes[AttrAct]
}

// SectionNumber returns the section number of a LegalSection entity.
func (e Entity) SectionNumber() string {
	return e.Attributes[AttrSectionNumber]
}

// IsSectionReference reports whether the entity can be looked up as statute text.
func (e Entity) IsSectionReference() bool {
	return e.Type == EntityLegalSection && e.Act() != "" && e.SectionNumber() != ""
}

// FilterEntities returns the entities of the given type, preserving order.
func FilterEntities(entities []Entity, typ EntityType) []Entity {
	var out []Entity
	for _, e := range entities {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// SectionLabel renders a canonical provision reference such as "IPC Section 302".
// Constitution provisions are articles.
func SectionLabel(act, number string) string {
	if act == ActConstitution {
		return fmt.Sprintf("%s Article %s", act, number)
	}
	return fmt.Sprintf("%s Section %s", act, number)
}
