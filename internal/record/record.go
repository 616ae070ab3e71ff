// Package record defines the normalized per-code record and the
// normalization step that produces one from a parsed class.
package record

import (
	"fmt"

	"github.com/politpatrick/icf-api/internal/claml"
)

// Record is the exported unit for one classification code. Fields other
// than code and children are sparse: absent means the source carried no
// data, never "empty".
type Record struct {
	Code     string   `json:"code"`
	Kind     string   `json:"kind,omitempty"`
	Children []string `json:"children"`

	Preferred     string   `json:"preferred,omitempty"`
	PreferredFull []string `json:"preferred_full,omitempty"`

	Definitions []string `json:"definitions,omitempty"`
	CodingHints []string `json:"coding-hints,omitempty"`
	Inclusions  []string `json:"inclusions,omitempty"`
	Exclusions  []string `json:"exclusions,omitempty"`
	Texts       []string `json:"texts,omitempty"`

	// Missing marks a synthesized placeholder for a code that could not
	// be retrieved. Genuine exported records never set it.
	Missing bool `json:"missing,omitempty"`
}

// Placeholder builds the stand-in record for an unretrievable code.
func Placeholder(code string) *Record {
	return &Record{Code: code, Children: []string{}, Missing: true}
}

// Normalize produces the record for one class in the requested
// language. Children are copied in declared order and left unresolved;
// reference validation happens at export time. The operation is pure.
func Normalize(cls *claml.Class, lang string) (*Record, error) {
	if cls.Code == "" {
		return nil, fmt.Errorf("class without code cannot be normalized")
	}

	rec := &Record{
		Code:     cls.Code,
		Kind:     cls.Kind,
		Children: append([]string{}, cls.Children...),
	}

	for _, kind := range claml.RubricKinds {
		texts := cls.Resolve(kind, lang)
		if len(texts) == 0 {
			continue
		}
		switch kind {
		case claml.KindPreferred:
			rec.Preferred = texts[0]
			if len(texts) > 1 {
				rec.PreferredFull = texts
			}
		case claml.KindDefinition:
			rec.Definitions = texts
		case claml.KindCodingHint:
			rec.CodingHints = texts
		case claml.KindInclusion:
			rec.Inclusions = texts
		case claml.KindExclusion:
			rec.Exclusions = texts
		case claml.KindText:
			rec.Texts = texts
		}
	}
	return rec, nil
}

// Field resolves a JSON field name to its value for search. Scalar
// fields return (value, nil, true), list fields return ("", list,
// true); unknown names report ok == false.
func (r *Record) Field(name string) (scalar string, list []string, ok bool) {
	switch name {
	case "code":
		return r.Code, nil, true
	case "kind":
		return r.Kind, nil, true
	case "preferred":
		return r.Preferred, nil, true
	case "preferred_full":
		return "", r.PreferredFull, true
	case "children":
		return "", r.Children, true
	case "definitions":
		return "", r.Definitions, true
	case "coding-hints":
		return "", r.CodingHints, true
	case "inclusions":
		return "", r.Inclusions, true
	case "exclusions":
		return "", r.Exclusions, true
	case "texts":
		return "", r.Texts, true
	}
	return "", nil, false
}
