// Package claml reads ClaML classification documents into an immutable
// in-memory model. A document is parsed once; everything downstream
// (normalization, export, views) works on the parsed classes.
package claml

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// RubricKinds lists every rubric kind a record may carry, in the order
// fields appear in exported records.
var RubricKinds = []string{
	KindPreferred,
	KindDefinition,
	KindCodingHint,
	KindInclusion,
	KindExclusion,
	KindText,
}

const (
	KindPreferred  = "preferred"
	KindDefinition = "definition"
	KindCodingHint = "coding-hint"
	KindInclusion  = "inclusion"
	KindExclusion  = "exclusion"
	KindText       = "text"
)

// Label is one language variant of a rubric. HasLang distinguishes a
// label with no xml:lang attribute from one tagged with an empty value.
type Label struct {
	Lang    string
	HasLang bool
	Text    string
}

// Rubric is one annotation block on a class: a kind plus its language
// variants in document order.
type Rubric struct {
	Kind   string
	Labels []Label
}

// Class is one coded entry in the hierarchy. Never mutated after parse.
type Class struct {
	Code     string
	Kind     string
	Rubrics  []Rubric
	Children []string
}

// Document holds all classes of one parsed ClaML file.
type Document struct {
	classes []*Class
	byCode  map[string]*Class
}

// Parse reads a ClaML document. A Class element without a code
// attribute is a fatal error: the caller gets no document at all.
func Parse(r io.Reader) (*Document, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse claml: %w", err)
	}

	nodes, err := xmlquery.QueryAll(root, "//Class")
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}

	doc := &Document{byCode: make(map[string]*Class, len(nodes))}
	for _, n := range nodes {
		cls, err := parseClass(n)
		if err != nil {
			return nil, err
		}
		doc.classes = append(doc.classes, cls)
		if _, dup := doc.byCode[cls.Code]; !dup {
			doc.byCode[cls.Code] = cls
		}
	}
	return doc, nil
}

func parseClass(n *xmlquery.Node) (*Class, error) {
	code := n.SelectAttr("code")
	if code == "" {
		return nil, fmt.Errorf("class element without code attribute")
	}
	cls := &Class{
		Code: code,
		Kind: n.SelectAttr("kind"),
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		switch child.Data {
		case "SubClass":
			if c := child.SelectAttr("code"); c != "" {
				cls.Children = append(cls.Children, c)
			}
		case "Rubric":
			cls.Rubrics = append(cls.Rubrics, parseRubric(child))
		}
	}
	return cls, nil
}

func parseRubric(n *xmlquery.Node) Rubric {
	r := Rubric{Kind: n.SelectAttr("kind")}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode || child.Data != "Label" {
			continue
		}
		label := Label{Text: child.InnerText()}
		for _, attr := range child.Attr {
			if attr.Name.Local == "lang" {
				label.Lang = attr.Value
				label.HasLang = true
				break
			}
		}
		r.Labels = append(r.Labels, label)
	}
	return r
}

// Get returns the class for a code, or nil when unknown.
func (d *Document) Get(code string) *Class {
	return d.byCode[code]
}

// Classes returns all classes in document order.
func (d *Document) Classes() []*Class {
	return d.classes
}

// Len returns the number of parsed classes.
func (d *Document) Len() int {
	return len(d.classes)
}

// Roots returns the top-level component classes, i.e. the designated
// export roots, in document order.
func (d *Document) Roots() []*Class {
	var roots []*Class
	for _, c := range d.classes {
		if c.Kind == "component" {
			roots = append(roots, c)
		}
	}
	return roots
}

// Resolve returns the texts of all labels of the given rubric kind that
// match the requested language. A label with no xml:lang attribute is
// language-neutral and always matches; labels tagged with a different
// language are excluded. Whitespace runs collapse to single spaces and
// values empty after trimming are dropped. Document order is preserved
// and duplicates are kept.
func (c *Class) Resolve(kind, lang string) []string {
	var texts []string
	for _, rubric := range c.Rubrics {
		if rubric.Kind != kind {
			continue
		}
		for _, label := range rubric.Labels {
			if label.HasLang && label.Lang != lang {
				continue
			}
			if t := collapseSpace(label.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}
	return texts
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
