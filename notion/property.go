package notion

import (
	"math"
	"strings"
)

// Property is one typed page property in its internal representation. Wire
// renders the property into the JSON shape the remote API expects. Kinds that
// can be cleared render an explicit null so a patch actually empties the
// remote value instead of being dropped from the payload.
type Property interface {
	Wire() map[string]interface{}
}

// Properties is a named set of page properties forming a create or patch
// payload.
type Properties map[string]Property

// Wire renders the whole property set.
func (p Properties) Wire() map[string]interface{} {
	wire := make(map[string]interface{}, len(p))
	for name, property := range p {
		wire[name] = property.Wire()
	}
	return wire
}

// Title is the page title property.
type Title struct {
	Text string
}

func (t Title) Wire() map[string]interface{} {
	return map[string]interface{}{
		"type": "title",
		"title": []interface{}{
			map[string]interface{}{
				"type": "text",
				"text": map[string]interface{}{"content": t.Text},
			},
		},
	}
}

// Number is a numeric property; a nil value clears it.
type Number struct {
	Value *float64
}

func NumberOf(n int) Number {
	value := float64(n)
	return Number{Value: &value}
}

func (n Number) Wire() map[string]interface{} {
	if n.Value == nil {
		return map[string]interface{}{"type": "number", "number": nil}
	}
	return map[string]interface{}{"type": "number", "number": *n.Value}
}

// RichText is a free-form text property; an empty text clears it.
type RichText struct {
	Text string
}

func (r RichText) Wire() map[string]interface{} {
	if r.Text == "" {
		return map[string]interface{}{"type": "rich_text", "rich_text": []interface{}{}}
	}
	return map[string]interface{}{
		"type": "rich_text",
		"rich_text": []interface{}{
			map[string]interface{}{
				"type": "text",
				"text": map[string]interface{}{"content": r.Text},
			},
		},
	}
}

// Select is a single-choice property; an empty name clears the selection.
type Select struct {
	Name string
}

func (s Select) Wire() map[string]interface{} {
	if s.Name == "" {
		return map[string]interface{}{"type": "select", "select": nil}
	}
	return map[string]interface{}{
		"type":   "select",
		"select": map[string]interface{}{"name": s.Name},
	}
}

// MultiSelect is a tag-set property.
type MultiSelect struct {
	Names []string
}

func (m MultiSelect) Wire() map[string]interface{} {
	options := make([]interface{}, 0, len(m.Names))
	for _, name := range m.Names {
		options = append(options, map[string]interface{}{"name": name})
	}
	return map[string]interface{}{"type": "multi_select", "multi_select": options}
}

// Relation links the page to pages in another database.
type Relation struct {
	IDs []string
}

func (r Relation) Wire() map[string]interface{} {
	references := make([]interface{}, 0, len(r.IDs))
	for _, id := range r.IDs {
		references = append(references, map[string]interface{}{"id": id})
	}
	return map[string]interface{}{"type": "relation", "relation": references}
}

// URL is a link property; an empty value clears it.
type URL struct {
	Value string
}

func (u URL) Wire() map[string]interface{} {
	if u.Value == "" {
		return map[string]interface{}{"type": "url", "url": nil}
	}
	return map[string]interface{}{"type": "url", "url": u.Value}
}

// ExternalFile is a files property holding a single externally hosted file.
type ExternalFile struct {
	Name string
	URL  string
}

func (f ExternalFile) Wire() map[string]interface{} {
	if f.URL == "" {
		return map[string]interface{}{"type": "files", "files": []interface{}{}}
	}
	return map[string]interface{}{
		"type": "files",
		"files": []interface{}{
			map[string]interface{}{
				"name":     f.Name,
				"type":     "external",
				"external": map[string]interface{}{"url": f.URL},
			},
		},
	}
}

// Stars converts a 0-10 scale rating into the star-glyph select value used
// remotely: round(rating/2) stars, half rounded away from zero. A nil or
// zero-star rating collapses to the empty string, which clears the select.
func Stars(rating *float64) string {
	if rating == nil {
		return ""
	}
	count := int(math.Round(*rating / 2))
	if count <= 0 {
		return ""
	}
	return strings.Repeat("★", count)
}
