package dom

import (
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/net/html"
)

// Declaration is a single property of a style attribute.
type Declaration struct {
	Property string
	Value    string
}

// Style is an ordered, editable view of an element's style attribute.
// Declaration order is preserved on write so that untouched properties
// round-trip unchanged.
type Style struct {
	decls []Declaration
}

// ParseStyle parses a style attribute value. Unparsable pieces are dropped,
// which matches how rendering engines treat bad inline declarations.
func ParseStyle(raw string) *Style {
	s := &Style{}
	if strings.TrimSpace(raw) == "" {
		return s
	}

	p := css.NewParser(parse.NewInput(strings.NewReader(raw)), true)
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			return s
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			var val strings.Builder
			for _, t := range p.Values() {
				val.Write(t.Data)
			}
			s.decls = append(s.decls, Declaration{
				Property: strings.ToLower(strings.TrimSpace(string(data))),
				Value:    strings.TrimSpace(val.String()),
			})
		}
	}
}

// Get returns value of the property or empty string.
func (s *Style) Get(property string) string {
	for _, d := range s.decls {
		if d.Property == property {
			return d.Value
		}
	}
	return ""
}

// Set adds or replaces the property keeping declaration order stable.
func (s *Style) Set(property, value string) {
	for i := range s.decls {
		if s.decls[i].Property == property {
			s.decls[i].Value = value
			return
		}
	}
	s.decls = append(s.decls, Declaration{Property: property, Value: value})
}

// Remove drops the property, reporting whether it was present.
func (s *Style) Remove(property string) bool {
	for i := range s.decls {
		if s.decls[i].Property == property {
			s.decls = append(s.decls[:i], s.decls[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns number of declarations.
func (s *Style) Len() int {
	return len(s.decls)
}

// String renders declarations back to a style attribute value.
func (s *Style) String() string {
	parts := make([]string, 0, len(s.decls))
	for _, d := range s.decls {
		parts = append(parts, d.Property+": "+d.Value)
	}
	return strings.Join(parts, "; ")
}

// StyleOf parses the style attribute of an element.
func StyleOf(n *html.Node) *Style {
	return ParseStyle(GetAttr(n, "style"))
}

// ApplyStyle writes the style back to the element, removing the attribute
// when no declarations remain.
func ApplyStyle(n *html.Node, s *Style) {
	if s.Len() == 0 {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", s.String())
}

// EditStyle parses, mutates and writes back an element's style attribute.
func EditStyle(n *html.Node, mutate func(*Style)) {
	s := StyleOf(n)
	mutate(s)
	ApplyStyle(n, s)
}
