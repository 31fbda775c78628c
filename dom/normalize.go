package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// sizingProperties are inline style properties stripped from pasted content.
// Presentation is re-derived locally, not inherited from the source document.
var sizingProperties = []string{
	"width", "min-width", "max-width",
	"height", "min-height", "max-height",
	"font-size", "line-height",
}

// sizingTargets are elements whose explicit sizing is considered hostile when
// pasted from a foreign document.
var sizingTargets = []atom.Atom{
	atom.Table, atom.Thead, atom.Tbody, atom.Tr, atom.Th, atom.Td,
	atom.Colgroup, atom.Col, atom.Img,
}

// ScrollWrapClass marks the horizontally scrollable container every table is
// kept in.
const ScrollWrapClass = "table-scroll"

// StripSizing removes width/height attributes and sizing-related inline style
// properties from a single element.
func StripSizing(n *html.Node) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	RemoveAttr(n, "width")
	RemoveAttr(n, "height")
	if !HasAttr(n, "style") {
		return
	}
	EditStyle(n, func(s *Style) {
		for _, p := range sizingProperties {
			s.Remove(p)
		}
	})
}

// NormalizeSizing strips explicit sizing from all tables, their structural
// descendants and images under root.
func NormalizeSizing(root *html.Node) {
	for _, el := range Elements(root, sizingTargets...) {
		StripSizing(el)
	}
}

// WrapTablesForScroll puts every table under root into a scrollable container
// div. Idempotent - a table whose parent already is such container is left
// untouched.
func WrapTablesForScroll(root *html.Node) {
	for _, table := range Elements(root, atom.Table) {
		parent := table.Parent
		if parent == nil {
			continue
		}
		if IsElement(parent, atom.Div) && hasClass(parent, ScrollWrapClass) {
			continue
		}
		wrapper := &html.Node{
			Type:     html.ElementNode,
			Data:     "div",
			DataAtom: atom.Div,
			Attr:     []html.Attribute{{Key: "class", Val: ScrollWrapClass}},
		}
		parent.InsertBefore(wrapper, table)
		parent.RemoveChild(table)
		wrapper.AppendChild(table)
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(GetAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
