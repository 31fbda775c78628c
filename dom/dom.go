// Package dom provides the markup utilities the editing surface is built on:
// fragment parsing and serialization, traversal and attribute helpers on top
// of golang.org/x/net/html node trees.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment parses markup in body context and returns top level nodes.
// Parse errors do not happen for any input - the HTML5 algorithm always
// produces a tree.
func ParseFragment(markup string) []*html.Node {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		// only possible on reader failure which strings.Reader never reports
		return nil
	}
	return nodes
}

// Serialize renders nodes back to markup.
func Serialize(nodes ...*html.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		_ = html.Render(&sb, n)
	}
	return sb.String()
}

// SerializeChildren renders all children of n, which is what the hidden form
// field mirrors (innerHTML semantics).
func SerializeChildren(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// GetAttr returns value of the named attribute or empty string.
func GetAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets the named attribute replacing existing value.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr removes the named attribute if present.
func RemoveAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// IsElement reports whether n is an element with the given atom.
func IsElement(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

// Walk visits n and all its descendants in document order. Returning false
// from the visitor stops descending into the current node's children.
func Walk(n *html.Node, visit func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, visit)
	}
}

// FindAll collects all descendants of root (including root) matching pred.
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Elements collects all elements under root with one of the given atoms.
func Elements(root *html.Node, atoms ...atom.Atom) []*html.Node {
	return FindAll(root, func(n *html.Node) bool {
		for _, a := range atoms {
			if IsElement(n, a) {
				return true
			}
		}
		return false
	})
}

// Closest returns the nearest ancestor of n (or n itself) matching one of the
// atoms, stopping at and excluding limit.
func Closest(n, limit *html.Node, atoms ...atom.Atom) *html.Node {
	for cur := n; cur != nil && cur != limit; cur = cur.Parent {
		for _, a := range atoms {
			if IsElement(cur, a) {
				return cur
			}
		}
	}
	return nil
}

// Contains reports whether n is root or a descendant of root.
func Contains(root, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

// Detach removes n from its parent keeping the subtree intact.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// InsertBefore places n under parent right before ref. Nil ref appends.
func InsertBefore(parent, n, ref *html.Node) {
	Detach(n)
	if ref == nil {
		parent.AppendChild(n)
		return
	}
	parent.InsertBefore(n, ref)
}

// Text collects concatenated text content of the subtree.
func Text(n *html.Node) string {
	var sb strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}
