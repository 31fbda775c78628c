package editor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"richedit/dom"
	"richedit/ingest"
)

// Width presets offered by the toolbar. Arbitrary values go through the
// Apply commands which clamp them.
var (
	ImageWidthPresets = []int{30, 50, 75, 100}
	TableWidthPresets = []int{70, 100, 130}
)

const (
	minImagePercent = 10
	maxImagePercent = 100
	minTablePercent = 30
	maxTablePercent = 200

	bodyLineHeight = "1.45"
)

// blockAtoms is the set of block-level elements font-size commands touch.
var blockAtoms = []atom.Atom{
	atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
	atom.P, atom.Li, atom.Td, atom.Th, atom.Blockquote, atom.Pre,
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApplyImageWidth sets the selected image's width as a percentage of its
// container, clamped to [10, 100]. No-op without an image selection.
func (s *Surface) ApplyImageWidth(pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revalidate()
	if s.sel.state != ImageSelected {
		return
	}
	pct = clampInt(pct, minImagePercent, maxImagePercent)
	dom.EditStyle(s.sel.target, func(st *dom.Style) {
		st.Set("width", strconv.Itoa(pct)+"%")
		st.Set("max-width", "100%")
		st.Set("height", "auto")
	})
	s.imagePercent = pct
	s.syncField()
}

// ImageAlignment selects the margin combination AlignImage writes.
type ImageAlignment int

const (
	AlignLeft ImageAlignment = iota
	AlignCenter
	AlignRight
)

// AlignImage positions the selected image by switching it to block layout
// and steering it with auto margins.
func (s *Surface) AlignImage(a ImageAlignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revalidate()
	if s.sel.state != ImageSelected {
		return
	}
	dom.EditStyle(s.sel.target, func(st *dom.Style) {
		st.Set("display", "block")
		st.Set("float", "none")
		switch a {
		case AlignLeft:
			st.Set("margin-left", "0")
			st.Set("margin-right", "auto")
		case AlignCenter:
			st.Set("margin-left", "auto")
			st.Set("margin-right", "auto")
		case AlignRight:
			st.Set("margin-left", "auto")
			st.Set("margin-right", "0")
		}
	})
	s.syncField()
}

func resetImageStyle(n *xhtml.Node) {
	dom.RemoveAttr(n, "width")
	dom.RemoveAttr(n, "height")
	dom.EditStyle(n, func(st *dom.Style) {
		for _, prop := range []string{"width", "height", "max-width", "display", "margin-left", "margin-right", "float"} {
			st.Remove(prop)
		}
	})
}

// ResetImageSize removes all explicit sizing and alignment from the selected
// image, reverting to intrinsic layout.
func (s *Surface) ResetImageSize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revalidate()
	if s.sel.state != ImageSelected {
		return
	}
	resetImageStyle(s.sel.target)
	s.syncField()
}

// ApplyTableWidth sets the selected table's width as a percentage of the
// surface, clamped to [30, 200]. The explicit value is made authoritative by
// clearing min/max width.
func (s *Surface) ApplyTableWidth(pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revalidate()
	if s.sel.state != TableSelected {
		return
	}
	pct = clampInt(pct, minTablePercent, maxTablePercent)
	dom.EditStyle(s.sel.target, func(st *dom.Style) {
		st.Set("width", strconv.Itoa(pct)+"%")
		st.Set("min-width", "0")
		st.Set("max-width", "none")
	})
	s.tablePercent = pct
	s.syncField()
}

// ResetTableSize removes explicit sizing from the selected table.
func (s *Surface) ResetTableSize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revalidate()
	if s.sel.state != TableSelected {
		return
	}
	dom.EditStyle(s.sel.target, func(st *dom.Style) {
		for _, prop := range []string{"width", "min-width", "max-width", "table-layout"} {
			st.Remove(prop)
		}
	})
	s.syncField()
}

// FitTables normalizes sizing across the whole document, wraps every table
// for horizontal scrolling and forces the selected table (if any) to fill
// the surface with fixed layout.
func (s *Surface) FitTables() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revalidate()
	for c := s.container.FirstChild; c != nil; c = c.NextSibling {
		dom.NormalizeSizing(c)
	}
	dom.WrapTablesForScroll(s.container)
	if s.sel.state == TableSelected {
		dom.EditStyle(s.sel.target, func(st *dom.Style) {
			st.Set("width", "100%")
			st.Set("table-layout", "fixed")
		})
	}
	s.syncField()
}

// applyFontStyle writes the bounded font size plus the house line height.
func applyFontStyle(n *xhtml.Node, px int) {
	dom.EditStyle(n, func(st *dom.Style) {
		st.Set("font-size", strconv.Itoa(px)+"px")
		st.Set("line-height", bodyLineHeight)
	})
}

func (s *Surface) clampFont(px int) int {
	return clampInt(px, s.opts.Editor.MinFontSize, s.opts.Editor.MaxFontSize)
}

// TextRange marks a run of characters inside one text node.
type TextRange struct {
	Node       *xhtml.Node
	Start, End int
}

// ApplySelectedTextSize wraps the marked text run in a sized span. With no
// usable range it falls back to the closest block around the caret.
func (s *Surface) ApplySelectedTextSize(r *TextRange, px int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	px = s.clampFont(px)

	if r == nil || r.Node == nil || r.Node.Type != xhtml.TextNode ||
		!dom.Contains(s.container, r.Node) || r.Start >= r.End ||
		r.Start < 0 || r.End > len(r.Node.Data) {
		s.applyCaretBlockSize(px)
		s.syncField()
		return
	}

	text := r.Node.Data
	parent := r.Node.Parent
	next := r.Node.NextSibling
	dom.Detach(r.Node)

	if before := text[:r.Start]; before != "" {
		dom.InsertBefore(parent, &xhtml.Node{Type: xhtml.TextNode, Data: before}, next)
	}
	span := &xhtml.Node{Type: xhtml.ElementNode, Data: "span", DataAtom: atom.Span}
	span.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: text[r.Start:r.End]})
	applyFontStyle(span, px)
	dom.InsertBefore(parent, span, next)
	if after := text[r.End:]; after != "" {
		dom.InsertBefore(parent, &xhtml.Node{Type: xhtml.TextNode, Data: after}, next)
	}
	s.syncField()
}

// ApplyBlockTextSize sizes every block the range touches, or the caret's
// closest block when the range is unusable.
func (s *Surface) ApplyBlockTextSize(r *TextRange, px int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	px = s.clampFont(px)

	if r != nil && r.Node != nil && dom.Contains(s.container, r.Node) {
		if block := dom.Closest(r.Node, s.container, blockAtoms...); block != nil {
			applyFontStyle(block, px)
			s.syncField()
			return
		}
	}
	s.applyCaretBlockSize(px)
	s.syncField()
}

// applyCaretBlockSize is the shared fallback: the block ancestor of the
// caret. Callers hold s.mu.
func (s *Surface) applyCaretBlockSize(px int) {
	c := s.validCaret()
	if block := dom.Closest(c.Parent, s.container, blockAtoms...); block != nil {
		applyFontStyle(block, px)
	}
}

// ApplyAllTextSize sizes every block-level element in the document. A
// document without blocks gets the size on its top-level elements.
func (s *Surface) ApplyAllTextSize(px int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	px = s.clampFont(px)

	blocks := dom.Elements(s.container, blockAtoms...)
	if len(blocks) == 0 {
		for c := s.container.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xhtml.ElementNode {
				applyFontStyle(c, px)
			}
		}
		s.syncField()
		return
	}
	for _, block := range blocks {
		applyFontStyle(block, px)
	}
	s.syncField()
}

// InsertImageFile uploads a picked file and drops the element at the caret.
// Video goes through the media ceiling and becomes a video element.
func (s *Surface) InsertImageFile(ctx context.Context, data []byte, mimeType, name string) error {
	if s.opts.Gateway == nil {
		return fmt.Errorf("no gateway configured: %w", ingest.ErrFetchFailed)
	}
	payload := &ingest.DataURI{MIME: mimeType, Data: data}

	var markup string
	switch {
	case len(data) == 0:
		return ingest.ErrEmptyPayload
	case mimeType == "" || strings.HasPrefix(mimeType, "image/"):
		asset, err := s.opts.Gateway.UploadImage(ctx, payload, name)
		if err != nil {
			return err
		}
		markup = `<img src="` + asset.URL + `">`
	case strings.HasPrefix(mimeType, "video/"):
		asset, err := s.opts.Gateway.UploadMedia(ctx, payload, name)
		if err != nil {
			return err
		}
		markup = `<video controls src="` + asset.URL + `"></video>`
	default:
		return fmt.Errorf("%s: %w", mimeType, ingest.ErrUnsupportedType)
	}
	s.InsertFragmentAtCaret(markup)
	return nil
}
