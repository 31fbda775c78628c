package editor

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"richedit/config"
	"richedit/dom"
	"richedit/ingest"
)

// Field is the hidden form value backing a surface. After any mutation
// settles its Value equals the surface serialization, the form layer submits
// it as-is.
type Field struct {
	Value string
}

// Caret is an insertion point: before the Index-th child of Parent.
type Caret struct {
	Parent *xhtml.Node
	Index  int
}

// BlobResolver turns a blob: reference into payload bytes. Only the host
// environment can dereference blobs, tests plug in fakes.
type BlobResolver interface {
	Resolve(url string) (*ingest.DataURI, error)
}

// Options wires a surface to its host environment.
type Options struct {
	Layout  Layout
	Router  *EventRouter
	Gateway ingest.Gateway
	Blobs   BlobResolver
	Editor  config.EditorConfig
	Log     *zap.Logger
}

// Surface owns one editable document. All mutation funnels through methods
// that end in syncField, keeping the hidden field authoritative for
// submission at every settle point.
type Surface struct {
	mu    sync.Mutex
	field *Field
	// container is a synthetic element whose children are the document.
	container *xhtml.Node
	caret     Caret
	opts      Options

	sel     Selection
	session *resizeSession

	imagePercent int
	tablePercent int

	jobs chan *pasteJob
	done chan struct{}
}

var looksHTML = regexp.MustCompile(`(?is)<[a-z].*>`)

// New hydrates a surface from its field. A tag-bearing value is parsed as
// HTML, anything else is promoted from plain text. The paste pipeline worker
// starts immediately, Close stops it.
func New(field *Field, opts Options) *Surface {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Router == nil {
		opts.Router = NewEventRouter()
	}
	s := &Surface{
		field: field,
		opts:  opts,
		jobs:  make(chan *pasteJob, 16),
		done:  make(chan struct{}),
	}
	value := field.Value
	if value != "" && !looksHTML.MatchString(value) {
		value = plainTextToHTML(value)
	}
	s.container = newContainer(value)
	s.caret = Caret{Parent: s.container, Index: countChildren(s.container)}
	s.syncField()
	go s.processJobs()
	return s
}

// Close stops the paste worker. Queued jobs are finished first.
func (s *Surface) Close() {
	close(s.jobs)
	<-s.done
}

func newContainer(markup string) *xhtml.Node {
	container := &xhtml.Node{Type: xhtml.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range dom.ParseFragment(markup) {
		container.AppendChild(n)
	}
	return container
}

var blockSplit = regexp.MustCompile(`\n{2,}`)

// plainTextToHTML promotes stored plain text: blank-line-separated chunks
// become paragraphs, single newlines become line breaks.
func plainTextToHTML(text string) string {
	var b strings.Builder
	for _, block := range blockSplit.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(block), "\n", "<br/>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// HTML serializes the current document.
func (s *Surface) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dom.SerializeChildren(s.container)
}

// syncField is the single funnel from document to field. Callers hold s.mu.
func (s *Surface) syncField() {
	s.field.Value = dom.SerializeChildren(s.container)
}

// FlushFields copies every surface's serialization into its field. The form
// layer calls this right before submit.
func FlushFields(surfaces ...*Surface) {
	for _, s := range surfaces {
		s.mu.Lock()
		s.syncField()
		s.mu.Unlock()
	}
}

// ReplaceContent swaps the whole document, the editing host calls this when
// the surface content was rewritten outside our control. Selection and caret
// reset.
func (s *Surface) ReplaceContent(markup string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.container = newContainer(markup)
	s.caret = Caret{Parent: s.container, Index: countChildren(s.container)}
	s.sel.clear()
	s.syncField()
}

func countChildren(n *xhtml.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

// SetCaret places the insertion point. Invalid positions snap to document
// end on the next use.
func (s *Surface) SetCaret(parent *xhtml.Node, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caret = Caret{Parent: parent, Index: index}
}

// validCaret revalidates the caret against the live tree. Callers hold s.mu.
func (s *Surface) validCaret() Caret {
	c := s.caret
	if c.Parent == nil || !dom.Contains(s.container, c.Parent) {
		c = Caret{Parent: s.container, Index: countChildren(s.container)}
	}
	if n := countChildren(c.Parent); c.Index > n {
		c.Index = n
	}
	if c.Index < 0 {
		c.Index = 0
	}
	return c
}

// insertAtCaret splices nodes at the caret, caret ends up after the last
// inserted node. Callers hold s.mu.
func (s *Surface) insertAtCaret(nodes []*xhtml.Node) {
	c := s.validCaret()
	ref := c.Parent.FirstChild
	for i := 0; i < c.Index && ref != nil; i++ {
		ref = ref.NextSibling
	}
	for _, n := range nodes {
		dom.InsertBefore(c.Parent, n, ref)
	}
	s.caret = Caret{Parent: c.Parent, Index: c.Index + len(nodes)}
}

// InsertFragmentAtCaret parses markup and splices it at the caret.
func (s *Surface) InsertFragmentAtCaret(markup string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertAtCaret(dom.ParseFragment(markup))
	s.syncField()
}

// fullscreenMu guards the process-wide active fullscreen surface.
var (
	fullscreenMu     sync.Mutex
	fullscreenActive *Surface
)

// SetFullscreen toggles fullscreen for this surface. At most one surface is
// fullscreen at a time, entering on one exits any other.
func (s *Surface) SetFullscreen(on bool) {
	fullscreenMu.Lock()
	defer fullscreenMu.Unlock()
	if on {
		fullscreenActive = s
		return
	}
	if fullscreenActive == s {
		fullscreenActive = nil
	}
}

// Fullscreen reports whether this surface currently holds fullscreen.
func (s *Surface) Fullscreen() bool {
	fullscreenMu.Lock()
	defer fullscreenMu.Unlock()
	return fullscreenActive == s
}

// ExitFullscreen leaves fullscreen regardless of which surface holds it.
// This is the Escape key path.
func ExitFullscreen() {
	fullscreenMu.Lock()
	defer fullscreenMu.Unlock()
	fullscreenActive = nil
}

// ImagePercent is the width-percent mirror for the selected image.
func (s *Surface) ImagePercent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imagePercent
}

// TablePercent is the width-percent mirror for the selected table.
func (s *Surface) TablePercent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tablePercent
}
