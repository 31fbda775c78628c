package editor

import (
	"errors"
	"fmt"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"richedit/dom"
)

// State enumerates the selection machine.
type State int

const (
	Idle State = iota
	ImageSelected
	TableSelected
	ResizingImage
	ResizingTable
)

func (st State) String() string {
	switch st {
	case Idle:
		return "idle"
	case ImageSelected:
		return "image-selected"
	case TableSelected:
		return "table-selected"
	case ResizingImage:
		return "resizing-image"
	case ResizingTable:
		return "resizing-table"
	}
	return "?"
}

// Selection tracks the single selected image or table. Mutually exclusive,
// selecting one clears the other.
type Selection struct {
	state  State
	target *xhtml.Node
}

func (sel *Selection) clear() {
	sel.state = Idle
	sel.target = nil
}

// State reports the current machine state.
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.state
}

// Selected returns the selected element, nil when idle.
func (s *Surface) Selected() *xhtml.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revalidate()
	return s.sel.target
}

// revalidate clears the selection when the target left the live document.
// Callers hold s.mu.
func (s *Surface) revalidate() {
	if s.sel.target != nil && !dom.Contains(s.container, s.sel.target) {
		s.sel.clear()
	}
}

// Click drives selection transitions. A click on an image selects it, a
// click inside a table selects the table, anything else (including nil for a
// click outside the surface) returns to Idle. An open resize session always
// survives, pointer-up ends it, not clicks.
func (s *Surface) Click(n *xhtml.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return
	}
	if n == nil || !dom.Contains(s.container, n) {
		s.sel.clear()
		return
	}
	if dom.IsElement(n, atom.Img) {
		s.sel = Selection{state: ImageSelected, target: n}
		s.refreshPercent()
		return
	}
	if table := dom.Closest(n, s.container, atom.Table); table != nil {
		s.sel = Selection{state: TableSelected, target: table}
		s.refreshPercent()
		return
	}
	s.sel.clear()
}

// DoubleClickImage selects the image and resets its explicit sizing, the
// quick way back to intrinsic layout.
func (s *Surface) DoubleClickImage(n *xhtml.Node) {
	s.Click(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel.state != ImageSelected {
		return
	}
	resetImageStyle(s.sel.target)
	s.syncField()
}

// refreshPercent recomputes the width-percent mirror for the fresh
// selection. Callers hold s.mu.
func (s *Surface) refreshPercent() {
	if s.opts.Layout == nil || s.sel.target == nil {
		return
	}
	rect, ok := s.opts.Layout.BoundingRect(s.sel.target)
	if !ok {
		return
	}
	switch s.sel.state {
	case ImageSelected, ResizingImage:
		s.imagePercent = WidthPercent(rect.W, s.opts.Layout.ParentWidth(s.sel.target), 1, 100)
	case TableSelected, ResizingTable:
		s.tablePercent = WidthPercent(rect.W, s.opts.Layout.SurfaceWidth(), 1, 200)
	}
}

// Overlay thresholds below which handles are hidden, tiny targets are
// impossible to grab without covering them entirely.
const (
	minImageOverlay = 8
	minTableOverlay = 20
)

// Handle is one positioned overlay marker.
type Handle struct {
	Dir Direction
	Pos Point
}

// Overlay is the projected handle set for the current selection.
type Overlay struct {
	Outline Rect
	Handles []Handle
}

// Overlay projects the selection onto handle positions. Pure recomputation
// from live layout, call it after selection change, resize delta, scroll or
// window resize. Nil means nothing to draw.
func (s *Surface) Overlay() *Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revalidate()
	if s.sel.target == nil || s.opts.Layout == nil {
		return nil
	}
	rect, ok := s.opts.Layout.BoundingRect(s.sel.target)
	if !ok {
		return nil
	}
	switch s.sel.state {
	case ImageSelected, ResizingImage:
		if rect.W < minImageOverlay || rect.H < minImageOverlay {
			return nil
		}
		ov := &Overlay{Outline: rect, Handles: make([]Handle, 0, len(Directions))}
		for _, d := range Directions {
			ov.Handles = append(ov.Handles, Handle{Dir: d, Pos: HandlePoint(rect, d)})
		}
		return ov
	case TableSelected, ResizingTable:
		if rect.W < minTableOverlay || rect.H < minTableOverlay {
			return nil
		}
		return &Overlay{
			Outline: rect,
			Handles: []Handle{{Dir: SouthEast, Pos: HandlePoint(rect, SouthEast)}},
		}
	}
	return nil
}

// resizeSession is the transient pointer-down-to-pointer-up drag state. At
// most one exists per surface.
type resizeSession struct {
	target *xhtml.Node
	table  bool
	dir    Direction
	origin Point
	start  Rect
	aspect float64

	moveID, upID int

	lastW, lastH float64
}

var errNoResizeTarget = errors.New("no resizable selection")

// StartResize opens a drag session on a handle of the current selection.
// Tables only expose the south-east handle. Listeners go onto the event
// router and are removed when the session ends.
func (s *Surface) StartResize(d Direction, ev PointerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return errors.New("resize session already open")
	}
	s.revalidate()
	if s.sel.target == nil || s.opts.Layout == nil {
		return errNoResizeTarget
	}
	if s.sel.state == TableSelected && d != SouthEast {
		return fmt.Errorf("table has no %s handle", d)
	}
	rect, ok := s.opts.Layout.BoundingRect(s.sel.target)
	if !ok {
		s.sel.clear()
		return errNoResizeTarget
	}

	session := &resizeSession{
		target: s.sel.target,
		table:  s.sel.state == TableSelected,
		dir:    d,
		origin: ev.Pos,
		start:  rect,
		lastW:  rect.W,
		lastH:  rect.H,
	}
	if rect.H > 0 {
		session.aspect = rect.W / rect.H
	}
	if session.table {
		s.sel.state = ResizingTable
	} else {
		s.sel.state = ResizingImage
	}
	session.moveID = s.opts.Router.OnMove(s.resizeMove)
	session.upID = s.opts.Router.OnUp(s.endResize)
	s.session = session
	return nil
}

func (s *Surface) resizeMove(ev PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session
	if sess == nil {
		return
	}
	delta := Point{X: ev.Pos.X - sess.origin.X, Y: ev.Pos.Y - sess.origin.Y}

	if sess.table {
		w := ResizeTable(sess.start.W, delta.X, s.opts.Layout.SurfaceWidth(),
			float64(s.opts.Editor.MinTableWidth), s.opts.Editor.TableMaxFactor)
		sess.lastW = w
		dom.EditStyle(sess.target, func(st *dom.Style) {
			st.Set("width", px(w))
		})
		s.tablePercent = WidthPercent(w, s.opts.Layout.SurfaceWidth(), 1, 200)
		return
	}

	bounds := ImageBounds{
		MinWidth:    float64(s.opts.Editor.MinImageWidth),
		MinHeight:   float64(s.opts.Editor.MinImageHeight),
		ParentWidth: s.opts.Layout.ParentWidth(sess.target),
	}
	// Aspect lock is the default, the modifier suspends it per sample.
	w, h := ResizeImage(sess.start, delta, sess.dir, sess.aspect, !ev.Unlock, bounds)
	sess.lastW, sess.lastH = w, h
	dom.EditStyle(sess.target, func(st *dom.Style) {
		st.Set("width", px(w))
		st.Set("height", px(h))
	})
	s.imagePercent = WidthPercent(w, bounds.ParentWidth, 1, 100)
}

// endResize is the single exit path for a session: remove listeners, commit
// the final style, return to the selected state, re-serialize.
func (s *Surface) endResize(PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session
	if sess == nil {
		return
	}
	s.opts.Router.Remove(sess.moveID)
	s.opts.Router.Remove(sess.upID)
	s.session = nil

	if sess.table {
		dom.EditStyle(sess.target, func(st *dom.Style) {
			st.Set("width", px(sess.lastW))
			st.Set("min-width", "0")
			st.Set("max-width", "none")
		})
		s.sel.state = TableSelected
	} else {
		dom.EditStyle(sess.target, func(st *dom.Style) {
			st.Set("width", px(sess.lastW))
			st.Set("height", "auto")
			st.Set("max-width", "100%")
		})
		s.sel.state = ImageSelected
	}
	s.syncField()
}

func px(v float64) string {
	return fmt.Sprintf("%dpx", int(v))
}
