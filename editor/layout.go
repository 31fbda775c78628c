package editor

import "golang.org/x/net/html"

// Layout projects document nodes onto surface geometry. The editor core
// never computes layout itself, it asks the host (a browser bridge in
// production, a fake in tests) and treats the answers as a snapshot.
type Layout interface {
	// BoundingRect returns the current box of a node, ok is false when the
	// node is not laid out (detached, display none).
	BoundingRect(n *html.Node) (Rect, bool)
	// ParentWidth returns the content width of the node's nearest laid out
	// ancestor.
	ParentWidth(n *html.Node) float64
	// SurfaceWidth returns the content width of the editable root.
	SurfaceWidth() float64
}

// PointerEvent is one pointer sample delivered to the event router. Unlock
// mirrors the modifier key that suspends aspect lock, sampled per event.
type PointerEvent struct {
	Pos    Point
	Unlock bool
}

// EventRouter fans pointer events out to transient listeners. A resize
// session installs move/up listeners here and must remove them when it ends,
// ListenerCount exists so that can be verified.
type EventRouter struct {
	nextID int
	move   map[int]func(PointerEvent)
	up     map[int]func(PointerEvent)
}

func NewEventRouter() *EventRouter {
	return &EventRouter{
		move: make(map[int]func(PointerEvent)),
		up:   make(map[int]func(PointerEvent)),
	}
}

func (r *EventRouter) OnMove(fn func(PointerEvent)) int {
	r.nextID++
	r.move[r.nextID] = fn
	return r.nextID
}

func (r *EventRouter) OnUp(fn func(PointerEvent)) int {
	r.nextID++
	r.up[r.nextID] = fn
	return r.nextID
}

func (r *EventRouter) Remove(id int) {
	delete(r.move, id)
	delete(r.up, id)
}

func (r *EventRouter) DispatchMove(ev PointerEvent) {
	for _, fn := range r.move {
		fn(ev)
	}
}

func (r *EventRouter) DispatchUp(ev PointerEvent) {
	// Up listeners may remove themselves while we iterate, snapshot first.
	fns := make([]func(PointerEvent), 0, len(r.up))
	for _, fn := range r.up {
		fns = append(fns, fn)
	}
	for _, fn := range fns {
		fn(ev)
	}
}

func (r *EventRouter) ListenerCount() int {
	return len(r.move) + len(r.up)
}
