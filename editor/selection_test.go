package editor

import (
	"strings"
	"testing"

	"golang.org/x/net/html/atom"

	"richedit/dom"
)

const selectionMarkup = `<p><img src="/uploads/a.png"></p><div class="table-scroll"><table><tbody><tr><td>cell</td></tr></tbody></table></div>`

func TestSelectionMutualExclusivity(t *testing.T) {
	rig := newTestRig(t, selectionMarkup)
	img := rig.firstElement(t, atom.Img)
	cell := rig.firstElement(t, atom.Td)

	rig.surface.Click(img)
	if rig.surface.State() != ImageSelected {
		t.Fatalf("state: %s", rig.surface.State())
	}

	// Clicking inside the table selects the table and clears the image,
	// for any interleaving.
	rig.surface.Click(cell)
	if rig.surface.State() != TableSelected {
		t.Fatalf("state: %s", rig.surface.State())
	}
	if sel := rig.surface.Selected(); !dom.IsElement(sel, atom.Table) {
		t.Fatalf("selected %v", sel)
	}

	rig.surface.Click(img)
	if rig.surface.State() != ImageSelected {
		t.Fatalf("state: %s", rig.surface.State())
	}

	// Outside click returns to idle.
	rig.surface.Click(nil)
	if rig.surface.State() != Idle {
		t.Fatalf("state: %s", rig.surface.State())
	}

	// A click on a plain paragraph clears too.
	rig.surface.Click(img)
	rig.surface.Click(rig.firstElement(t, atom.P))
	if rig.surface.State() != Idle {
		t.Fatalf("state: %s", rig.surface.State())
	}
}

func TestSelectionClearsOnDetach(t *testing.T) {
	rig := newTestRig(t, selectionMarkup)
	img := rig.firstElement(t, atom.Img)

	rig.surface.Click(img)
	dom.Detach(img)
	if sel := rig.surface.Selected(); sel != nil {
		t.Fatalf("detached element still selected: %v", sel)
	}
	if rig.surface.State() != Idle {
		t.Fatalf("state: %s", rig.surface.State())
	}
}

func TestOverlayProjection(t *testing.T) {
	rig := newTestRig(t, selectionMarkup)
	img := rig.firstElement(t, atom.Img)
	table := rig.firstElement(t, atom.Table)

	t.Run("image gets eight handles", func(t *testing.T) {
		rig.layout.rects[img] = Rect{X: 5, Y: 10, W: 200, H: 100}
		rig.surface.Click(img)
		ov := rig.surface.Overlay()
		if ov == nil {
			t.Fatal("no overlay")
		}
		if len(ov.Handles) != 8 {
			t.Fatalf("got %d handles", len(ov.Handles))
		}
		if ov.Outline != (Rect{X: 5, Y: 10, W: 200, H: 100}) {
			t.Fatalf("outline %+v", ov.Outline)
		}
	})

	t.Run("tiny image hides overlay", func(t *testing.T) {
		rig.layout.rects[img] = Rect{W: 7, H: 7}
		rig.surface.Click(img)
		if ov := rig.surface.Overlay(); ov != nil {
			t.Fatalf("overlay for 7x7 image: %+v", ov)
		}
	})

	t.Run("table gets one corner handle", func(t *testing.T) {
		rig.layout.rects[table] = Rect{X: 0, Y: 0, W: 400, H: 200}
		rig.surface.Click(rig.firstElement(t, atom.Td))
		ov := rig.surface.Overlay()
		if ov == nil {
			t.Fatal("no overlay")
		}
		if len(ov.Handles) != 1 || ov.Handles[0].Dir != SouthEast {
			t.Fatalf("handles %+v", ov.Handles)
		}
	})

	t.Run("tiny table hides overlay", func(t *testing.T) {
		rig.layout.rects[table] = Rect{W: 19, H: 19}
		rig.surface.Click(rig.firstElement(t, atom.Td))
		if ov := rig.surface.Overlay(); ov != nil {
			t.Fatalf("overlay for 19x19 table: %+v", ov)
		}
	})

	t.Run("no selection no overlay", func(t *testing.T) {
		rig.surface.Click(nil)
		if ov := rig.surface.Overlay(); ov != nil {
			t.Fatalf("overlay while idle: %+v", ov)
		}
	})
}

func TestImageResizeSession(t *testing.T) {
	rig := newTestRig(t, selectionMarkup)
	img := rig.firstElement(t, atom.Img)
	rig.layout.rects[img] = Rect{X: 0, Y: 0, W: 200, H: 100}
	rig.surface.Click(img)

	if err := rig.surface.StartResize(East, PointerEvent{Pos: Point{X: 200, Y: 50}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rig.surface.State() != ResizingImage {
		t.Fatalf("state: %s", rig.surface.State())
	}
	if rig.router.ListenerCount() != 2 {
		t.Fatalf("listeners: %d", rig.router.ListenerCount())
	}

	// Only one session at a time.
	if err := rig.surface.StartResize(West, PointerEvent{}); err == nil {
		t.Fatal("second session accepted")
	}

	rig.router.DispatchMove(PointerEvent{Pos: Point{X: 300, Y: 50}})
	style := dom.StyleOf(img)
	if style.Get("width") != "300px" {
		t.Fatalf("live width: %q", style.Get("width"))
	}
	if style.Get("height") != "150px" {
		t.Fatalf("live height: %q", style.Get("height"))
	}
	if pct := rig.surface.ImagePercent(); pct != 50 {
		t.Fatalf("percent mirror: %d", pct)
	}

	rig.router.DispatchUp(PointerEvent{})
	if rig.surface.State() != ImageSelected {
		t.Fatalf("state after up: %s", rig.surface.State())
	}
	if rig.router.ListenerCount() != 0 {
		t.Fatalf("listener leak: %d", rig.router.ListenerCount())
	}

	style = dom.StyleOf(img)
	if style.Get("width") != "300px" || style.Get("height") != "auto" || style.Get("max-width") != "100%" {
		t.Fatalf("committed style: %q", style.String())
	}
	if !strings.Contains(rig.field.Value, "width: 300px") {
		t.Fatalf("field not synced: %q", rig.field.Value)
	}
}

func TestResizeAspectUnlockModifier(t *testing.T) {
	rig := newTestRig(t, selectionMarkup)
	img := rig.firstElement(t, atom.Img)
	rig.layout.rects[img] = Rect{W: 200, H: 100}
	rig.surface.Click(img)

	if err := rig.surface.StartResize(SouthEast, PointerEvent{Pos: Point{X: 200, Y: 100}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Modifier held: height follows the pointer, not the ratio.
	rig.router.DispatchMove(PointerEvent{Pos: Point{X: 250, Y: 110}, Unlock: true})
	style := dom.StyleOf(img)
	if style.Get("width") != "250px" || style.Get("height") != "110px" {
		t.Fatalf("unlocked style: %q", style.String())
	}
	// Modifier released mid-session: lock resumes on the next sample.
	rig.router.DispatchMove(PointerEvent{Pos: Point{X: 250, Y: 110}})
	if style = dom.StyleOf(img); style.Get("height") != "125px" {
		t.Fatalf("relocked style: %q", style.String())
	}
	rig.router.DispatchUp(PointerEvent{})
}

func TestRepeatedSessionsDoNotLeakListeners(t *testing.T) {
	rig := newTestRig(t, selectionMarkup)
	img := rig.firstElement(t, atom.Img)
	rig.layout.rects[img] = Rect{W: 200, H: 100}
	rig.surface.Click(img)

	for i := 0; i < 5; i++ {
		if err := rig.surface.StartResize(SouthEast, PointerEvent{}); err != nil {
			t.Fatalf("session %d: %v", i, err)
		}
		rig.router.DispatchMove(PointerEvent{Pos: Point{X: float64(i), Y: 0}})
		rig.router.DispatchUp(PointerEvent{})
	}
	if rig.router.ListenerCount() != 0 {
		t.Fatalf("listener leak after repeated sessions: %d", rig.router.ListenerCount())
	}
}

func TestTableResizeSession(t *testing.T) {
	rig := newTestRig(t, selectionMarkup)
	table := rig.firstElement(t, atom.Table)
	rig.layout.rects[table] = Rect{W: 400, H: 200}
	rig.surface.Click(rig.firstElement(t, atom.Td))

	// Tables expose only the south-east handle.
	if err := rig.surface.StartResize(North, PointerEvent{}); err == nil {
		t.Fatal("north handle accepted for table")
	}

	if err := rig.surface.StartResize(SouthEast, PointerEvent{Pos: Point{X: 400, Y: 200}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rig.router.DispatchMove(PointerEvent{Pos: Point{X: 600, Y: 400}})
	if got := dom.StyleOf(table).Get("width"); got != "600px" {
		t.Fatalf("live width: %q", got)
	}
	if pct := rig.surface.TablePercent(); pct != 75 {
		t.Fatalf("percent mirror: %d", pct)
	}

	rig.router.DispatchUp(PointerEvent{})
	style := dom.StyleOf(table)
	if style.Get("width") != "600px" || style.Get("min-width") != "0" || style.Get("max-width") != "none" {
		t.Fatalf("committed style: %q", style.String())
	}
	if rig.surface.State() != TableSelected {
		t.Fatalf("state: %s", rig.surface.State())
	}
}

func TestTableResizeHonorsMaxFactor(t *testing.T) {
	rig := newTestRig(t, selectionMarkup)
	rig.surface.opts.Editor.TableMaxFactor = 3.0
	table := rig.firstElement(t, atom.Table)
	rig.layout.rects[table] = Rect{W: 400, H: 200}
	rig.surface.Click(rig.firstElement(t, atom.Td))

	if err := rig.surface.StartResize(SouthEast, PointerEvent{Pos: Point{X: 400, Y: 200}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Drag far past any ceiling, the configured factor times the 800 wide
	// surface caps the width.
	rig.router.DispatchMove(PointerEvent{Pos: Point{X: 5400, Y: 200}})
	rig.router.DispatchUp(PointerEvent{})
	if got := dom.StyleOf(table).Get("width"); got != "2400px" {
		t.Fatalf("committed width: %q, want 2400px", got)
	}
}

func TestResizeWithoutSelection(t *testing.T) {
	rig := newTestRig(t, selectionMarkup)
	if err := rig.surface.StartResize(East, PointerEvent{}); err == nil {
		t.Fatal("session started with nothing selected")
	}
}

func TestDoubleClickResetsImage(t *testing.T) {
	rig := newTestRig(t, `<p><img src="/uploads/a.png" style="width: 300px; height: 200px" width="300"></p>`)
	img := rig.firstElement(t, atom.Img)

	rig.surface.DoubleClickImage(img)
	if rig.surface.State() != ImageSelected {
		t.Fatalf("state: %s", rig.surface.State())
	}
	if dom.HasAttr(img, "width") || dom.HasAttr(img, "style") {
		t.Fatalf("sizing survived reset: %q", dom.Serialize(img))
	}
}
