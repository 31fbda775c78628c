package editor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"richedit/config"
	"richedit/dom"
	"richedit/ingest"
)

// fakeLayout answers geometry queries from a fixed table.
type fakeLayout struct {
	rects    map[*xhtml.Node]Rect
	parentW  float64
	surfaceW float64
}

func newFakeLayout() *fakeLayout {
	return &fakeLayout{rects: make(map[*xhtml.Node]Rect), parentW: 600, surfaceW: 800}
}

func (l *fakeLayout) BoundingRect(n *xhtml.Node) (Rect, bool) {
	r, ok := l.rects[n]
	return r, ok
}

func (l *fakeLayout) ParentWidth(*xhtml.Node) float64 { return l.parentW }
func (l *fakeLayout) SurfaceWidth() float64           { return l.surfaceW }

// fakeGateway records uploads and lets tests force failures or stall the
// network stage.
type fakeGateway struct {
	mu         sync.Mutex
	uploads    []string
	imports    []string
	failUpload error
	failImport error
	// gate, when set, blocks every call until released.
	gate chan struct{}
}

func (g *fakeGateway) wait() {
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (g *fakeGateway) UploadImage(_ context.Context, payload *ingest.DataURI, name string) (*ingest.Asset, error) {
	g.wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failUpload != nil {
		return nil, g.failUpload
	}
	g.uploads = append(g.uploads, name)
	url := fmt.Sprintf("/uploads/stored-%d.png", len(g.uploads))
	return &ingest.Asset{URL: url, MIME: payload.MIME}, nil
}

func (g *fakeGateway) UploadMedia(ctx context.Context, payload *ingest.DataURI, name string) (*ingest.Asset, error) {
	return g.UploadImage(ctx, payload, name)
}

func (g *fakeGateway) ImportRemoteURL(_ context.Context, remote string) (*ingest.Asset, error) {
	g.wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failImport != nil {
		return nil, g.failImport
	}
	g.imports = append(g.imports, remote)
	return &ingest.Asset{URL: fmt.Sprintf("/uploads/imported-%d.png", len(g.imports))}, nil
}

func (g *fakeGateway) uploadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.uploads)
}

func testEditorConfig() config.EditorConfig {
	return config.EditorConfig{
		MinImageWidth:  40,
		MinImageHeight: 30,
		MinTableWidth:  120,
		TableMaxFactor: 2.0,
		MinFontSize:    10,
		MaxFontSize:    48,
		LocalPrefixes:  []string{"/uploads/", "/images/"},
	}
}

type testRig struct {
	surface *Surface
	field   *Field
	layout  *fakeLayout
	router  *EventRouter
	gateway *fakeGateway
}

func newTestRig(t *testing.T, initial string) *testRig {
	t.Helper()

	rig := &testRig{
		field:   &Field{Value: initial},
		layout:  newFakeLayout(),
		router:  NewEventRouter(),
		gateway: &fakeGateway{},
	}
	rig.surface = New(rig.field, Options{
		Layout:  rig.layout,
		Router:  rig.router,
		Gateway: rig.gateway,
		Editor:  testEditorConfig(),
		Log:     zaptest.NewLogger(t),
	})
	t.Cleanup(rig.surface.Close)
	return rig
}

// firstElement digs the first element with the given atom out of the live
// document.
func (rig *testRig) firstElement(t *testing.T, a atom.Atom) *xhtml.Node {
	t.Helper()

	rig.surface.mu.Lock()
	defer rig.surface.mu.Unlock()
	if els := dom.Elements(rig.surface.container, a); len(els) > 0 {
		return els[0]
	}
	t.Fatalf("no <%s> in document %q", a, dom.SerializeChildren(rig.surface.container))
	return nil
}
