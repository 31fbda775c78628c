package normalize

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"

	"richedit/config"
	"richedit/ingest"
	"richedit/state"
)

// stubGateway stores nothing, it just hands out predictable URLs.
type stubGateway struct {
	uploads int
	imports int
}

func (g *stubGateway) UploadImage(_ context.Context, _ *ingest.DataURI, _ string) (*ingest.Asset, error) {
	g.uploads++
	return &ingest.Asset{URL: fmt.Sprintf("/uploads/stored-%d.png", g.uploads)}, nil
}

func (g *stubGateway) UploadMedia(_ context.Context, _ *ingest.DataURI, _ string) (*ingest.Asset, error) {
	g.uploads++
	return &ingest.Asset{URL: fmt.Sprintf("/uploads/stored-%d.mp4", g.uploads)}, nil
}

func (g *stubGateway) ImportRemoteURL(_ context.Context, _ string) (*ingest.Asset, error) {
	g.imports++
	return &ingest.Asset{URL: fmt.Sprintf("/uploads/imported-%d.png", g.imports)}, nil
}

func testEnvContext(t *testing.T) context.Context {
	t.Helper()
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Cfg = &config.Config{
		Editor: config.EditorConfig{
			MinImageWidth:  40,
			MinImageHeight: 30,
			MinTableWidth:  120,
			TableMaxFactor: 2.0,
			MinFontSize:    10,
			MaxFontSize:    48,
			LocalPrefixes:  []string{"/uploads/", "/images/"},
		},
	}
	env.Log = zaptest.NewLogger(t)
	return ctx
}

const tinyPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func TestNormalizeDocument(t *testing.T) {
	ctx := testEnvContext(t)
	env := state.EnvFromContext(ctx)
	gw := &stubGateway{}

	// Legacy document: archaic charset, presentational sizing, inline image.
	markup := `<html><head><meta charset="windows-1251"></head><body>` +
		`<p>Привет</p>` +
		`<img src="` + tinyPNG + `" width="300" height="200">` +
		`</body></html>`
	encoded, err := charmap.Windows1251.NewEncoder().String(markup)
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}

	out, err := NormalizeDocument(ctx, strings.NewReader(encoded), gw, env, env.Log)
	if err != nil {
		t.Fatalf("NormalizeDocument: %v", err)
	}
	if !strings.Contains(out, "Привет") {
		t.Errorf("charset was not decoded: %q", out)
	}
	if strings.Contains(out, "data:") {
		t.Errorf("inline image survived normalization: %q", out)
	}
	if !strings.Contains(out, "/uploads/stored-1.png") {
		t.Errorf("inline image was not uploaded: %q", out)
	}
	if strings.Contains(out, `width="`) {
		t.Errorf("presentational sizing survived: %q", out)
	}
	if gw.uploads != 1 {
		t.Errorf("uploads = %d, want 1", gw.uploads)
	}
}

func TestOutputPath(t *testing.T) {
	dst := filepath.FromSlash("/out")
	cases := []struct {
		src    string
		noDirs bool
		want   string
		bad    bool
	}{
		{src: "page.html", want: "/out/page.html"},
		{src: "sub/deep/page.html", want: "/out/sub/deep/page.html"},
		{src: "sub/deep/page.html", noDirs: true, want: "/out/page.html"},
		{src: "../escape.html", bad: true},
	}
	for _, c := range cases {
		got, err := outputPath(dst, c.src, c.noDirs)
		if c.bad {
			if err == nil {
				t.Errorf("outputPath(%q) accepted escaping path: %q", c.src, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("outputPath(%q): %v", c.src, err)
			continue
		}
		if got != filepath.FromSlash(c.want) {
			t.Errorf("outputPath(%q) = %q, want %q", c.src, got, c.want)
		}
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating fixture dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}
}

func TestProcessDirectory(t *testing.T) {
	ctx := testEnvContext(t)
	log := state.EnvFromContext(ctx).Log

	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.html":     `<p>alpha</p><img src="/images/a.png" width="10">`,
		"sub/b.html": `<p>beta</p>`,
		"note.txt":   "not a document",
	})

	if err := process(ctx, src, dst, &stubGateway{}, log); err != nil {
		t.Fatalf("process: %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dst, "a.html"))
	if err != nil {
		t.Fatalf("output a.html missing: %v", err)
	}
	if strings.Contains(string(body), `width="`) {
		t.Errorf("a.html not normalized: %q", body)
	}
	if _, err := os.Stat(filepath.Join(dst, "sub", "b.html")); err != nil {
		t.Errorf("nested output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "note.txt")); err == nil {
		t.Error("non-document was copied to destination")
	}
}

func TestProcessDirectoryFlattened(t *testing.T) {
	ctx := testEnvContext(t)
	env := state.EnvFromContext(ctx)
	env.NoDirs = true

	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"sub/deep/b.html": `<p>beta</p>`})

	if err := process(ctx, src, dst, &stubGateway{}, env.Log); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "b.html")); err != nil {
		t.Errorf("flattened output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "sub")); err == nil {
		t.Error("directory structure was recreated despite nodirs")
	}
}

func TestProcessSkipsExistingWithoutOverwrite(t *testing.T) {
	ctx := testEnvContext(t)
	env := state.EnvFromContext(ctx)

	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"a.html": `<p>new</p>`})
	writeTree(t, dst, map[string]string{"a.html": "keep me"})

	if err := process(ctx, src, dst, &stubGateway{}, env.Log); err != nil {
		t.Fatalf("process: %v", err)
	}
	body, _ := os.ReadFile(filepath.Join(dst, "a.html"))
	if string(body) != "keep me" {
		t.Errorf("existing destination was replaced: %q", body)
	}

	env.Overwrite = true
	if err := process(ctx, src, dst, &stubGateway{}, env.Log); err != nil {
		t.Fatalf("process with overwrite: %v", err)
	}
	body, _ = os.ReadFile(filepath.Join(dst, "a.html"))
	if !strings.Contains(string(body), "new") {
		t.Errorf("destination was not replaced with overwrite: %q", body)
	}
}

func writeTestArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating archive member: %v", err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatalf("writing archive member: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
}

func TestProcessArchive(t *testing.T) {
	ctx := testEnvContext(t)
	log := state.EnvFromContext(ctx).Log

	dir := t.TempDir()
	dst := t.TempDir()
	arc := filepath.Join(dir, "site.zip")
	writeTestArchive(t, arc, map[string]string{
		"pages/index.html": `<p>home</p><img src="/images/home.png" width="10">`,
		"styles/site.css":  "p { color: red }",
	})

	if err := process(ctx, arc, dst, &stubGateway{}, log); err != nil {
		t.Fatalf("process: %v", err)
	}
	body, err := os.ReadFile(filepath.Join(dst, "pages", "index.html"))
	if err != nil {
		t.Fatalf("archive output missing: %v", err)
	}
	if strings.Contains(string(body), `width="`) {
		t.Errorf("archive member not normalized: %q", body)
	}
	if _, err := os.Stat(filepath.Join(dst, "styles", "site.css")); err == nil {
		t.Error("non-document member was extracted")
	}
}

func TestProcessArchiveRejectsUnsafeMembers(t *testing.T) {
	ctx := testEnvContext(t)
	log := state.EnvFromContext(ctx).Log

	dir := t.TempDir()
	dst := t.TempDir()
	arc := filepath.Join(dir, "evil.zip")
	writeTestArchive(t, arc, map[string]string{
		"../escape.html": `<p>out</p>`,
	})

	if err := process(ctx, arc, dst, &stubGateway{}, log); err == nil {
		t.Fatal("expected error for archive with unsafe member paths")
	}
}
