package editor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"richedit/dom"
	"richedit/ingest"
)

// Item is one raw clipboard media entry.
type Item struct {
	MIME string
	Data []byte
	Name string
}

// Clipboard is a transient paste payload: an HTML fragment plus raw image
// items, or a single picked file. Consumed by exactly one paste.
type Clipboard struct {
	HTML  string
	Items []Item
	File  *Item
}

// PasteResult reports how one paste went. Err aggregates per-image failures
// and is informational, a paste never fails as a whole.
type PasteResult struct {
	Message string
	Err     error
}

type pasteJob struct {
	ctx    context.Context
	clip   Clipboard
	result chan PasteResult
}

// Paste queues a clipboard payload for normalization. Jobs on one surface
// run strictly in arrival order, a second paste can never interleave with
// the first. The returned channel delivers the result once the mutation has
// settled.
func (s *Surface) Paste(ctx context.Context, clip Clipboard) <-chan PasteResult {
	job := &pasteJob{ctx: ctx, clip: clip, result: make(chan PasteResult, 1)}
	s.jobs <- job
	return job.result
}

func (s *Surface) processJobs() {
	defer close(s.done)
	for job := range s.jobs {
		job.result <- s.runPaste(job.ctx, job.clip)
	}
}

func (s *Surface) runPaste(ctx context.Context, clip Clipboard) PasteResult {
	if strings.TrimSpace(clip.HTML) == "" {
		return s.pasteRawMedia(ctx, clip)
	}

	// Detached scratch container so table wrapping can splice around
	// root-level tables too.
	frag := &xhtml.Node{Type: xhtml.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range dom.ParseFragment(clip.HTML) {
		frag.AppendChild(n)
	}
	dom.NormalizeSizing(frag)
	origin := dom.SourceOrigin([]*xhtml.Node{frag})
	imgs := dom.Elements(frag, atom.Img)

	plans := make([]*imagePlan, len(imgs))
	for i, img := range imgs {
		raw := dom.ImageSourceCandidate(img)
		plans[i] = &imagePlan{
			img:      img,
			resolved: dom.ResolveImageSource(raw, origin),
		}
	}

	// Network stage runs concurrently per image. The fragment is still
	// detached so nothing here can race with the live document, final
	// attribute writes happen below in document order.
	s.resolveConcurrently(ctx, plans)

	var errs error
	itemIdx := 0
	failed := 0
	for _, plan := range plans {
		if plan.err != nil {
			errs = multierr.Append(errs, plan.err)
		}
		src, ok := s.finishPlan(ctx, plan, clip.Items, &itemIdx)
		if !ok {
			failed++
			// A data: or blob: source that could not be stored must not
			// survive into the document, leave the image blank instead.
			if strings.HasPrefix(plan.resolved, "data:") || strings.HasPrefix(plan.resolved, "blob:") {
				dom.RemoveAttr(plan.img, "src")
			}
			continue
		}
		if src != "" {
			dom.SetAttr(plan.img, "src", src)
		}
	}

	dom.WrapTablesForScroll(frag)

	var nodes []*xhtml.Node
	for c := frag.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, c)
	}

	s.mu.Lock()
	s.insertAtCaret(nodes)
	s.syncField()
	s.mu.Unlock()

	msg := fmt.Sprintf("Pasted, %d image(s) processed", len(imgs))
	if failed > 0 {
		msg = fmt.Sprintf("%s, %d unresolved", msg, failed)
	}
	if errs != nil {
		s.opts.Log.Warn("Paste finished with unresolved images", zap.Error(errs))
	}
	return PasteResult{Message: msg, Err: errs}
}

// imagePlan carries one image through the pipeline stages.
type imagePlan struct {
	img      *xhtml.Node
	resolved string
	newSrc   string
	done     bool // network stage produced newSrc
	err      error
}

func (s *Surface) resolveConcurrently(ctx context.Context, plans []*imagePlan) {
	running := 0
	results := make(chan struct{}, len(plans))
	for _, plan := range plans {
		if !s.needsNetwork(plan.resolved) {
			continue
		}
		running++
		go func(p *imagePlan) {
			p.newSrc, p.err = s.resolveSource(ctx, p.resolved)
			p.done = p.err == nil
			results <- struct{}{}
		}(plan)
	}
	for ; running > 0; running-- {
		<-results
	}
}

func (s *Surface) needsNetwork(src string) bool {
	switch {
	case src == "":
		return false
	case s.isLocal(src):
		return false
	case strings.HasPrefix(src, "data:image/"),
		strings.HasPrefix(src, "blob:"),
		dom.IsAbsoluteHTTP(src):
		return true
	}
	return false
}

func (s *Surface) isLocal(src string) bool {
	for _, prefix := range s.opts.Editor.LocalPrefixes {
		if strings.HasPrefix(src, prefix) {
			return true
		}
	}
	return false
}

// resolveSource is the per-image network stage: whatever the source shape,
// the result is a locally hosted URL.
func (s *Surface) resolveSource(ctx context.Context, src string) (string, error) {
	if s.opts.Gateway == nil {
		return "", fmt.Errorf("no gateway configured: %w", ingest.ErrFetchFailed)
	}
	switch {
	case strings.HasPrefix(src, "data:image/"):
		payload, err := ingest.ParseDataURI(src)
		if err != nil {
			return "", err
		}
		asset, err := s.opts.Gateway.UploadImage(ctx, payload, "")
		if err != nil {
			return "", err
		}
		return asset.URL, nil
	case strings.HasPrefix(src, "blob:"):
		if s.opts.Blobs == nil {
			return "", fmt.Errorf("no blob resolver for %q: %w", src, ingest.ErrReadFailure)
		}
		payload, err := s.opts.Blobs.Resolve(src)
		if err != nil {
			return "", fmt.Errorf("%v: %w", err, ingest.ErrReadFailure)
		}
		asset, err := s.opts.Gateway.UploadImage(ctx, payload, "")
		if err != nil {
			return "", err
		}
		return asset.URL, nil
	case dom.IsAbsoluteHTTP(src):
		asset, err := s.opts.Gateway.ImportRemoteURL(ctx, src)
		if err != nil {
			return "", err
		}
		return asset.URL, nil
	}
	return "", fmt.Errorf("unresolvable source %q", src)
}

// finishPlan settles one image after the network stage. Fallback precedence
// on failure: the next unused raw clipboard item, then absolute-URL
// passthrough, then leave the image as it came. The paste itself never
// fails.
func (s *Surface) finishPlan(ctx context.Context, plan *imagePlan, items []Item, itemIdx *int) (string, bool) {
	if plan.done {
		return plan.newSrc, true
	}
	if s.isLocal(plan.resolved) {
		return plan.resolved, true
	}
	if url, err := s.uploadNextItem(ctx, items, itemIdx); err == nil && url != "" {
		return url, true
	}
	if dom.IsAbsoluteHTTP(plan.resolved) {
		return plan.resolved, true
	}
	return "", false
}

// uploadNextItem consumes the next unused raw clipboard image item. Returns
// "" when none is left.
func (s *Surface) uploadNextItem(ctx context.Context, items []Item, itemIdx *int) (string, error) {
	for *itemIdx < len(items) {
		item := items[*itemIdx]
		*itemIdx++
		if !strings.HasPrefix(item.MIME, "image/") || s.opts.Gateway == nil {
			continue
		}
		asset, err := s.opts.Gateway.UploadImage(ctx, &ingest.DataURI{MIME: item.MIME, Data: item.Data}, item.Name)
		if err != nil {
			return "", err
		}
		return asset.URL, nil
	}
	return "", nil
}

// pasteRawMedia handles a paste or file pick that carries no HTML: upload
// the single file and insert a bare element at the caret.
func (s *Surface) pasteRawMedia(ctx context.Context, clip Clipboard) PasteResult {
	item := clip.File
	if item == nil && len(clip.Items) > 0 {
		item = &clip.Items[0]
	}
	if item == nil || len(item.Data) == 0 {
		return PasteResult{Message: "Nothing to paste", Err: ingest.ErrNoClipboardMedia}
	}
	if s.opts.Gateway == nil {
		return PasteResult{Message: "Upload unavailable", Err: ingest.ErrFetchFailed}
	}

	payload := &ingest.DataURI{MIME: item.MIME, Data: item.Data}
	switch {
	case strings.HasPrefix(item.MIME, "image/"):
		asset, err := s.opts.Gateway.UploadImage(ctx, payload, item.Name)
		if err != nil {
			return PasteResult{Message: "Image upload failed", Err: err}
		}
		s.InsertFragmentAtCaret(`<img src="` + asset.URL + `">`)
		return PasteResult{Message: "Image uploaded"}
	case strings.HasPrefix(item.MIME, "video/"):
		asset, err := s.opts.Gateway.UploadMedia(ctx, payload, item.Name)
		if err != nil {
			return PasteResult{Message: "Video upload failed", Err: err}
		}
		s.InsertFragmentAtCaret(`<video controls src="` + asset.URL + `"></video>`)
		return PasteResult{Message: "Video uploaded"}
	}
	return PasteResult{Message: "Unsupported clipboard payload", Err: ingest.ErrNoClipboardMedia}
}
