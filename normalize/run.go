// Package normalize implements batch canonicalization of stored documents:
// the same pipeline the editor runs on paste, applied to files, directories
// and archives of legacy HTML.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/ianaindex"

	"richedit/archive"
	"richedit/editor"
	"richedit/ingest"
	"richedit/state"

	fixzip "github.com/hidez8891/zip"
)

// Run is the CLI action for the normalize command. It canonicalizes every
// HTML document found at the source path and writes the results under the
// destination directory.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("normalize")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	gw, closeGw, err := buildGateway(env, log)
	if err != nil {
		return err
	}
	defer closeGw()

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, gw, log)
}

// buildGateway picks between a remote ingestion server and the local store
// depending on how the command was invoked.
func buildGateway(env *state.LocalEnv, log *zap.Logger) (ingest.Gateway, func(), error) {
	if env.GatewayURL != "" {
		client, err := ingest.NewClient(env.GatewayURL, string(env.Cfg.Server.AdminToken))
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
	store, err := ingest.NewStore(env.Cfg.Ingest, log.Named("store"))
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func isDocPath(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}

func isArchivePath(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

// process determines the input type (directory, archive, or single file) and
// hands off accordingly.
func process(ctx context.Context, src, dst string, gw ingest.Gateway, log *zap.Logger) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	switch {
	case fi.Mode().IsDir():
		return processDir(ctx, src, dst, gw, log)
	case !fi.Mode().IsRegular():
		return fmt.Errorf("unexpected path mode for (%s)", src)
	case isArchivePath(src):
		return processArchive(ctx, src, dst, gw, log)
	case isDocPath(src):
		file, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("unable to open %s: %w", src, err)
		}
		defer file.Close()
		return processDoc(ctx, file, filepath.Base(src), dst, gw, log)
	}
	return fmt.Errorf("input was not recognized as an HTML document (%s)", src)
}

// processDir walks a directory tree finding documents and archives.
func processDir(ctx context.Context, dir, dst string, gw ingest.Gateway, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if isArchivePath(path) {
			if err := processArchive(ctx, path, dst, gw, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}
		if !isDocPath(path) {
			log.Debug("Skipping file, not recognized as document or archive", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processDoc(ctx, file, src, dst, gw, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArchive normalizes every document member of a zip archive.
func processArchive(ctx context.Context, path, dst string, gw ingest.Gateway, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, "", func(arc string, f *fixzip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := memberName(ctx, f, log)
		if !isDocPath(name) {
			log.Debug("Skipping file, not recognized as document", zap.String("archive", arc), zap.String("file", name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", name), zap.Error(err))
			return nil
		}
		defer r.Close()

		if err := processDoc(ctx, r, name, dst, gw, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", name), zap.Error(err))
		}
		return nil
	})
	return err
}

// memberName decodes an archive member name, honoring a forced code page for
// archaic archives.
func memberName(ctx context.Context, f *fixzip.File, log *zap.Logger) string {
	name := f.FileHeader.Name
	cp := state.EnvFromContext(ctx).CodePage
	if cp != nil && f.FileHeader.NonUTF8 {
		if n, err := cp.NewDecoder().String(name); err == nil {
			name = n
		} else {
			cn, _ := ianaindex.IANA.Name(cp)
			log.Warn("Unable to convert archive name from specified encoding",
				zap.String("charset", cn), zap.String("path", name), zap.Error(err))
		}
	}
	return name
}

// processDoc canonicalizes one document and writes the result under dst.
func processDoc(ctx context.Context, r io.Reader, src, dst string, gw ingest.Gateway, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	out, err := outputPath(dst, src, env.NoDirs)
	if err != nil {
		return err
	}
	if _, err := os.Stat(out); err == nil && !env.Overwrite {
		log.Warn("Destination exists, skipping. Use --overwrite to replace", zap.String("file", out))
		return nil
	}

	log.Info("Normalization starting", zap.String("from", src))
	result, err := NormalizeDocument(ctx, r, gw, env, log)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(out, []byte(result), 0o644); err != nil {
		return fmt.Errorf("unable to write %s: %w", out, err)
	}
	log.Info("Normalization completed", zap.String("to", out))
	return nil
}

// outputPath mirrors the source structure under dst, or flattens it to the
// base name when noDirs is set. The result always stays under dst.
func outputPath(dst, src string, noDirs bool) (string, error) {
	name := filepath.FromSlash(src)
	if noDirs {
		name = filepath.Base(name)
	}
	out := filepath.Join(dst, name)
	rel, err := filepath.Rel(dst, out)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("source path %q escapes destination", src)
	}
	return out, nil
}

// NormalizeDocument runs one document through the editor's paste pipeline:
// charset detection, sizing normalization, image resolution against the
// gateway, table wrapping. The returned markup is the canonical serialization.
func NormalizeDocument(ctx context.Context, r io.Reader, gw ingest.Gateway, env *state.LocalEnv, log *zap.Logger) (string, error) {
	decoded, err := charset.NewReader(r, "text/html")
	if err != nil {
		return "", fmt.Errorf("unable to detect document charset: %w", err)
	}
	raw, err := io.ReadAll(decoded)
	if err != nil {
		return "", fmt.Errorf("unable to read document: %w", err)
	}

	field := &editor.Field{}
	s := editor.New(field, editor.Options{
		Gateway: gw,
		Editor:  env.Cfg.Editor,
		Log:     log,
	})
	defer s.Close()

	res := <-s.Paste(ctx, editor.Clipboard{HTML: string(raw)})
	if res.Err != nil {
		// Unresolved images degrade in place, the document is still
		// written out in its best available state.
		log.Warn("Document normalized with unresolved images", zap.Error(res.Err))
	}
	return field.Value, nil
}
