package ingest

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"richedit/config"
)

// uploadRequest is the JSON body of both upload endpoints.
type uploadRequest struct {
	DataURL  string `json:"dataUrl"`
	Filename string `json:"filename"`
}

// importRequest is the JSON body of the remote import endpoint.
type importRequest struct {
	URL string `json:"url"`
}

type uploadResponse struct {
	OK      bool   `json:"ok"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server exposes a Gateway over HTTP for the editor front end.
type Server struct {
	gw  Gateway
	cfg config.ServerConfig
	log *zap.Logger

	// uploadDir and publicPrefix drive static serving of stored assets.
	uploadDir    string
	publicPrefix string
}

func NewServer(gw Gateway, cfg config.ServerConfig, ingestCfg config.IngestConfig, log *zap.Logger) *Server {
	return &Server{
		gw:           gw,
		cfg:          cfg,
		log:          log,
		uploadDir:    ingestCfg.UploadDir,
		publicPrefix: ingestCfg.PublicPrefix,
	}
}

// Router builds the chi handler tree. Exposed separately from Serve so tests
// can drive it through httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/api/admin/upload-image", s.handleUpload(Gateway.UploadImage))
		r.Post("/api/admin/upload-media", s.handleUpload(Gateway.UploadMedia))
		r.Post("/api/admin/import-image-url", s.handleImport)
	})

	r.Get(path.Join(s.publicPrefix, "*"), s.serveAsset)
	return r
}

// Serve runs the HTTP server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutS) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutS) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Gateway listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// requireToken enforces the admin bearer token when one is configured.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := string(s.cfg.AdminToken)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		supplied := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, uploadResponse{Message: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleUpload(accept func(Gateway, context.Context, *DataURI, string) (*Asset, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "malformed request body"})
			return
		}
		payload, err := ParseDataURI(req.DataURL)
		if err != nil {
			s.writeError(w, err)
			return
		}
		asset, err := accept(s.gw, r.Context(), payload, req.Filename)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, uploadResponse{OK: true, URL: asset.URL})
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "malformed request body"})
		return
	}
	asset, err := s.gw.ImportRemoteURL(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{OK: true, URL: asset.URL})
}

// serveAsset serves stored files. Directory listings and path escapes are
// refused.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path.Join(s.uploadDir, name))
}

// statusFor maps gateway errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrNotAnImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrEmptyPayload), errors.Is(err, ErrNoClipboardMedia):
		return http.StatusBadRequest
	case errors.Is(err, ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", zap.Error(err))
	} else {
		s.log.Debug("Request rejected", zap.Error(err))
	}
	writeJSON(w, status, uploadResponse{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
