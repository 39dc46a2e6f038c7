package fetch

import (
	stderrors "errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/wit"
)

// NewMirrorHandler serves a DirFetcher layout under root over HTTP in the
// form HTTPFetcher reads:
//
//	GET /{ns}/{name}/latest          highest version, as text
//	GET /{ns}/{name}/{version}.wasm  the binary
//	GET /healthz                     liveness
func NewMirrorHandler(root string, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	m := &mirror{root: root, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(m.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/{ns}/{name}/latest", m.latest)
	r.Get("/{ns}/{name}/{file}", m.artifact)
	return r
}

type mirror struct {
	root   string
	logger *log.Logger
}

// packageDir validates the path parameters and returns the package's
// directory, which always lies inside root.
func (m *mirror) packageDir(r *http.Request) (string, bool) {
	ns, name := chi.URLParam(r, "ns"), chi.URLParam(r, "name")
	if errors.ValidateInstanceName(ns) != nil || errors.ValidateInstanceName(name) != nil {
		return "", false
	}
	if _, err := wit.ParsePackageID(ns + ":" + name); err != nil {
		return "", false
	}
	dir := filepath.Join(m.root, ns, name)
	rel, err := filepath.Rel(m.root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return dir, true
}

func (m *mirror) latest(w http.ResponseWriter, r *http.Request) {
	dir, ok := m.packageDir(r)
	if !ok {
		http.Error(w, "invalid package", http.StatusBadRequest)
		return
	}
	v, err := latestVersion(dir)
	if err != nil {
		m.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(v + "\n"))
}

func (m *mirror) artifact(w http.ResponseWriter, r *http.Request) {
	dir, ok := m.packageDir(r)
	if !ok {
		http.Error(w, "invalid package", http.StatusBadRequest)
		return
	}
	version, ok := strings.CutSuffix(chi.URLParam(r, "file"), ".wasm")
	if !ok || wit.ValidateVersion(version) != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	path := filepath.Join(dir, version+".wasm")
	f, err := os.Open(path)
	if err != nil {
		m.fail(w, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/wasm")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (m *mirror) fail(w http.ResponseWriter, err error) {
	if stderrors.Is(err, fs.ErrNotExist) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	m.logger.Error("mirror read failed", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (m *mirror) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		m.logger.Debug("mirror request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
