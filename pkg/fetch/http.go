package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/witlink/pkg/cache"
	"github.com/matzehuels/witlink/pkg/httputil"
	"github.com/matzehuels/witlink/pkg/observability"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/wit"
)

// wasmMagic starts every WebAssembly binary, components included.
var wasmMagic = []byte("\x00asm")

// maxArtifactSize bounds a single download.
const maxArtifactSize = 256 << 20

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	// OutDir receives downloaded binaries as <ns>/<name>/<version>.wasm.
	OutDir string
	Client *http.Client
	// Cache holds downloaded bytes across runs. Default NullCache.
	Cache cache.Cache
	// CacheTTL is the lifetime of cached binaries; 0 keeps them forever.
	CacheTTL time.Duration
	// Versions caches the resolution of unversioned packages. Nil disables it.
	Versions *httputil.Cache
	Backoff  httputil.Backoff
	Logger   *log.Logger
	Hooks    observability.Hooks
}

// WithDefaults returns a copy of o with unset fields filled in.
func (o HTTPOptions) WithDefaults() HTTPOptions {
	if o.OutDir == "" {
		o.OutDir = filepath.Join(os.TempDir(), "witlink-fetch")
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	if o.Cache == nil {
		o.Cache = cache.NewNullCache()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	o.Backoff = o.Backoff.WithDefaults()
	o.Hooks = o.Hooks.WithDefaults()
	return o
}

// HTTPFetcher downloads packages from a static server laid out like a
// DirFetcher mirror: GET <base>/<ns>/<name>/<version>.wasm. Unversioned
// packages are resolved through GET <base>/<ns>/<name>/latest, whose body
// is the version.
type HTTPFetcher struct {
	base *url.URL
	opts HTTPOptions
}

// NewHTTPFetcher creates a fetcher for the server at base.
func NewHTTPFetcher(base string, opts HTTPOptions) (*HTTPFetcher, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse fetch url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("fetch url %q: scheme must be http or https", base)
	}
	return &HTTPFetcher{base: u, opts: opts.WithDefaults()}, nil
}

// Fetch downloads the binary, or takes it from the cache, and writes it
// under OutDir.
func (f *HTTPFetcher) Fetch(ctx context.Context, id wit.PackageID) (registry.Handle, error) {
	if id.Version == "" {
		v, err := f.resolveVersion(ctx, id)
		if err != nil {
			return registry.Handle{}, err
		}
		id.Version = v
	}

	src := f.url(id.Namespace, id.Name, id.Version+".wasm")
	key := cache.Key("artifact", src)
	hooks := f.opts.Hooks

	data, hit, err := f.opts.Cache.Get(ctx, key)
	if err != nil {
		f.opts.Logger.Warn("cache read failed", "key", key, "err", err)
	}
	if hit && bytes.HasPrefix(data, wasmMagic) {
		hooks.Cache.OnCacheHit(ctx, "artifact")
	} else {
		hooks.Cache.OnCacheMiss(ctx, "artifact")
		data, err = f.get(ctx, src)
		if err != nil {
			return registry.Handle{}, err
		}
		if !bytes.HasPrefix(data, wasmMagic) {
			return registry.Handle{}, fmt.Errorf("%s is not a WebAssembly binary", src)
		}
		if err := f.opts.Cache.Set(ctx, key, data, f.opts.CacheTTL); err != nil {
			f.opts.Logger.Warn("cache write failed", "key", key, "err", err)
		} else {
			hooks.Cache.OnCacheSet(ctx, "artifact", len(data))
		}
	}

	path := filepath.Join(f.opts.OutDir, id.Namespace, id.Name, id.Version+".wasm")
	if err := writeAtomic(path, data); err != nil {
		return registry.Handle{}, err
	}
	return registry.Handle{Path: path, Source: registry.SourceRemote}, nil
}

func (f *HTTPFetcher) resolveVersion(ctx context.Context, id wit.PackageID) (string, error) {
	var version string
	idx := f.opts.Versions
	if idx != nil {
		idx = idx.Namespace(f.base.String() + "/")
		if ok, _ := idx.Get(id.Key(), &version); ok {
			return version, nil
		}
	}

	data, err := f.get(ctx, f.url(id.Namespace, id.Name, "latest"))
	if err != nil {
		return "", err
	}
	version = strings.TrimSpace(string(data))
	if err := wit.ValidateVersion(version); err != nil {
		return "", fmt.Errorf("latest version of %s: %w", id, err)
	}
	if idx != nil {
		if err := idx.Set(id.Key(), version); err != nil {
			f.opts.Logger.Warn("version cache write failed", "package", id, "err", err)
		}
	}
	return version, nil
}

func (f *HTTPFetcher) url(parts ...string) string {
	u := *f.base
	u.Path = u.Path + "/" + strings.Join(parts, "/")
	return u.String()
}

// get performs a GET with retry on transient failures.
func (f *HTTPFetcher) get(ctx context.Context, src string) ([]byte, error) {
	hooks := f.opts.Hooks.HTTP
	var body []byte
	err := httputil.Retry(ctx, f.opts.Backoff, func(attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return err
		}
		if attempt > 1 {
			f.opts.Logger.Debug("retrying", "url", src, "attempt", attempt)
		}
		start := time.Now()
		hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
		resp, err := f.opts.Client.Do(req)
		if err != nil {
			hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return httputil.Retryable(err)
		}
		defer resp.Body.Close()
		hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))
		if err := httputil.CheckResponse(resp); err != nil {
			return err
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize+1))
		if err != nil {
			return httputil.Retryable(err)
		}
		if len(data) > maxArtifactSize {
			return fmt.Errorf("%s exceeds %d bytes", src, maxArtifactSize)
		}
		body = data
		return nil
	})
	return body, err
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
