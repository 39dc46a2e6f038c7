package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	l := NoopLinkHooks{}
	l.OnResolveStart(ctx, "run", 3)
	l.OnResolveComplete(ctx, "run", 2, time.Second, nil)
	l.OnComposeStart(ctx, "run", "wac")
	l.OnComposeComplete(ctx, "run", "wac", time.Second, nil)

	f := NoopFetchHooks{}
	f.OnFetchStart(ctx, "wasi:http@0.2.0")
	f.OnFetchComplete(ctx, "wasi:http@0.2.0", time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "artifact")
	c.OnCacheMiss(ctx, "artifact")
	c.OnCacheSet(ctx, "artifact", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "registry.example", "/wasi/http/0.2.0.wasm")
	h.OnResponse(ctx, "GET", "registry.example", "/wasi/http/0.2.0.wasm", 200, time.Second)
	h.OnError(ctx, "GET", "registry.example", "/wasi/http/0.2.0.wasm", nil)
}

func TestWithDefaults(t *testing.T) {
	h := Hooks{}.WithDefaults()
	if _, ok := h.Link.(NoopLinkHooks); !ok {
		t.Error("Link should default to NoopLinkHooks")
	}
	if _, ok := h.Fetch.(NoopFetchHooks); !ok {
		t.Error("Fetch should default to NoopFetchHooks")
	}
	if _, ok := h.Cache.(NoopCacheHooks); !ok {
		t.Error("Cache should default to NoopCacheHooks")
	}
	if _, ok := h.HTTP.(NoopHTTPHooks); !ok {
		t.Error("HTTP should default to NoopHTTPHooks")
	}

	custom := &testLinkHooks{}
	h = Hooks{Link: custom}.WithDefaults()
	if h.Link != custom {
		t.Error("WithDefaults should keep custom hooks")
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	h := NewLogHooks(logger)
	ctx := context.Background()

	h.OnResolveStart(ctx, "r1", 2)
	h.OnResolveComplete(ctx, "r1", 1, time.Millisecond, nil)
	h.OnComposeComplete(ctx, "r1", "wac", time.Millisecond, errors.New("boom"))
	h.OnFetchComplete(ctx, "a:b@1.0.0", time.Millisecond, nil)
	h.OnCacheMiss(ctx, "artifact:a:b@1.0.0")
	h.OnCacheSet(ctx, "artifact:a:b@1.0.0", 512)
	h.OnRequest(ctx, "GET", "mirror.example", "/a/b/1.0.0.wasm")
	h.OnResponse(ctx, "GET", "mirror.example", "/a/b/1.0.0.wasm", 200, time.Millisecond)
	h.OnError(ctx, "GET", "mirror.example", "/a/b/latest", errors.New("refused"))

	hooks := Hooks{Link: h, Fetch: h, Cache: h, HTTP: h}.WithDefaults()
	hooks.Cache.OnCacheHit(ctx, "artifact:a:b@1.0.0")

	out := buf.String()
	for _, want := range []string{
		"resolve started", "resolve finished", "composer failed", "boom", "fetch finished",
		"cache miss", "cache set", "cache hit", "http request", "http response", "http error", "refused",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

type testLinkHooks struct{ NoopLinkHooks }
