package fetch

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/link"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/wit"
)

func remoteArtifact(name, pkg string) *registry.Artifact {
	return &registry.Artifact{
		Name:    name,
		Package: wit.MustParsePackageID(pkg),
		World:   registry.World{Exports: []registry.Slot{{Name: "api"}}},
		Remote:  true,
	}
}

func quietOptions() Options {
	return Options{Logger: log.New(io.Discard)}
}

// recordingFetcher serves /remote/<pkg>.wasm and records what it was asked.
type recordingFetcher struct {
	mu    sync.Mutex
	calls []string
	delay time.Duration
	fail  map[string]error
}

func (f *recordingFetcher) Fetch(ctx context.Context, id wit.PackageID) (registry.Handle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id.String())
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return registry.Handle{}, ctx.Err()
		}
	}
	if err := f.fail[id.String()]; err != nil {
		return registry.Handle{}, err
	}
	return registry.Handle{Path: "/remote/" + id.String() + ".wasm", Source: registry.SourceRemote}, nil
}

func TestFetchAll(t *testing.T) {
	reg := registry.New()
	f := &recordingFetcher{}
	remote := []*registry.Artifact{
		remoteArtifact("zeta", "ex:zeta@1.0.0"),
		remoteArtifact("alpha", "ex:alpha@2.0.0"),
		remoteArtifact("alpha-again", "ex:alpha@2.0.0"),
	}
	results, err := FetchAll(context.Background(), f, reg, remote, quietOptions())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	if got := reg.Names(); !slices.Equal(got, []string{"zeta", "alpha", "alpha-again"}) {
		t.Errorf("registration order = %v, want request order", got)
	}
	if len(f.calls) != 2 {
		t.Errorf("fetched %v, want each package once", f.calls)
	}
	for i, r := range results {
		if r.Name != remote[i].Name || r.Handle.Source != registry.SourceRemote {
			t.Errorf("result %d = %+v", i, r)
		}
	}
	a, _ := reg.Lookup("alpha")
	if h, ok := a.Handle(registry.DefaultProfile); !ok || h.Path != "/remote/ex:alpha@2.0.0.wasm" {
		t.Errorf("alpha handle = %+v, %v", h, ok)
	}
}

func TestFetchAllSkipsOverrides(t *testing.T) {
	reg := registry.New()
	f := &recordingFetcher{}
	opts := quietOptions()
	opts.Overrides, _ = link.ParseOverrides([]string{"alpha=/local/alpha.wasm"})

	results, err := FetchAll(context.Background(), f, reg, []*registry.Artifact{
		remoteArtifact("alpha", "ex:alpha@1.0.0"),
		remoteArtifact("beta", "ex:beta@1.0.0"),
	}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(f.calls, []string{"ex:beta@1.0.0"}) {
		t.Errorf("fetched %v, want only beta", f.calls)
	}
	if !results[0].Overridden || results[0].Handle.Path != "/local/alpha.wasm" {
		t.Errorf("alpha result = %+v", results[0])
	}
}

func TestFetchAllFailure(t *testing.T) {
	reg := registry.New()
	f := &recordingFetcher{fail: map[string]error{"ex:beta@1.0.0": fmt.Errorf("connection refused")}}
	_, err := FetchAll(context.Background(), f, reg, []*registry.Artifact{
		remoteArtifact("alpha", "ex:alpha@1.0.0"),
		remoteArtifact("beta", "ex:beta@1.0.0"),
	}, quietOptions())
	if !errors.Is(err, errors.ErrCodeFetchFailure) {
		t.Fatalf("got %v, want FETCH_FAILURE", err)
	}
	if reg.Len() != 0 {
		t.Errorf("registered %v after a failed fetch", reg.Names())
	}
}

func TestFetchAllTimeout(t *testing.T) {
	f := &recordingFetcher{delay: time.Second}
	opts := quietOptions()
	opts.Timeout = 10 * time.Millisecond
	_, err := FetchAll(context.Background(), f, registry.New(), []*registry.Artifact{remoteArtifact("slow", "ex:slow@1.0.0")}, opts)
	if !errors.Is(err, errors.ErrCodeFetchFailure) {
		t.Errorf("got %v, want FETCH_FAILURE", err)
	}
}

func TestFetchAllBoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := FetcherFunc(func(ctx context.Context, id wit.PackageID) (registry.Handle, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return registry.Handle{Path: "/x/" + id.Name + ".wasm"}, nil
	})
	var remote []*registry.Artifact
	for i := range 10 {
		remote = append(remote, remoteArtifact(fmt.Sprintf("c%d", i), fmt.Sprintf("ex:c%d@1.0.0", i)))
	}
	opts := quietOptions()
	opts.Workers = 3
	if _, err := FetchAll(context.Background(), f, registry.New(), remote, opts); err != nil {
		t.Fatal(err)
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
}

func TestFetchAllFrozenRegistry(t *testing.T) {
	reg := registry.New()
	reg.Freeze()
	_, err := FetchAll(context.Background(), &recordingFetcher{}, reg, []*registry.Artifact{remoteArtifact("a", "ex:a@1.0.0")}, quietOptions())
	if !errors.Is(err, errors.ErrCodeRegistryFrozen) {
		t.Errorf("got %v, want REGISTRY_FROZEN", err)
	}
}

func TestFetchAllDuplicateNameRegistersNothing(t *testing.T) {
	tests := []struct {
		name   string
		local  []string
		remote []*registry.Artifact
	}{
		{"repeated in batch", nil, []*registry.Artifact{
			remoteArtifact("alpha", "ex:alpha@1.0.0"),
			remoteArtifact("beta", "ex:beta@1.0.0"),
			remoteArtifact("alpha", "ex:other@1.0.0"),
		}},
		{"taken by local component", []string{"beta"}, []*registry.Artifact{
			remoteArtifact("alpha", "ex:alpha@1.0.0"),
			remoteArtifact("beta", "ex:beta@1.0.0"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			for _, name := range tt.local {
				a := remoteArtifact(name, "ex:local@1.0.0")
				a.Remote = false
				a.Profiles = map[registry.ProfileID]registry.Handle{"release": {Path: "/local/" + name + ".wasm"}}
				if err := reg.Register(name, a); err != nil {
					t.Fatal(err)
				}
			}
			f := &recordingFetcher{}
			_, err := FetchAll(context.Background(), f, reg, tt.remote, quietOptions())
			if !errors.Is(err, errors.ErrCodeDuplicateInstance) {
				t.Fatalf("got %v, want DUPLICATE_INSTANCE", err)
			}
			if reg.Len() != len(tt.local) {
				t.Errorf("registered %v, want only %v", reg.Names(), tt.local)
			}
			if len(f.calls) != 0 {
				t.Errorf("fetched %v before rejecting the batch", f.calls)
			}
		})
	}
}
