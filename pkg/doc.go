// Package pkg provides the libraries behind witlink, a dependency closure
// checker and linker for WebAssembly components.
//
// # Overview
//
// witlink answers two questions about a component build. Does every WIT
// descriptor declare the packages it references? And, given a set of
// built components and a composition script, which instance satisfies each
// import? The pkg directory is organized around those two flows:
//
//	WIT descriptors + declared deps
//	         ↓
//	    [wit] parse → [closure] analyze → missing packages, suggested fixes
//
//	components.toml + script.wac
//	         ↓
//	    [registry] load → [fetch] remote binaries
//	         ↓
//	    [script] parse → [link] resolve (override → explicit → passthrough)
//	         ↓
//	    [emit] composer + manifest      [render/dot] diagram
//
// # Quick Start
//
// Resolve a composition and build it with wac:
//
//	file, _ := registry.LoadFile("components.toml")
//	reg := registry.New()
//	_ = file.RegisterLocal(reg)
//
//	s, _ := script.ParseString(`
//	    let f = new frontend { api: b.api, ... };
//	    let b = new backend {};
//	    export f as main;
//	`)
//
//	c := link.NewContext(reg, link.WithProfiles(profile.Selector{Default: "release"}))
//	g, err := link.Resolve(c, s)
//	if err != nil {
//	    // UNRESOLVED_IMPORT, AMBIGUOUS_EXPORT, CYCLIC_INSTANTIATION, ...
//	}
//	m, _ := emit.Emit(c, g, emit.Options{
//	    Output:   "app.wasm",
//	    Manifest: "app.manifest.json",
//	    Composer: emit.ExecComposer{Path: "wac"},
//	})
//
// Check a descriptor's dependency closure:
//
//	desc, _ := wit.ParseFile("wit/app.wit")
//	r := closure.Analyze(desc, declared, closure.Options{})
//	for _, s := range r.Suggestions {
//	    fmt.Println(s)
//	}
//
// # Main Packages
//
// [wit] - Lexer and parser for the subset of WIT that matters for linking:
// package declarations, interfaces, worlds and their qualified references.
//
// [closure] - Transitive reference closure of a descriptor against its
// declared dependencies, with a workspace index of descriptors and build
// targets.
//
// [registry] - Components, their worlds and per-profile binaries, loaded
// from a TOML components file.
//
// [script] - Parser and printer for composition scripts (let, new, export).
//
// [profile] - Build profile selection with release fallback.
//
// [link] - The resolver: binds every import by precedence and produces the
// composition graph. Also the plug shorthand.
//
// [emit] - Drives the external composer and writes the manifest; stages
// bound binaries for inspection.
//
// [fetch] - Retrieves remote components from a directory or HTTP mirror
// with caching and retries; serves a mirror.
//
// [render/dot] - Graphviz rendering of the composition graph.
//
// ## Infrastructure
//
// [dag] - Directed acyclic graph with topological ordering.
//
// [cache] - Artifact caches: file, redis, mongo and null backends.
//
// [httputil] - Retry with backoff and a TTL file cache for HTTP lookups.
//
// [observability] - Hooks for linking, fetching and caching events.
//
// [errors] - Error codes shared by every package.
//
// # Testing
//
//	go test ./...
//
// Backends that need a server run when WITLINK_TEST_REDIS_URL or
// WITLINK_TEST_MONGO_URL is set.
package pkg
