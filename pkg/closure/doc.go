// Package closure checks that a WIT descriptor's declared dependencies
// cover every package it references.
//
// # Overview
//
// A descriptor references foreign packages through use statements and
// qualified world imports and exports. A
// build that compiles the descriptor needs every one of those packages, and
// every package they in turn reference, on its dependency list. [Analyze]
// walks that closure breadth-first and reports what is missing:
//
//	desc, _ := wit.ParseFile("wit/app.wit")
//	report := closure.Analyze(desc, declared, closure.Options{Index: idx})
//	for _, s := range report.Suggestions {
//	    fmt.Println(s)
//	}
//
// # Workspace Index
//
// An [Index] knows which descriptors and build targets exist in a
// workspace. With an index, Analyze follows references transitively and
// suggests the build target that provides each missing package:
//
//	Add to deps: "//wit/http:types",  # Provides package wasi:http@0.2.0
//
// Without one, it suggests the bare package:
//
//	"wasi:http@0.2.0",  # Missing WIT package
//
// [ScanWorkspace] builds an index from the .wit and BUILD files under a
// directory.
//
// # Strictness
//
// Missing dependencies are findings, not failures. Callers that want a
// hard failure use [Report.Err], which returns a MISSING_DEPENDENCY error.
//
// # Batches
//
// [AnalyzeAll] analyzes many descriptors on a bounded worker pool and
// returns reports in input order.
package closure
