// Package wit models WebAssembly Interface Type (WIT) descriptors.
//
// # Overview
//
// A WIT descriptor declares a versioned package, the interfaces it defines,
// the worlds (import/export bundles) a component targets, and the foreign
// packages it references through `use` statements and qualified world items.
// This package parses the subset of WIT that matters for dependency and
// linking decisions:
//
//	package example:frontend@1.0.0;
//
//	interface handler {
//	    use wasi:http/types@0.2.0.{request, response};
//	    handle: func(req: request) -> response;
//	}
//
//	world app {
//	    import example:backend/api@1.0.0;
//	    export handler;
//	}
//
// Interface bodies are scanned for `use` statements but otherwise skipped,
// so type definitions never need to be understood.
//
// # Package Identity
//
// [PackageID] is the (namespace, name, version) triple. Equality for
// dependency purposes is by [PackageID.Key] (`namespace:name`); the version
// is a secondary qualifier compared by [PackageID.Matches].
//
// # Errors
//
// [Parse] is pure: it reads only the given bytes and returns either a
// complete [Descriptor] or a MALFORMED_DESCRIPTOR error carrying a
// file:line:col location. No partial descriptor is ever returned.
package wit
