// Package script models composition scripts: which components to
// instantiate, how their imports are wired, and which instance is exported.
//
// Scripts are parsed from a small text form,
//
//	package example:app;
//
//	let b = new example:backend { ... };
//	let f = new frontend { api: b.api };
//	connect f.log -> b.log;
//	export f as main;
//
// or built in code (see [Auto]). They are only turned back into text by
// [Print], at the boundary where the external composer is invoked.
package script

import (
	"fmt"

	"github.com/matzehuels/witlink/pkg/registry"
)

// Pos is a location in script source.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// MainExport is the export name of the composed component.
const MainExport = "main"

// Script is a parsed or synthesized composition script.
type Script struct {
	// Package is the optional "ns:name[@ver]" header.
	Package  string
	Lets     []*Let
	Connects []Connect
	// Export is nil when the script does not designate an export.
	Export *Export
}

// Let instantiates a component: let <Instance> = new <Target> { ... };
type Let struct {
	Instance string
	Target   string
	Bindings []Binding
	// Passthrough is set by the "..." marker and lets unresolved imports be
	// satisfied by the environment.
	Passthrough bool
	Pos         Pos
}

// Binding is an inline import binding: <Import>: <Provider>.<Export>.
type Binding struct {
	Import   string
	Provider string
	Export   string
	Pos      Pos
}

// Connect is a statement connect <Consumer>.<Import> -> <Provider>.<Export>;
type Connect struct {
	Consumer string
	Import   string
	Provider string
	Export   string
	Pos      Pos
}

// Export is a statement export <Instance> as <As>;
type Export struct {
	Instance string
	As       string
	Pos      Pos
}

// Let returns the instantiation statement for an instance.
func (s *Script) Let(instance string) (*Let, bool) {
	for _, l := range s.Lets {
		if l.Instance == instance {
			return l, true
		}
	}
	return nil, false
}

// Main returns the instance exported as main, if any.
func (s *Script) Main() (string, bool) {
	if s.Export == nil {
		return "", false
	}
	return s.Export.Instance, true
}

// Auto synthesizes the default script for a registry: every component in
// registration order, passthrough allowed everywhere, and the first one
// exported as main. It is a best-effort convenience, not a hermetic build.
func Auto(reg *registry.Registry) *Script {
	s := &Script{}
	names := reg.Names()
	for _, name := range names {
		s.Lets = append(s.Lets, &Let{Instance: name, Target: name, Passthrough: true})
	}
	if len(names) > 0 {
		s.Export = &Export{Instance: names[0], As: MainExport}
	}
	return s
}
