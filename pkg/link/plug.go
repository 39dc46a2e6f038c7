package link

import (
	"strings"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/script"
)

// PlugScript synthesizes the script for wiring plugs into a socket: every
// component is instantiated under its registry name with passthrough
// allowed, each socket import is connected to the single plug export that
// satisfies it, and the socket is exported as main.
//
// A plug named twice, or named as the socket, is DUPLICATE_INSTANCE. A
// socket import matched by more than one plug export is AMBIGUOUS_EXPORT.
// An import matched by none is left to passthrough. Plugs that satisfy no
// import are reported as UNUSED_PLUG warnings.
func PlugScript(reg *registry.Registry, socket string, plugs []string) (*script.Script, []errors.Warning, error) {
	if len(plugs) == 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "no plugs given for socket %q", socket)
	}
	sock, err := reg.Lookup(socket)
	if err != nil {
		return nil, nil, err
	}
	plugArts := make([]*registry.Artifact, len(plugs))
	seen := make(map[string]bool, len(plugs))
	for i, name := range plugs {
		if name == socket {
			return nil, nil, errors.New(errors.ErrCodeDuplicateInstance, "%q is both socket and plug", name).WithInstance(name)
		}
		if seen[name] {
			return nil, nil, errors.New(errors.ErrCodeDuplicateInstance, "plug %q given more than once", name).WithInstance(name)
		}
		seen[name] = true
		a, err := reg.Lookup(name)
		if err != nil {
			return nil, nil, err
		}
		plugArts[i] = a
	}

	s := &script.Script{}
	s.Lets = append(s.Lets, &script.Let{Instance: socket, Target: socket, Passthrough: true})
	for _, name := range plugs {
		s.Lets = append(s.Lets, &script.Let{Instance: name, Target: name, Passthrough: true})
	}

	used := make(map[string]bool, len(plugs))
	for _, imp := range sock.World.Imports {
		var matches []candidate
		for i, a := range plugArts {
			for _, exp := range a.World.Exports {
				if exp.Satisfies(imp) {
					matches = append(matches, candidate{provider: plugs[i], export: exp.Name})
				}
			}
		}
		switch len(matches) {
		case 0:
		case 1:
			m := matches[0]
			used[m.provider] = true
			s.Connects = append(s.Connects, script.Connect{
				Consumer: socket,
				Import:   imp.Name,
				Provider: m.provider,
				Export:   m.export,
			})
		default:
			names := make([]string, len(matches))
			for i, m := range matches {
				names[i] = m.provider
			}
			return nil, nil, errors.New(errors.ErrCodeAmbiguousExport,
				"socket import %s.%s is exported by several plugs: %s", socket, imp.Name, strings.Join(names, ", ")).
				WithImport(socket, imp.Name)
		}
	}
	s.Export = &script.Export{Instance: socket, As: script.MainExport}

	var warnings []errors.Warning
	for _, name := range plugs {
		if !used[name] {
			warnings = append(warnings, errors.NewWarning(errors.WarnUnusedPlug, name,
				"plug %q satisfies no import of socket %q", name, socket))
		}
	}
	return s, warnings, nil
}

// Plug wires plugs into socket. It is exactly Resolve over the script
// produced by [PlugScript], with the plug warnings appended.
func Plug(c *Context, socket string, plugs []string) (*Graph, error) {
	if c == nil || c.Registry == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "plug: no registry")
	}
	s, warnings, err := PlugScript(c.Registry, socket, plugs)
	if err != nil {
		return nil, err
	}
	g, err := Resolve(c, s)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		c.Logger.Warn(w.Message, "code", w.Code)
	}
	g.Warnings = append(g.Warnings, warnings...)
	return g, nil
}
