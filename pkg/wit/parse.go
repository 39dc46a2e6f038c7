package wit

import (
	"slices"
	"strings"

	"github.com/matzehuels/witlink/pkg/errors"
)

// Parse parses WIT source into a Descriptor. The file name is used only for
// error locations and Descriptor.File.
func Parse(file string, src []byte) (*Descriptor, error) {
	toks, err := tokenize(file, src)
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks:       toks,
		file:       file,
		refSeen:    make(map[string]bool),
		ifaceSeen:  make(map[string]bool),
		worldsSeen: make(map[string]bool),
	}
	if err := p.parseFile(); err != nil {
		return nil, err
	}
	return p.finish(), nil
}

type parser struct {
	toks []token
	i    int
	file string

	pkg        PackageID
	sawItem    bool
	interfaces []string
	worlds     []World
	refs       []PackageID
	uses       []Use

	refSeen    map[string]bool
	ifaceSeen  map[string]bool
	worldsSeen map[string]bool
}

func (p *parser) finish() *Descriptor {
	ifaces := slices.Clone(p.interfaces)
	slices.Sort(ifaces)
	return &Descriptor{
		File:       p.file,
		Package:    p.pkg,
		Interfaces: ifaces,
		Worlds:     p.worlds,
		References: p.refs,
		Uses:       p.uses,
	}
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) atPunct(s string) bool { return p.peek().is(tokPunct, s) }

func (p *parser) atKeyword(s string) bool { return p.peek().is(tokIdent, s) }

func (p *parser) expectPunct(s string) error {
	t := p.next()
	if !t.is(tokPunct, s) {
		return malformed(t.pos, "expected %q, found %s", s, t.describe())
	}
	return nil
}

func (p *parser) expectIdent(what string) (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, malformed(t.pos, "expected %s, found %s", what, t.describe())
	}
	return t, nil
}

func (p *parser) parseFile() error {
	for p.peek().kind != tokEOF {
		t := p.peek()
		switch {
		case t.is(tokPunct, "@"):
			if err := p.skipGate(); err != nil {
				return err
			}
		case t.is(tokIdent, "package"):
			if err := p.parsePackage(); err != nil {
				return err
			}
		case t.is(tokIdent, "interface"):
			p.sawItem = true
			if err := p.parseInterface(); err != nil {
				return err
			}
		case t.is(tokIdent, "world"):
			p.sawItem = true
			if err := p.parseWorld(); err != nil {
				return err
			}
		case t.is(tokIdent, "use"):
			p.sawItem = true
			p.next()
			if err := p.parseUse(); err != nil {
				return err
			}
		default:
			return malformed(t.pos, "unexpected %s, expected package, interface, world or use", t.describe())
		}
	}
	return nil
}

func (p *parser) parsePackage() error {
	kw := p.next()
	if !p.pkg.IsZero() {
		return malformed(kw.pos, "duplicate package declaration")
	}
	if p.sawItem {
		return malformed(kw.pos, "package declaration must precede all items")
	}
	ns, err := p.expectIdent("package namespace")
	if err != nil {
		return err
	}
	if err := p.expectPunct(":"); err != nil {
		return err
	}
	name, err := p.expectIdent("package name")
	if err != nil {
		return err
	}
	id := PackageID{Namespace: ns.text, Name: name.text}
	if v := p.peek(); v.kind == tokVersion {
		p.next()
		if err := ValidateVersion(v.text); err != nil {
			return malformed(v.pos, "%s", errors.UserMessage(err))
		}
		id.Version = v.text
	}
	if p.atPunct("{") {
		return malformed(p.peek().pos, "nested package blocks are not supported")
	}
	if err := p.expectPunct(";"); err != nil {
		return err
	}
	p.pkg = id
	return nil
}

func (p *parser) parseInterface() error {
	p.next()
	name, err := p.expectIdent("interface name")
	if err != nil {
		return err
	}
	if p.ifaceSeen[name.text] {
		return malformed(name.pos, "duplicate interface %q", name.text)
	}
	p.ifaceSeen[name.text] = true
	p.interfaces = append(p.interfaces, name.text)

	open := p.peek()
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	depth := 1
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return malformed(open.pos, "unterminated interface %q", name.text)
		case t.is(tokPunct, "{"):
			depth++
			p.next()
		case t.is(tokPunct, "}"):
			depth--
			p.next()
			if depth == 0 {
				return nil
			}
		case depth == 1 && t.is(tokIdent, "use") && !p.peekAt(1).is(tokPunct, ":"):
			p.next()
			if err := p.parseUse(); err != nil {
				return err
			}
		default:
			p.next()
		}
	}
}

// parsePath parses "local" or "ns:pkg/iface[@version]". qualified reports
// which form was found.
func (p *parser) parsePath() (id PackageID, iface string, qualified bool, pos Pos, err error) {
	first, err := p.expectIdent("interface path")
	if err != nil {
		return PackageID{}, "", false, first.pos, err
	}
	pos = first.pos
	if !p.atPunct(":") {
		if v := p.peek(); v.kind == tokVersion {
			return PackageID{}, "", false, pos, malformed(v.pos, "version on local interface %q", first.text)
		}
		return PackageID{}, first.text, false, pos, nil
	}
	p.next()
	name, err := p.expectIdent("package name")
	if err != nil {
		return PackageID{}, "", false, pos, err
	}
	if err := p.expectPunct("/"); err != nil {
		return PackageID{}, "", false, pos, err
	}
	ifaceTok, err := p.expectIdent("interface name")
	if err != nil {
		return PackageID{}, "", false, pos, err
	}
	id = PackageID{Namespace: first.text, Name: name.text}
	if v := p.peek(); v.kind == tokVersion {
		p.next()
		if err := ValidateVersion(v.text); err != nil {
			return PackageID{}, "", false, pos, malformed(v.pos, "%s", errors.UserMessage(err))
		}
		id.Version = v.text
	}
	return id, ifaceTok.text, true, pos, nil
}

// parseUse parses the remainder of a use statement after the keyword.
func (p *parser) parseUse() error {
	id, iface, qualified, pos, err := p.parsePath()
	if err != nil {
		return err
	}
	if qualified {
		p.addUse(id, iface, pos)
	}
	if p.atPunct(".") {
		p.next()
		if err := p.expectPunct("{"); err != nil {
			return err
		}
		for !p.atPunct("}") {
			if p.peek().kind == tokEOF {
				return malformed(pos, "unterminated use list")
			}
			if _, err := p.expectIdent("imported name"); err != nil {
				return err
			}
			if p.atKeyword("as") {
				p.next()
				if _, err := p.expectIdent("alias"); err != nil {
					return err
				}
			}
			if p.atPunct(",") {
				p.next()
			} else if !p.atPunct("}") {
				t := p.peek()
				return malformed(t.pos, "expected \",\" or \"}\", found %s", t.describe())
			}
		}
		p.next()
	} else if p.atKeyword("as") {
		p.next()
		if _, err := p.expectIdent("alias"); err != nil {
			return err
		}
	}
	return p.expectPunct(";")
}

func (p *parser) addUse(id PackageID, iface string, pos Pos) {
	p.uses = append(p.uses, Use{Package: id, Interface: iface, Pos: pos})
	if id.Key() == p.pkg.Key() {
		return
	}
	if p.refSeen[id.String()] {
		return
	}
	p.refSeen[id.String()] = true
	p.refs = append(p.refs, id)
}

func (p *parser) parseWorld() error {
	p.next()
	name, err := p.expectIdent("world name")
	if err != nil {
		return err
	}
	if p.worldsSeen[name.text] {
		return malformed(name.pos, "duplicate world %q", name.text)
	}
	p.worldsSeen[name.text] = true

	open := p.peek()
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	w := World{Name: name.text, Pos: name.pos}
	imports := make(map[string]bool)
	exports := make(map[string]bool)

	for !p.atPunct("}") {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return malformed(open.pos, "unterminated world %q", name.text)
		case t.is(tokPunct, "@"):
			if err := p.skipGate(); err != nil {
				return err
			}
		case t.is(tokIdent, "import"), t.is(tokIdent, "export"):
			p.next()
			item, err := p.parseExtern()
			if err != nil {
				return err
			}
			seen, list := imports, &w.Imports
			if t.text == "export" {
				seen, list = exports, &w.Exports
			}
			if seen[item.Name] {
				return malformed(item.Pos, "duplicate %s %q in world %q", t.text, item.Name, name.text)
			}
			seen[item.Name] = true
			*list = append(*list, item)
		case t.is(tokIdent, "include"):
			p.next()
			id, iface, qualified, pos, err := p.parsePath()
			if err != nil {
				return err
			}
			if qualified {
				p.addUse(id, iface, pos)
				w.Includes = append(w.Includes, id.Interface(iface))
			} else {
				w.Includes = append(w.Includes, iface)
			}
			if p.atKeyword("with") {
				p.next()
				if err := p.skipBraces(); err != nil {
					return err
				}
			}
			if p.atPunct(";") {
				p.next()
			}
		case t.is(tokIdent, "use"):
			p.next()
			if err := p.parseUse(); err != nil {
				return err
			}
		default:
			if err := p.skipItem(); err != nil {
				return err
			}
		}
	}
	p.next()
	p.worlds = append(p.worlds, w)
	return nil
}

func (p *parser) parseExtern() (Item, error) {
	first := p.peek()
	second := p.peekAt(1)
	third := p.peekAt(2)
	if first.kind == tokIdent && second.is(tokPunct, ":") && third.kind == tokIdent {
		switch third.text {
		case "interface":
			p.i += 3
			if err := p.skipBraces(); err != nil {
				return Item{}, err
			}
			if p.atPunct(";") {
				p.next()
			}
			return Item{Name: first.text, Kind: ItemInline, Pos: first.pos}, nil
		case "func", "async":
			p.i += 2
			sig, err := p.collectSignature()
			if err != nil {
				return Item{}, err
			}
			return Item{Name: first.text, Signature: sig, Kind: ItemFunc, Pos: first.pos}, nil
		}
	}

	id, iface, qualified, pos, err := p.parsePath()
	if err != nil {
		return Item{}, err
	}
	if err := p.expectPunct(";"); err != nil {
		return Item{}, err
	}
	if qualified {
		p.addUse(id, iface, pos)
		ref := id.Interface(iface)
		return Item{Name: ref, Signature: ref, Kind: ItemInterface, Pos: pos}, nil
	}
	name := iface
	if !p.pkg.IsZero() {
		name = p.pkg.Interface(iface)
	}
	return Item{Name: name, Signature: name, Kind: ItemInterface, Pos: pos}, nil
}

// collectSignature consumes a function type up to and including the
// terminating ";" and returns it in a whitespace-normalized form.
func (p *parser) collectSignature() (string, error) {
	var b strings.Builder
	start := p.peek().pos
	depth := 0
	for {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return "", malformed(start, "unterminated function signature")
		case t.is(tokPunct, ";") && depth == 0:
			return b.String(), nil
		case t.is(tokPunct, "("), t.is(tokPunct, "<"):
			depth++
			b.WriteString(t.text)
		case t.is(tokPunct, ")"), t.is(tokPunct, ">"):
			depth--
			b.WriteString(t.text)
		case t.is(tokPunct, ","), t.is(tokPunct, ":"):
			b.WriteString(t.text + " ")
		case t.kind == tokArrow:
			b.WriteString(" -> ")
		default:
			if b.Len() > 0 && t.kind == tokIdent {
				if last := b.String()[b.Len()-1]; last != ' ' && last != '(' && last != '<' {
					b.WriteByte(' ')
				}
			}
			b.WriteString(t.text)
		}
	}
}

// skipBraces consumes a balanced "{ ... }" block.
func (p *parser) skipBraces() error {
	open := p.peek()
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return malformed(open.pos, "unterminated block")
		case t.is(tokPunct, "{"):
			depth++
		case t.is(tokPunct, "}"):
			depth--
		}
	}
	return nil
}

// skipItem consumes a world item this package does not model (type
// definitions, resources). It ends at ";" or after a top-level block.
func (p *parser) skipItem() error {
	start := p.peek().pos
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return malformed(start, "unterminated item")
		case t.is(tokPunct, ";"):
			p.next()
			return nil
		case t.is(tokPunct, "{"):
			return p.skipBraces()
		case t.is(tokPunct, "}"):
			return malformed(t.pos, "unexpected \"}\"")
		default:
			p.next()
		}
	}
}

// skipGate consumes a feature gate such as @since(version = 0.2.0).
func (p *parser) skipGate() error {
	p.next()
	if _, err := p.expectIdent("gate name"); err != nil {
		return err
	}
	if !p.atPunct("(") {
		return nil
	}
	open := p.next()
	depth := 1
	for depth > 0 {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return malformed(open.pos, "unterminated gate")
		case t.is(tokPunct, "("):
			depth++
		case t.is(tokPunct, ")"):
			depth--
		}
	}
	return nil
}
