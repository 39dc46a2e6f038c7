package script

import (
	"strings"
	"unicode"

	"github.com/matzehuels/witlink/pkg/errors"
)

type tokKind int

const (
	tEOF tokKind = iota
	tIdent
	tString
	tPunct
)

type tok struct {
	kind tokKind
	text string
	pos  Pos
}

func (t tok) is(s string) bool { return t.kind == tPunct && t.text == s }

func (t tok) describe() string {
	if t.kind == tEOF {
		return "end of input"
	}
	return "\"" + t.text + "\""
}

func malformed(pos Pos, format string, args ...any) *errors.Error {
	e := errors.New(errors.ErrCodeMalformedScript, format, args...)
	e.Message = pos.String() + ": " + e.Message
	return e
}

func isIdentStart(r byte) bool {
	return r == '%' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r byte) bool {
	return isIdentStart(r) || r == '-' || (r >= '0' && r <= '9')
}

func isVersionPart(r byte) bool {
	return isIdentPart(r) || r == '.' || r == '+'
}

// lex splits script source into tokens. Multi-character punctuation is
// "->" and "..."; everything else is a single byte.
func lex(src []byte) ([]tok, error) {
	var toks []tok
	line, col := 1, 1
	i := 0
	adv := func(n int) {
		for k := 0; k < n && i < len(src); k++ {
			if src[i] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			i++
		}
	}
	at := func(off int) byte {
		if i+off < len(src) {
			return src[i+off]
		}
		return 0
	}

	for {
		for i < len(src) {
			c := src[i]
			switch {
			case c == ' ' || c == '\t' || c == '\r' || c == '\n':
				adv(1)
				continue
			case c == '/' && at(1) == '/':
				for i < len(src) && src[i] != '\n' {
					adv(1)
				}
				continue
			case c == '/' && at(1) == '*':
				start := Pos{line, col}
				adv(2)
				for i < len(src) && !(src[i] == '*' && at(1) == '/') {
					adv(1)
				}
				if i >= len(src) {
					return nil, malformed(start, "unterminated block comment")
				}
				adv(2)
				continue
			}
			break
		}

		pos := Pos{line, col}
		if i >= len(src) {
			return append(toks, tok{kind: tEOF, pos: pos}), nil
		}

		c := src[i]
		begin := i
		switch {
		case isIdentStart(c):
			for i < len(src) && isIdentPart(src[i]) {
				// "a->b" keeps the arrow out of the identifier
				if src[i] == '-' && at(1) == '>' {
					break
				}
				adv(1)
			}
			toks = append(toks, tok{kind: tIdent, text: string(src[begin:i]), pos: pos})
		case c >= '0' && c <= '9':
			for i < len(src) && isVersionPart(src[i]) {
				adv(1)
			}
			toks = append(toks, tok{kind: tIdent, text: string(src[begin:i]), pos: pos})
		case c == '"':
			adv(1)
			for i < len(src) && src[i] != '"' && src[i] != '\n' {
				adv(1)
			}
			if i >= len(src) || src[i] != '"' {
				return nil, malformed(pos, "unterminated string literal")
			}
			toks = append(toks, tok{kind: tString, text: string(src[begin+1 : i]), pos: pos})
			adv(1)
		case c == '-' && at(1) == '>':
			adv(2)
			toks = append(toks, tok{kind: tPunct, text: "->", pos: pos})
		case c == '.' && at(1) == '.' && at(2) == '.':
			adv(3)
			toks = append(toks, tok{kind: tPunct, text: "...", pos: pos})
		case c < 0x80 && unicode.IsPunct(rune(c)) || c == '=' || c == '@':
			adv(1)
			toks = append(toks, tok{kind: tPunct, text: string(c), pos: pos})
		default:
			return nil, malformed(pos, "unexpected character %q", rune(c))
		}
	}
}

type parser struct {
	toks []tok
	i    int
}

func (p *parser) peek() tok { return p.toks[p.i] }

func (p *parser) next() tok {
	t := p.toks[p.i]
	if t.kind != tEOF {
		p.i++
	}
	return t
}

func (p *parser) expect(s string) error {
	t := p.next()
	if !t.is(s) {
		return malformed(t.pos, "expected %q, found %s", s, t.describe())
	}
	return nil
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	return t.kind == tIdent && t.text == kw
}

func (p *parser) ident(what string) (tok, error) {
	t := p.next()
	if t.kind != tIdent {
		return t, malformed(t.pos, "expected %s, found %s", what, t.describe())
	}
	return t, nil
}

// name accepts an identifier or a quoted string (for qualified interface
// names such as "wasi:http/handler@0.2.0").
func (p *parser) name(what string) (tok, error) {
	t := p.next()
	if t.kind != tIdent && t.kind != tString {
		return t, malformed(t.pos, "expected %s, found %s", what, t.describe())
	}
	if t.text == "" {
		return t, malformed(t.pos, "empty %s", what)
	}
	return t, nil
}

// Parse parses script source. On error it returns a MALFORMED_SCRIPT
// error with a line:col location and no partial script.
func Parse(src []byte) (*Script, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	s := &Script{}
	for p.peek().kind != tEOF {
		t := p.peek()
		var err error
		switch {
		case p.keyword("package"):
			err = p.parsePackage(s)
		case p.keyword("let"):
			var l *Let
			l, err = p.parseLet()
			if err == nil {
				s.Lets = append(s.Lets, l)
			}
		case p.keyword("connect"):
			var c Connect
			c, err = p.parseConnect()
			if err == nil {
				s.Connects = append(s.Connects, c)
			}
		case p.keyword("export"):
			if s.Export != nil {
				return nil, malformed(t.pos, "multiple export statements (first at %s)", s.Export.Pos)
			}
			var e *Export
			e, err = p.parseExport()
			s.Export = e
		default:
			return nil, malformed(t.pos, "unexpected %s, expected let, connect, export or package", t.describe())
		}
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) parsePackage(s *Script) error {
	kw := p.next()
	if s.Package != "" || len(s.Lets) > 0 || len(s.Connects) > 0 || s.Export != nil {
		return malformed(kw.pos, "package declaration must come first")
	}
	ns, err := p.ident("package namespace")
	if err != nil {
		return err
	}
	if err := p.expect(":"); err != nil {
		return err
	}
	name, err := p.ident("package name")
	if err != nil {
		return err
	}
	pkg := ns.text + ":" + name.text
	if p.peek().is("@") {
		p.next()
		v, err := p.ident("version")
		if err != nil {
			return err
		}
		pkg += "@" + v.text
	}
	s.Package = pkg
	return p.expect(";")
}

func (p *parser) parseLet() (*Let, error) {
	kw := p.next()
	inst, err := p.ident("instance name")
	if err != nil {
		return nil, err
	}
	if err := p.expect("="); err != nil {
		return nil, err
	}
	if !p.keyword("new") {
		t := p.peek()
		return nil, malformed(t.pos, "expected \"new\", found %s", t.describe())
	}
	p.next()
	target, err := p.parseTarget()
	if err != nil {
		return nil, err
	}
	l := &Let{Instance: inst.text, Target: target, Pos: kw.pos}

	if err := p.expect("{"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for !p.peek().is("}") {
		t := p.peek()
		switch {
		case t.kind == tEOF:
			return nil, malformed(kw.pos, "unterminated instantiation of %q", inst.text)
		case t.is("..."):
			p.next()
			if l.Passthrough {
				return nil, malformed(t.pos, "duplicate \"...\"")
			}
			l.Passthrough = true
		default:
			b, err := p.parseBinding()
			if err != nil {
				return nil, err
			}
			if seen[b.Import] {
				return nil, malformed(b.Pos, "import %q bound twice", b.Import)
			}
			seen[b.Import] = true
			l.Bindings = append(l.Bindings, b)
		}
		if p.peek().is(",") {
			p.next()
		} else if p.peek().kind == tEOF {
			return nil, malformed(kw.pos, "unterminated instantiation of %q", inst.text)
		} else if !p.peek().is("}") {
			t := p.peek()
			return nil, malformed(t.pos, "expected \",\" or \"}\", found %s", t.describe())
		}
	}
	p.next()
	return l, p.expect(";")
}

// parseTarget reads "name", "ns:name" or "ns:name@version".
func (p *parser) parseTarget() (string, error) {
	first, err := p.ident("component name")
	if err != nil {
		return "", err
	}
	target := first.text
	if p.peek().is(":") {
		p.next()
		name, err := p.ident("component name")
		if err != nil {
			return "", err
		}
		target += ":" + name.text
		if p.peek().is("@") {
			p.next()
			v, err := p.ident("version")
			if err != nil {
				return "", err
			}
			target += "@" + v.text
		}
	}
	return target, nil
}

func (p *parser) parseBinding() (Binding, error) {
	imp, err := p.name("import name")
	if err != nil {
		return Binding{}, err
	}
	if err := p.expect(":"); err != nil {
		return Binding{}, err
	}
	prov, err := p.ident("provider instance")
	if err != nil {
		return Binding{}, err
	}
	b := Binding{Import: imp.text, Provider: prov.text, Export: imp.text, Pos: imp.pos}
	if p.peek().is(".") {
		p.next()
		exp, err := p.name("export name")
		if err != nil {
			return Binding{}, err
		}
		b.Export = exp.text
	}
	return b, nil
}

func (p *parser) parseConnect() (Connect, error) {
	kw := p.next()
	consumer, err := p.ident("consumer instance")
	if err != nil {
		return Connect{}, err
	}
	if err := p.expect("."); err != nil {
		return Connect{}, err
	}
	imp, err := p.name("import name")
	if err != nil {
		return Connect{}, err
	}
	if err := p.expect("->"); err != nil {
		return Connect{}, err
	}
	provider, err := p.ident("provider instance")
	if err != nil {
		return Connect{}, err
	}
	if err := p.expect("."); err != nil {
		return Connect{}, err
	}
	exp, err := p.name("export name")
	if err != nil {
		return Connect{}, err
	}
	return Connect{
		Consumer: consumer.text,
		Import:   imp.text,
		Provider: provider.text,
		Export:   exp.text,
		Pos:      kw.pos,
	}, p.expect(";")
}

func (p *parser) parseExport() (*Export, error) {
	kw := p.next()
	inst, err := p.ident("instance name")
	if err != nil {
		return nil, err
	}
	e := &Export{Instance: inst.text, As: MainExport, Pos: kw.pos}
	if p.keyword("as") {
		p.next()
		as, err := p.name("export name")
		if err != nil {
			return nil, err
		}
		e.As = as.text
	}
	return e, p.expect(";")
}

// ParseString is a convenience wrapper for inline scripts.
func ParseString(src string) (*Script, error) {
	return Parse([]byte(strings.TrimSpace(src)))
}
