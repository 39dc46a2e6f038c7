package wit

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Pos is a source location inside a descriptor.
type Pos struct {
	File string
	Line int
	Col  int
}

// String formats the position as file:line:col.
func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokVersion
	tokArrow
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  Pos
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokVersion:
		return fmt.Sprintf("version %q", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// lexer splits WIT source into tokens. Comments (including doc comments)
// are dropped. A version token is produced for "@" followed by a digit;
// "@" followed by a letter starts a feature gate and is emitted as punct.
type lexer struct {
	file string
	src  []byte
	off  int
	line int
	col  int
}

func newLexer(file string, src []byte) *lexer {
	return &lexer{file: file, src: src, line: 1, col: 1}
}

func (l *lexer) pos() Pos { return Pos{File: l.file, Line: l.line, Col: l.col} }

func (l *lexer) peekRune(ahead int) rune {
	off := l.off
	for i := 0; i < ahead; i++ {
		if off >= len(l.src) {
			return 0
		}
		_, w := utf8.DecodeRune(l.src[off:])
		off += w
	}
	if off >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRune(l.src[off:])
	return r
}

func (l *lexer) advance() rune {
	r, w := utf8.DecodeRune(l.src[l.off:])
	l.off += w
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) skipSpaceAndComments() error {
	for l.off < len(l.src) {
		r := l.peekRune(0)
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && l.peekRune(1) == '/':
			for l.off < len(l.src) && l.peekRune(0) != '\n' {
				l.advance()
			}
		case r == '/' && l.peekRune(1) == '*':
			start := l.pos()
			l.advance()
			l.advance()
			depth := 1
			for depth > 0 {
				if l.off >= len(l.src) {
					return malformed(start, "unterminated block comment")
				}
				switch {
				case l.peekRune(0) == '*' && l.peekRune(1) == '/':
					l.advance()
					l.advance()
					depth--
				case l.peekRune(0) == '/' && l.peekRune(1) == '*':
					l.advance()
					l.advance()
					depth++
				default:
					l.advance()
				}
			}
		default:
			return nil
		}
	}
	return nil
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentStart(r rune) bool {
	return r == '%' || r == '_' || isASCIILetter(r)
}

func isIdentPart(r rune) bool {
	return r == '-' || r == '_' || isASCIILetter(r) || unicode.IsDigit(r)
}

func isVersionPart(r rune) bool {
	return r == '.' || r == '-' || r == '+' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	start := l.pos()
	if l.off >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	r := l.peekRune(0)
	switch {
	case isIdentStart(r):
		begin := l.off
		l.advance()
		for l.off < len(l.src) && isIdentPart(l.peekRune(0)) {
			l.advance()
		}
		return token{kind: tokIdent, text: string(l.src[begin:l.off]), pos: start}, nil

	case r == '@' && unicode.IsDigit(l.peekRune(1)):
		l.advance()
		begin := l.off
		for l.off < len(l.src) && isVersionPart(l.peekRune(0)) {
			// "@0.2.0.{a, b}" ends the version before ".{"
			if l.peekRune(0) == '.' && l.peekRune(1) == '{' {
				break
			}
			l.advance()
		}
		return token{kind: tokVersion, text: string(l.src[begin:l.off]), pos: start}, nil

	case r == '-' && l.peekRune(1) == '>':
		l.advance()
		l.advance()
		return token{kind: tokArrow, text: "->", pos: start}, nil

	case unicode.IsDigit(r):
		// numeric literals appear inside gates and fixed-size lists
		begin := l.off
		for l.off < len(l.src) && isVersionPart(l.peekRune(0)) {
			l.advance()
		}
		return token{kind: tokIdent, text: string(l.src[begin:l.off]), pos: start}, nil

	case r == '"':
		begin := l.off
		l.advance()
		for l.off < len(l.src) && l.peekRune(0) != '"' {
			if l.peekRune(0) == '\n' {
				return token{}, malformed(start, "unterminated string literal")
			}
			l.advance()
		}
		if l.off >= len(l.src) {
			return token{}, malformed(start, "unterminated string literal")
		}
		l.advance()
		return token{kind: tokIdent, text: string(l.src[begin:l.off]), pos: start}, nil
	}

	if r > unicode.MaxASCII || !unicode.IsPrint(r) {
		return token{}, malformed(start, "unexpected character %q", r)
	}
	l.advance()
	return token{kind: tokPunct, text: string(r), pos: start}, nil
}

// tokenize lexes the whole input up front so the parser can look ahead.
func tokenize(file string, src []byte) ([]token, error) {
	l := newLexer(file, src)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}
