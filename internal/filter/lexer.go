package filter

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOperator
	tokKeyword
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokOperator:
		return "operator"
	case tokKeyword:
		return "keyword"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keywords are matched case-insensitively and reported upper-cased.
var keywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true,
	"IN": true, "LIKE": true, "ILIKE": true, "REGEXP": true,
	"CONTAINS": true, "BETWEEN": true, "EXISTS": true,
	"TRUE": true, "FALSE": true,
}

// lexer turns filter text into tokens. It wraps text/scanner for
// identifiers, numbers and double-quoted strings, and handles single-quoted
// strings and multi-character comparison operators itself.
type lexer struct {
	scanner.Scanner
	err error
}

func newLexer(input string) *lexer {
	l := &lexer{}
	l.Init(strings.NewReader(input))
	l.Mode = scanner.ScanIdents | scanner.ScanFloats | scanner.ScanStrings
	l.IsIdentRune = func(ch rune, i int) bool {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_':
			return true
		case ch == '$' || ch == '@':
			return i == 0
		case ch >= '0' && ch <= '9', ch == '.', ch == '-', ch == ':', ch == '/':
			return i > 0
		}
		return false
	}
	l.Error = func(s *scanner.Scanner, msg string) {
		if l.err == nil {
			l.err = &ParseError{Pos: s.Pos().Offset, Msg: msg}
		}
	}
	return l
}

// tokenize scans the whole input.
func tokenize(input string) ([]token, error) {
	l := newLexer(input)
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	r := l.Scan()
	if l.err != nil {
		return token{}, l.err
	}
	pos := l.Position.Offset

	switch r {
	case scanner.EOF:
		return token{kind: tokEOF, pos: pos}, nil
	case scanner.Ident:
		text := l.TokenText()
		if upper := strings.ToUpper(text); keywords[upper] {
			return token{kind: tokKeyword, text: upper, pos: pos}, nil
		}
		return token{kind: tokIdent, text: text, pos: pos}, nil
	case scanner.Int, scanner.Float:
		return token{kind: tokNumber, text: l.TokenText(), pos: pos}, nil
	case scanner.String:
		s, err := strconv.Unquote(l.TokenText())
		if err != nil {
			return token{}, &ParseError{Pos: pos, Msg: fmt.Sprintf("invalid string %s", l.TokenText())}
		}
		return token{kind: tokString, text: s, pos: pos}, nil
	case '\'':
		return l.singleQuoted(pos)
	case '-':
		if n := l.Peek(); n >= '0' && n <= '9' {
			nr := l.Scan()
			if nr != scanner.Int && nr != scanner.Float {
				return token{}, &ParseError{Pos: pos, Msg: "invalid negative number"}
			}
			return token{kind: tokNumber, text: "-" + l.TokenText(), pos: pos}, nil
		}
	case '=':
		if l.Peek() == '=' {
			l.Next()
		}
		return token{kind: tokOperator, text: "=", pos: pos}, nil
	case '!':
		if l.Peek() == '=' {
			l.Next()
			return token{kind: tokOperator, text: "!=", pos: pos}, nil
		}
	case '<':
		switch l.Peek() {
		case '=':
			l.Next()
			return token{kind: tokOperator, text: "<=", pos: pos}, nil
		case '>':
			l.Next()
			return token{kind: tokOperator, text: "!=", pos: pos}, nil
		}
		return token{kind: tokOperator, text: "<", pos: pos}, nil
	case '>':
		if l.Peek() == '=' {
			l.Next()
			return token{kind: tokOperator, text: ">=", pos: pos}, nil
		}
		return token{kind: tokOperator, text: ">", pos: pos}, nil
	case '[':
		return token{kind: tokLBracket, text: "[", pos: pos}, nil
	case ']':
		return token{kind: tokRBracket, text: "]", pos: pos}, nil
	case '(':
		return token{kind: tokLParen, text: "(", pos: pos}, nil
	case ')':
		return token{kind: tokRParen, text: ")", pos: pos}, nil
	case ',':
		return token{kind: tokComma, text: ",", pos: pos}, nil
	}
	return token{}, &ParseError{Pos: pos, Msg: fmt.Sprintf("unexpected character %q", l.TokenText())}
}

// singleQuoted reads a '...' literal. A backslash escapes the next rune.
func (l *lexer) singleQuoted(pos int) (token, error) {
	var text strings.Builder
	for {
		ch := l.Next()
		switch ch {
		case scanner.EOF:
			return token{}, &ParseError{Pos: pos, Msg: "unclosed string literal"}
		case '\\':
			esc := l.Next()
			if esc == scanner.EOF {
				return token{}, &ParseError{Pos: pos, Msg: "unclosed string literal"}
			}
			text.WriteRune(esc)
		case '\'':
			return token{kind: tokString, text: text.String(), pos: pos}, nil
		default:
			text.WriteRune(ch)
		}
	}
}
