package filter

import (
	"fmt"
	"strconv"

	"github.com/roach88/querybuilder/internal/ir"
)

// ParseError reports a syntax error in filter text.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("filter: position %d: %s", e.Pos, e.Msg)
}

// Term is one parsed "key op value" clause, before key types are resolved.
type Term struct {
	Key   string
	Op    Operator
	Value ir.Value
	Pos   int
}

// Parse reads filter text of the form
//
//	key op value [AND key op value ...]
//
// Operators are =, !=, <, <=, >, >=, [NOT] IN, [NOT] LIKE, [NOT] ILIKE,
// [NOT] REGEXP, [NOT] CONTAINS, [NOT] BETWEEN a AND b and [NOT] EXISTS.
// List operands use [a, b] or (a, b). Strings may be single or double
// quoted; unquoted words and $variables are kept as strings.
//
// OR and parenthesized groups are rejected: a filter is one AND group.
// Empty or blank input yields no terms.
func Parse(input string) ([]Term, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parse()
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokKeyword && t.text == word
}

func (p *parser) parse() ([]Term, error) {
	terms := []Term{}
	if p.peek().kind == tokEOF {
		return terms, nil
	}
	for {
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)

		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return terms, nil
		case t.kind == tokKeyword && t.text == "AND":
			p.advance()
		case t.kind == tokKeyword && t.text == "OR":
			return nil, p.errorf(t, "OR is not supported; filters are a single AND group")
		default:
			return nil, p.errorf(t, "expected AND or end of input, got %s %q", t.kind, t.text)
		}
	}
}

func (p *parser) parseTerm() (Term, error) {
	keyTok := p.advance()
	switch keyTok.kind {
	case tokIdent, tokString:
	case tokLParen:
		return Term{}, p.errorf(keyTok, "grouping is not supported; filters are a single AND group")
	default:
		return Term{}, p.errorf(keyTok, "expected attribute key, got %s %q", keyTok.kind, keyTok.text)
	}
	term := Term{Key: keyTok.text, Pos: keyTok.pos}

	op, err := p.parseOperator()
	if err != nil {
		return Term{}, err
	}
	term.Op = op

	switch {
	case !op.TakesValue():
		term.Value = ir.Null{}
	case op.IsList():
		term.Value, err = p.parseList()
	case op.IsRange():
		term.Value, err = p.parseRange()
	default:
		term.Value, err = p.parseValue()
	}
	if err != nil {
		return Term{}, err
	}
	return term, nil
}

func (p *parser) parseOperator() (Operator, error) {
	t := p.advance()
	if t.kind == tokOperator {
		return Operator(t.text), nil
	}
	if t.kind != tokKeyword {
		return "", p.errorf(t, "expected operator, got %s %q", t.kind, t.text)
	}

	negated := false
	if t.text == "NOT" {
		negated = true
		t = p.advance()
		if t.kind != tokKeyword {
			return "", p.errorf(t, "expected operator after NOT, got %s %q", t.kind, t.text)
		}
	}

	var op Operator
	switch t.text {
	case "IN":
		op = OpIn
	case "LIKE":
		op = OpLike
	case "ILIKE":
		op = OpILike
	case "REGEXP":
		op = OpRegexp
	case "CONTAINS":
		op = OpContains
	case "BETWEEN":
		op = OpBetween
	case "EXISTS":
		op = OpExists
	default:
		return "", p.errorf(t, "unknown operator %q", t.text)
	}
	if negated {
		op = "NOT " + op
	}
	return op, nil
}

func (p *parser) parseValue() (ir.Value, error) {
	t := p.advance()
	switch t.kind {
	case tokString:
		return ir.String(t.text), nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %q", t.text)
		}
		return ir.Number(f), nil
	case tokIdent:
		return ir.String(t.text), nil
	case tokKeyword:
		switch t.text {
		case "TRUE":
			return ir.Bool(true), nil
		case "FALSE":
			return ir.Bool(false), nil
		}
	}
	return nil, p.errorf(t, "expected value, got %s %q", t.kind, t.text)
}

// parseList accepts [a, b], (a, b) or a single bare value.
func (p *parser) parseList() (ir.Value, error) {
	open := p.peek()
	var closer tokenKind
	switch open.kind {
	case tokLBracket:
		closer = tokRBracket
	case tokLParen:
		closer = tokRParen
	default:
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return ir.List{v}, nil
	}
	p.advance()

	list := ir.List{}
	if p.peek().kind == closer {
		p.advance()
		return list, nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)

		t := p.advance()
		switch t.kind {
		case tokComma:
			continue
		case closer:
			return list, nil
		default:
			return nil, p.errorf(t, "expected ',' or closing bracket, got %s %q", t.kind, t.text)
		}
	}
}

// parseRange accepts "a AND b" or "[a, b]".
func (p *parser) parseRange() (ir.Value, error) {
	if k := p.peek().kind; k == tokLBracket || k == tokLParen {
		start := p.peek()
		v, err := p.parseList()
		if err != nil {
			return nil, err
		}
		if len(v.(ir.List)) != 2 {
			return nil, p.errorf(start, "BETWEEN needs exactly two values")
		}
		return v, nil
	}
	lo, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("AND") {
		t := p.peek()
		return nil, p.errorf(t, "expected AND in BETWEEN, got %s %q", t.kind, t.text)
	}
	p.advance()
	hi, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return ir.List{lo, hi}, nil
}
