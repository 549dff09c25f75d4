package simple

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/expr"
)

type node interface {
	eval(ctx *expr.Context) (any, error)
}

type stream struct {
	tokens []token
	pos    int
}

func parse(tokens []token) (node, error) {
	s := &stream{tokens: tokens}
	n, err := parseOr(s)
	if err != nil {
		return nil, err
	}
	if s.pos < len(s.tokens) {
		return nil, fmt.Errorf("simple: unexpected token %q", s.tokens[s.pos].raw)
	}
	return n, nil
}

func (s *stream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *stream) peek() (token, bool) {
	if s.pos >= len(s.tokens) {
		return token{}, false
	}
	return s.tokens[s.pos], true
}

func parseOr(s *stream) (node, error) {
	left, err := parseAnd(s)
	if err != nil {
		return nil, err
	}
	for s.match(tokenOr) {
		right, err := parseAnd(s)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tokenOr, left: left, right: right}
	}
	return left, nil
}

func parseAnd(s *stream) (node, error) {
	left, err := parseEquality(s)
	if err != nil {
		return nil, err
	}
	for s.match(tokenAnd) {
		right, err := parseEquality(s)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tokenAnd, left: left, right: right}
	}
	return left, nil
}

func parseEquality(s *stream) (node, error) {
	left, err := parseRelational(s)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := s.peek()
		if !ok || (tok.kind != tokenEq && tok.kind != tokenNeq) {
			return left, nil
		}
		s.pos++
		right, err := parseRelational(s)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.kind, left: left, right: right}
	}
}

func parseRelational(s *stream) (node, error) {
	left, err := parseAdditive(s)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := s.peek()
		if !ok {
			return left, nil
		}
		switch tok.kind {
		case tokenLt, tokenLte, tokenGt, tokenGte:
			s.pos++
			right, err := parseAdditive(s)
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: tok.kind, left: left, right: right}
		default:
			return left, nil
		}
	}
}

func parseAdditive(s *stream) (node, error) {
	left, err := parseMultiplicative(s)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := s.peek()
		if !ok || (tok.kind != tokenPlus && tok.kind != tokenMinus) {
			return left, nil
		}
		s.pos++
		right, err := parseMultiplicative(s)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.kind, left: left, right: right}
	}
}

func parseMultiplicative(s *stream) (node, error) {
	left, err := parseUnary(s)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := s.peek()
		if !ok || (tok.kind != tokenStar && tok.kind != tokenSlash) {
			return left, nil
		}
		s.pos++
		right, err := parseUnary(s)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.kind, left: left, right: right}
	}
}

func parseUnary(s *stream) (node, error) {
	if s.match(tokenNot) {
		inner, err := parseUnary(s)
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	if s.match(tokenMinus) {
		inner, err := parseUnary(s)
		if err != nil {
			return nil, err
		}
		return negateNode{inner: inner}, nil
	}
	return parsePrimary(s)
}

func parsePrimary(s *stream) (node, error) {
	tok, ok := s.peek()
	if !ok {
		return nil, errors.New("simple: unexpected end of expression")
	}
	switch tok.kind {
	case tokenLParen:
		s.pos++
		inner, err := parseOr(s)
		if err != nil {
			return nil, err
		}
		if !s.match(tokenRParen) {
			return nil, errors.New("simple: missing closing ')'")
		}
		return inner, nil
	case tokenString:
		s.pos++
		return literalNode{value: tok.raw}, nil
	case tokenNumber:
		s.pos++
		f, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("simple: invalid number literal %q", tok.raw)
		}
		return literalNode{value: f}, nil
	case tokenBool:
		s.pos++
		return literalNode{value: tok.raw == "true"}, nil
	case tokenNull:
		s.pos++
		return literalNode{value: nil}, nil
	case tokenIdentifier:
		s.pos++
		return identNode{name: tok.raw}, nil
	default:
		return nil, fmt.Errorf("simple: unexpected token %q", tok.raw)
	}
}

type literalNode struct{ value any }

func (n literalNode) eval(_ *expr.Context) (any, error) { return n.value, nil }

type identNode struct{ name string }

func (n identNode) eval(ctx *expr.Context) (any, error) {
	if ctx == nil {
		return nil, nil
	}
	root := n.name
	rest := ""
	if idx := strings.IndexByte(n.name, '.'); idx > 0 {
		root, rest = n.name[:idx], n.name[idx+1:]
	}
	value, ok := ctx.Lookup(root)
	if !ok {
		return nil, nil
	}
	if rest == "" {
		return value, nil
	}
	return traverse(value, rest), nil
}

func traverse(value any, path string) any {
	current := value
	for _, part := range strings.Split(path, ".") {
		switch typed := current.(type) {
		case map[string]any:
			current = typed[part]
		case map[string]string:
			current = typed[part]
		default:
			return nil
		}
	}
	return current
}

type notNode struct{ inner node }

func (n notNode) eval(ctx *expr.Context) (any, error) {
	v, err := n.inner.eval(ctx)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

type negateNode struct{ inner node }

func (n negateNode) eval(ctx *expr.Context) (any, error) {
	v, err := n.inner.eval(ctx)
	if err != nil {
		return nil, err
	}
	f, ok := coerceNumber(v)
	if !ok {
		return nil, fmt.Errorf("simple: cannot negate %T", v)
	}
	return -f, nil
}

type binaryNode struct {
	op    tokenKind
	left  node
	right node
}

func (n binaryNode) eval(ctx *expr.Context) (any, error) {
	// Short-circuit boolean composition.
	switch n.op {
	case tokenAnd:
		lv, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		if !truthy(lv) {
			return false, nil
		}
		rv, err := n.right.eval(ctx)
		if err != nil {
			return nil, err
		}
		return truthy(rv), nil
	case tokenOr:
		lv, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		if truthy(lv) {
			return true, nil
		}
		rv, err := n.right.eval(ctx)
		if err != nil {
			return nil, err
		}
		return truthy(rv), nil
	}

	lv, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	rv, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokenEq:
		return looseEqual(lv, rv), nil
	case tokenNeq:
		return !looseEqual(lv, rv), nil
	case tokenLt, tokenLte, tokenGt, tokenGte:
		lf, lok := coerceNumber(lv)
		rf, rok := coerceNumber(rv)
		if !lok || !rok {
			ls, rs := coerceString(lv), coerceString(rv)
			switch n.op {
			case tokenLt:
				return ls < rs, nil
			case tokenLte:
				return ls <= rs, nil
			case tokenGt:
				return ls > rs, nil
			default:
				return ls >= rs, nil
			}
		}
		switch n.op {
		case tokenLt:
			return lf < rf, nil
		case tokenLte:
			return lf <= rf, nil
		case tokenGt:
			return lf > rf, nil
		default:
			return lf >= rf, nil
		}
	case tokenPlus:
		if ls, ok := lv.(string); ok {
			return ls + coerceString(rv), nil
		}
		return arith(lv, rv, func(a, b float64) float64 { return a + b })
	case tokenMinus:
		return arith(lv, rv, func(a, b float64) float64 { return a - b })
	case tokenStar:
		return arith(lv, rv, func(a, b float64) float64 { return a * b })
	case tokenSlash:
		rf, ok := coerceNumber(rv)
		if !ok || rf == 0 {
			return nil, errors.New("simple: division by zero or non-number")
		}
		lf, ok := coerceNumber(lv)
		if !ok {
			return nil, fmt.Errorf("simple: cannot divide %T", lv)
		}
		return lf / rf, nil
	default:
		return nil, fmt.Errorf("simple: unsupported operator")
	}
}

func arith(lv, rv any, fn func(a, b float64) float64) (any, error) {
	lf, lok := coerceNumber(lv)
	rf, rok := coerceNumber(rv)
	if !lok || !rok {
		return nil, fmt.Errorf("simple: arithmetic on non-numbers (%T, %T)", lv, rv)
	}
	return fn(lf, rf), nil
}
