// Package simple provides a small, dependency-free expression evaluator so the
// engine works out of the box. It understands identifiers (variables and
// question link ids, with dot-path traversal into map values), string/number/
// bool/null literals, arithmetic (+ - * /), comparisons (== != < > <= >=), and
// boolean composition (&& || !). Richer engines plug in through expr.Evaluator.
package simple

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formstate/pkg/expr"
)

// Evaluator implements expr.Evaluator and expr.RefExtractor.
type Evaluator struct{}

// New returns a ready evaluator. It is stateless and safe for concurrent use.
func New() *Evaluator { return &Evaluator{} }

var (
	_ expr.Evaluator    = (*Evaluator)(nil)
	_ expr.RefExtractor = (*Evaluator)(nil)
)

// Evaluate parses and evaluates the expression against ctx. An empty
// expression evaluates to nil.
func (e *Evaluator) Evaluate(expression string, ctx *expr.Context) (any, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, nil
	}
	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	node, err := parse(tokens)
	if err != nil {
		return nil, err
	}
	return node.eval(ctx)
}

// Refs reports the identifiers the expression reads, extracted from the real
// token stream rather than a textual scan.
func (e *Evaluator) Refs(expression string) []string {
	tokens, err := tokenize(strings.TrimSpace(expression))
	if err != nil {
		return expr.ScanRefs(expression)
	}
	var refs []string
	seen := make(map[string]struct{})
	for i, tok := range tokens {
		if tok.kind != tokenIdentifier {
			continue
		}
		// Function call names are not data references.
		if i+1 < len(tokens) && tokens[i+1].kind == tokenLParen {
			continue
		}
		name := tok.raw
		if idx := strings.IndexByte(name, '.'); idx > 0 {
			name = name[:idx]
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		refs = append(refs, name)
	}
	return refs
}

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokenLParen, raw: "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokenRParen, raw: ")"})
			i++
		case ch == '+':
			tokens = append(tokens, token{kind: tokenPlus, raw: "+"})
			i++
		case ch == '*':
			tokens = append(tokens, token{kind: tokenStar, raw: "*"})
			i++
		case ch == '/':
			tokens = append(tokens, token{kind: tokenSlash, raw: "/"})
			i++
		case ch == '-':
			tokens = append(tokens, token{kind: tokenMinus, raw: "-"})
			i++
		case ch == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenNot, raw: "!"})
				i++
			}
		case ch == '=':
			if i+1 >= len(input) || input[i+1] != '=' {
				return nil, errors.New("simple: unexpected '='; use '=='")
			}
			tokens = append(tokens, token{kind: tokenEq, raw: "=="})
			i += 2
		case ch == '<':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenLte, raw: "<="})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenLt, raw: "<"})
				i++
			}
		case ch == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenGte, raw: ">="})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenGt, raw: ">"})
				i++
			}
		case ch == '&':
			if i+1 >= len(input) || input[i+1] != '&' {
				return nil, errors.New("simple: unexpected '&'; use '&&'")
			}
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
			i += 2
		case ch == '|':
			if i+1 >= len(input) || input[i+1] != '|' {
				return nil, errors.New("simple: unexpected '|'; use '||'")
			}
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
			i += 2
		case ch == '\'' || ch == '"':
			value, next, err := scanString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, raw: value})
			i = next
		case ch >= '0' && ch <= '9':
			start := i
			for i < len(input) && (input[i] >= '0' && input[i] <= '9' || input[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, raw: input[start:i]})
		default:
			start := i
			for i < len(input) && isIdentByte(input[i]) {
				i++
			}
			if start == i {
				return nil, fmt.Errorf("simple: unexpected character %q", string(ch))
			}
			raw := input[start:i]
			switch strings.ToLower(raw) {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
			case "null", "nil":
				tokens = append(tokens, token{kind: tokenNull, raw: "null"})
			default:
				tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
			}
		}
	}
	return tokens, nil
}

func scanString(input string, start int) (string, int, error) {
	quote := input[start]
	i := start + 1
	var b strings.Builder
	for i < len(input) {
		ch := input[i]
		if ch == '\\' && i+1 < len(input) {
			b.WriteByte(input[i+1])
			i += 2
			continue
		}
		if ch == quote {
			return b.String(), i + 1, nil
		}
		b.WriteByte(ch)
		i++
	}
	return "", i, errors.New("simple: unterminated string literal")
}

func isIdentByte(ch byte) bool {
	return ch == '_' || ch == '.' || ch == '%' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}
