package expr

import "strings"

// ScanRefs extracts the identifiers an expression reads using a best-effort
// textual scan: bare identifiers outside string literals, minus keyword and
// function-call tokens. Evaluators with a real parser should implement
// RefExtractor instead; the engine prefers that when available.
func ScanRefs(expression string) []string {
	var refs []string
	seen := make(map[string]struct{})

	i := 0
	for i < len(expression) {
		ch := expression[i]

		// Skip string literals.
		if ch == '\'' || ch == '"' {
			quote := ch
			i++
			for i < len(expression) {
				if expression[i] == '\\' {
					i += 2
					continue
				}
				if expression[i] == quote {
					i++
					break
				}
				i++
			}
			continue
		}

		if !isIdentStart(ch) {
			i++
			continue
		}

		start := i
		for i < len(expression) && isIdentPart(expression[i]) {
			i++
		}
		raw := expression[start:i]

		// A trailing '(' marks a function call, not a data reference.
		j := i
		for j < len(expression) && (expression[j] == ' ' || expression[j] == '\t') {
			j++
		}
		if j < len(expression) && expression[j] == '(' {
			continue
		}

		name := firstSegment(raw)
		if isKeyword(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		refs = append(refs, name)
	}
	return refs
}

func firstSegment(ident string) string {
	if idx := strings.IndexByte(ident, '.'); idx > 0 {
		return ident[:idx]
	}
	return ident
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '%' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || ch == '.' || ch == '-' ||
		(ch >= '0' && ch <= '9')
}

func isKeyword(name string) bool {
	switch strings.ToLower(name) {
	case "true", "false", "null", "nil", "and", "or", "not":
		return true
	default:
		return false
	}
}
