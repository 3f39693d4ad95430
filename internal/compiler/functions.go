package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSignature is returned for malformed function signatures.
var ErrInvalidSignature = errors.New("invalid function signature")

// Param is one declared function parameter.
type Param struct {
	Name       string
	Default    string
	HasDefault bool
}

// Signature is a parsed host function signature.
type Signature struct {
	Name   string
	Params []Param
}

// ParseSignature parses "name($a, $b: default)". A default of null means the
// argument is optional and arrives as an empty string.
func ParseSignature(sig string) (Signature, error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return Signature{}, fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
	}
	out := Signature{Name: strings.TrimSpace(sig[:open])}
	if !isIdent(out.Name) {
		return Signature{}, fmt.Errorf("%w: bad name in %q", ErrInvalidSignature, sig)
	}

	body := strings.TrimSpace(sig[open+1 : len(sig)-1])
	if body == "" {
		return out, nil
	}
	for _, raw := range strings.Split(body, ",") {
		raw = strings.TrimSpace(raw)
		name, def, hasDef := strings.Cut(raw, ":")
		name = strings.TrimSpace(name)
		if !strings.HasPrefix(name, "$") || !isIdent(name[1:]) {
			return Signature{}, fmt.Errorf("%w: bad parameter %q in %q", ErrInvalidSignature, raw, sig)
		}
		p := Param{Name: name[1:]}
		if hasDef {
			p.HasDefault = true
			if def = strings.TrimSpace(def); def != "null" {
				p.Default = unquote(def)
			}
		}
		out.Params = append(out.Params, p)
	}
	return out, nil
}

// bind maps call arguments onto the signature parameters.
func (s Signature) bind(args []string) ([]string, error) {
	if len(args) > len(s.Params) {
		return nil, fmt.Errorf("%s: expected at most %d arguments, got %d", s.Name, len(s.Params), len(args))
	}
	out := make([]string, len(s.Params))
	for i, p := range s.Params {
		switch {
		case i < len(args):
			out[i] = args[i]
		case p.HasDefault:
			out[i] = p.Default
		default:
			return nil, fmt.Errorf("%s: missing argument $%s", s.Name, p.Name)
		}
	}
	return out, nil
}

type boundFunction struct {
	sig Signature
	fn  Function
}

// ExpandFunctions replaces every call of a registered function in css with the
// value it returns. Calls inside strings and comments are left alone.
func ExpandFunctions(ctx context.Context, css string, functions map[string]Function) (string, error) {
	if len(functions) == 0 {
		return css, nil
	}
	table := make(map[string]boundFunction, len(functions))
	for raw, fn := range functions {
		sig, err := ParseSignature(raw)
		if err != nil {
			return "", err
		}
		table[sig.Name] = boundFunction{sig: sig, fn: fn}
	}

	var b strings.Builder
	b.Grow(len(css))
	for i := 0; i < len(css); {
		c := css[i]
		switch {
		case c == '"' || c == '\'':
			end := skipString(css, i)
			b.WriteString(css[i:end])
			i = end
		case c == '/' && i+1 < len(css) && css[i+1] == '*':
			end := strings.Index(css[i+2:], "*/")
			if end < 0 {
				b.WriteString(css[i:])
				return b.String(), nil
			}
			end += i + 4
			b.WriteString(css[i:end])
			i = end
		case isIdentByte(c) && (i == 0 || !isIdentByte(css[i-1])):
			j := i
			for j < len(css) && isIdentByte(css[j]) {
				j++
			}
			name := css[i:j]
			bound, ok := table[name]
			if !ok || j >= len(css) || css[j] != '(' {
				b.WriteString(name)
				i = j
				continue
			}
			argText, end, err := readCall(css, j)
			if err != nil {
				return "", fmt.Errorf("%s: %w", name, err)
			}
			if err := ctx.Err(); err != nil {
				return "", err
			}
			args, err := bound.sig.bind(splitArgs(argText))
			if err != nil {
				return "", err
			}
			value, err := bound.fn(ctx, args)
			if err != nil {
				return "", fmt.Errorf("%s: %w", name, err)
			}
			b.WriteString(value)
			i = end
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// readCall returns the text between the parenthesis at open and its match,
// and the index just past the closing parenthesis.
func readCall(css string, open int) (string, int, error) {
	depth := 0
	for i := open; i < len(css); {
		switch css[i] {
		case '"', '\'':
			i = skipString(css, i)
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return css[open+1 : i], i + 1, nil
			}
		}
		i++
	}
	return "", 0, errors.New("unterminated function call")
}

func splitArgs(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var (
		args  []string
		depth int
		start int
	)
	for i := 0; i < len(text); {
		switch text[i] {
		case '"', '\'':
			i = skipString(text, i)
			continue
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, unquote(strings.TrimSpace(text[start:i])))
				start = i + 1
			}
		}
		i++
	}
	return append(args, unquote(strings.TrimSpace(text[start:])))
}

// skipString returns the index just past the string literal starting at i.
func skipString(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(s)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		inner := s[1 : len(s)-1]
		return strings.ReplaceAll(inner, `\`+string(s[0]), string(s[0]))
	}
	return s
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}
