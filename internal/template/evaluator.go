package template

import (
	"fmt"
	"strings"

	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// Mode selects whether an unresolved reference is fatal (Strict) or left
// verbatim for a later pass (Partial).
type Mode int

const (
	// Strict fails with a TemplateStringError on any unresolved reference.
	Strict Mode = iota
	// Partial leaves unresolved "${...}" expressions untouched in the
	// output, used before the plugin configure handler runs.
	Partial
)

const (
	exprOpen  = "${"
	exprClose = "}"
)

// Resolve walks value (scalar, list, or map) and resolves every "${...}"
// expression against ctx. Maps and lists are walked once; strings are
// parsed and re-rendered in place.
func Resolve(value any, ctx *Context, mode Mode) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, ctx, mode)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := Resolve(item, ctx, mode)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := Resolve(item, ctx, mode)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// resolveString finds every "${...}" span in s. A string that is *entirely*
// a single expression returns the expression's native type (so a reference
// to a list/map output survives typed); otherwise spans are interpolated
// into the surrounding literal text.
func resolveString(s string, ctx *Context, mode Mode) (any, error) {
	spans, err := findSpans(s)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return s, nil
	}

	if len(spans) == 1 && spans[0].start == 0 && spans[0].end == len(s) {
		return evalSpan(s[spans[0].start:spans[0].end], ctx, mode)
	}

	var sb strings.Builder
	last := 0
	for _, span := range spans {
		sb.WriteString(s[last:span.start])
		value, err := evalSpan(s[span.start:span.end], ctx, mode)
		if err != nil {
			return nil, err
		}
		if unresolved, ok := value.(unresolvedMarker); ok {
			sb.WriteString(string(unresolved))
		} else {
			sb.WriteString(stringify(value))
		}
		last = span.end
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}

type unresolvedMarker string

type span struct{ start, end int }

// findSpans locates balanced "${...}" spans, allowing nested braces inside
// (e.g. function calls), and returns their byte offsets into s.
func findSpans(s string) ([]span, error) {
	var spans []span
	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], exprOpen)
		if idx < 0 {
			break
		}
		start := i + idx
		depth := 1
		j := start + len(exprOpen)
		for j < len(s) && depth > 0 {
			switch s[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			j++
		}
		if depth != 0 {
			return nil, fmt.Errorf("unterminated expression starting at byte %d", start)
		}
		spans = append(spans, span{start: start, end: j})
		i = j
	}
	return spans, nil
}

// evalSpan evaluates a single "${...}" span (braces included).
func evalSpan(raw string, ctx *Context, mode Mode) (any, error) {
	body := raw[len(exprOpen) : len(raw)-len(exprClose)]

	e, err := parseExpr(body)
	if err != nil {
		if mode == Partial {
			return unresolvedMarker(raw), nil
		}
		return nil, coreerrors.NewTemplateStringError(body, ctx.Branches(), err)
	}

	for _, alt := range e.alternatives {
		value, ok, err := evalTerm(alt, ctx, mode)
		if err != nil {
			return nil, err
		}
		if ok {
			return value, nil
		}
	}

	if mode == Partial {
		return unresolvedMarker(raw), nil
	}
	return nil, coreerrors.NewTemplateStringError(body, ctx.Branches(), nil)
}

// evalTerm evaluates one alternative of an expression. ok=false means the
// alternative did not resolve (so the caller should try the next
// alternative, or fail if this was the last one).
func evalTerm(t term, ctx *Context, mode Mode) (any, bool, error) {
	switch t.kind {
	case termLiteral:
		return t.literal, true, nil
	case termPath:
		value, found := ctx.Lookup(t.path)
		if !found {
			return nil, false, nil
		}
		return value, true, nil
	case termCall:
		fn, ok := builtinFuncs[t.fn]
		if !ok {
			return nil, false, fmt.Errorf("unknown template function %q", t.fn)
		}
		args := make([]any, 0, len(t.args))
		for _, a := range t.args {
			value, ok, err := evalTerm(a, ctx, mode)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			args = append(args, value)
		}
		result, err := fn(args)
		if err != nil {
			return nil, false, err
		}
		return result, true, nil
	default:
		return nil, false, fmt.Errorf("unhandled term kind %d", t.kind)
	}
}

// ReferencesIn returns every "actions.<kind>.<name>.outputs.<key>" style
// dotted path referenced anywhere inside value, used by internal/graph to
// induce template-reference dependency edges.
func ReferencesIn(value any) []string {
	var out []string
	collectReferences(value, &out)
	return out
}

func collectReferences(value any, out *[]string) {
	switch v := value.(type) {
	case string:
		spans, err := findSpans(v)
		if err != nil {
			return
		}
		for _, sp := range spans {
			body := v[sp.start+len(exprOpen) : sp.end-len(exprClose)]
			e, err := parseExpr(body)
			if err != nil {
				continue
			}
			for _, alt := range e.alternatives {
				collectTermPaths(alt, out)
			}
		}
	case map[string]any:
		for _, item := range v {
			collectReferences(item, out)
		}
	case []any:
		for _, item := range v {
			collectReferences(item, out)
		}
	}
}

func collectTermPaths(t term, out *[]string) {
	switch t.kind {
	case termPath:
		*out = append(*out, t.path)
	case termCall:
		for _, a := range t.args {
			collectTermPaths(a, out)
		}
	}
}
