package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/quill/internal/security"
)

type tokenKind uint8

const (
	tokText tokenKind = iota
	tokParam
	tokIdent
)

type token struct {
	kind tokenKind
	text string // literal text or identifier name
	ref  int    // 0-based param index for tokParam
}

// fragment is a caller-supplied SQL snippet with its own params. Its
// placeholders are renumbered into the statement's counter at compile time.
type fragment struct {
	raw    string
	tokens []token
	params []any
}

// parseFragment splits raw into text, placeholder and identifier tokens.
// Placeholders are either all "?" or all "$k"; text inside quotes is left
// alone. "??" is a literal "?" (jsonb ?, ?| and ?& are written ??, ??| and
// ??&). {{name}} and [[name]] become quoted identifiers.
func parseFragment(raw string, params []any) (*fragment, error) {
	f := &fragment{raw: raw, params: params}

	var (
		text     strings.Builder
		question int
		dollar   bool
		used     = make([]bool, len(params))
	)
	flush := func() {
		if text.Len() > 0 {
			f.tokens = append(f.tokens, token{kind: tokText, text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			end := strings.IndexByte(raw[i+1:], ch)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated quote in %q", ErrRawPlaceholders, raw)
			}
			text.WriteString(raw[i : i+end+2])
			i += end + 1

		case ch == '?' && i+1 < len(raw) && raw[i+1] == '?':
			text.WriteByte('?')
			i++

		case ch == '?':
			if dollar {
				return nil, fmt.Errorf("%w: mixed ? and $n in %q", ErrRawPlaceholders, raw)
			}
			flush()
			f.tokens = append(f.tokens, token{kind: tokParam, ref: question})
			question++

		case ch == '$' && i+1 < len(raw) && isDigit(raw[i+1]):
			if question > 0 {
				return nil, fmt.Errorf("%w: mixed ? and $n in %q", ErrRawPlaceholders, raw)
			}
			j := i + 1
			for j < len(raw) && isDigit(raw[j]) {
				j++
			}
			n, _ := strconv.Atoi(raw[i+1 : j])
			if n < 1 || n > len(params) {
				return nil, fmt.Errorf("%w: $%d out of range for %d params", ErrRawPlaceholders, n, len(params))
			}
			dollar = true
			used[n-1] = true
			flush()
			f.tokens = append(f.tokens, token{kind: tokParam, ref: n - 1})
			i = j - 1

		case (ch == '{' || ch == '[') && i+1 < len(raw) && raw[i+1] == ch:
			closing := "}}"
			if ch == '[' {
				closing = "]]"
			}
			end := strings.Index(raw[i+2:], closing)
			name := ""
			if end >= 0 {
				name = strings.TrimSpace(raw[i+2 : i+2+end])
			}
			if end < 0 || !security.ValidQualified(name) {
				text.WriteByte(ch)
				continue
			}
			flush()
			f.tokens = append(f.tokens, token{kind: tokIdent, text: name})
			i += end + 3

		default:
			text.WriteByte(ch)
		}
	}
	flush()

	switch {
	case dollar:
		for i, ok := range used {
			if !ok {
				return nil, fmt.Errorf("%w: param %d is never referenced", ErrRawPlaceholders, i+1)
			}
		}
	case question != len(params):
		return nil, fmt.Errorf("%w: %d placeholders, %d params", ErrRawPlaceholders, question, len(params))
	}

	return f, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (f *fragment) clone() *fragment {
	if f == nil {
		return nil
	}
	cp := *f
	cp.params = append([]any(nil), f.params...)
	return &cp
}
