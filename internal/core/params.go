package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coregx/quill/internal/dialects"
)

// Params holds named values for hand-written SQL using {:name} markers.
//
//	db.NewQuery("SELECT * FROM {{users}} WHERE [[id]] = {:id}").
//	    Bind(quill.Params{"id": 1}).
//	    One(&user)
type Params map[string]any

var (
	namedPlaceholderRe = regexp.MustCompile(`\{:(\w+)\}`)
	quoteMarkerRe      = regexp.MustCompile(`\{\{([\w. ]+)\}\}|\[\[([\w. ]+)\]\]`)
)

// expandNamed rewrites {:name} markers to dialect placeholders and quotes
// {{table}} and [[column]] markers. It returns the marker names in order of
// appearance; a name used twice appears twice.
func expandNamed(d dialects.Dialect, sql string) (string, []string) {
	var names []string
	out := namedPlaceholderRe.ReplaceAllStringFunc(sql, func(m string) string {
		names = append(names, m[2:len(m)-1])
		return d.Placeholder(len(names))
	})
	out = quoteMarkerRe.ReplaceAllStringFunc(out, func(m string) string {
		return dialects.QuoteQualified(d, strings.TrimSpace(m[2:len(m)-2]))
	})
	return out, names
}

// bindParams orders params by names, failing on the first missing name.
func bindParams(params Params, names []string) ([]any, error) {
	values := make([]any, len(names))
	for i, name := range names {
		v, ok := params[name]
		if !ok {
			return nil, fmt.Errorf("quill: missing parameter %q", name)
		}
		values[i] = v
	}
	return values, nil
}
