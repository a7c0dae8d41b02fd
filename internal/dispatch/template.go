package dispatch

import (
	"fmt"
	"regexp"
	"strconv"
)

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// RenderTemplate substitutes every {{key}} placeholder in the template
// text with the corresponding value from data. Unmatched keys become the
// empty string. Substitution is plain text replacement over the
// serialized template, so values are inserted verbatim.
func RenderTemplate(tmpl string, data map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[2 : len(m)-2]
		v, ok := data[key]
		if !ok || v == nil {
			return ""
		}
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(t, 10)
		default:
			return fmt.Sprint(t)
		}
	})
}
