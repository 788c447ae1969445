package source

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FieldRule extracts one output field from a row of semi-structured markup.
// Selectors form a fallback chain tried in order; the first one that yields
// non-empty text (or a non-empty attribute when Attr is set) wins. The chain
// is data, not control flow, so a relabeled page is fixed by appending a
// selector rather than editing adapter code.
type FieldRule struct {
	Field     string
	Selectors []string
	Attr      string              // when set, read this attribute instead of text
	Transform func(string) string // optional post-processing of the winning value
}

// Apply runs the fallback chain against one row selection. It returns ""
// when no selector in the chain produced a usable value.
func (r FieldRule) Apply(row *goquery.Selection) string {
	for _, sel := range r.Selectors {
		node := row.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		var v string
		if r.Attr != "" {
			v, _ = node.Attr(r.Attr)
		} else {
			v = node.Text()
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if r.Transform != nil {
			v = strings.TrimSpace(r.Transform(v))
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// ExtractFields parses one row's HTML and applies every rule, returning the
// field values that resolved. Unresolved fields are absent from the map.
// Bare <tr> fragments are wrapped in a table first; the HTML5 parser drops
// table rows that appear outside a table.
func ExtractFields(rowHTML string, rules []FieldRule) (map[string]string, error) {
	trimmed := strings.TrimSpace(rowHTML)
	if strings.HasPrefix(strings.ToLower(trimmed), "<tr") {
		rowHTML = "<table><tbody>" + trimmed + "</tbody></table>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rowHTML))
	if err != nil {
		return nil, err
	}
	root := doc.Selection
	out := make(map[string]string, len(rules))
	for _, rule := range rules {
		if v := rule.Apply(root); v != "" {
			out[rule.Field] = v
		}
	}
	return out, nil
}

// FirstLine trims a value down to its first line. Ranking tables often stack
// a name and a subtitle inside one cell.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
