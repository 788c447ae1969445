package envelope

import (
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"chainrank/internal/record"
)

// ReportHTML renders the leaderboard as a plain HTML table, independent of
// any visual template. This is the source for the markdown output mode and
// doubles as a human-inspectable dump of the ranked data.
func ReportHTML(lb *record.Leaderboard, title, prefix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<p>%d entries, ranked by %s</p>\n", len(lb.Entries), html.EscapeString(lb.Metric))
	b.WriteString("<table>\n<thead><tr><th>#</th><th>Name</th><th>Category</th><th>Value</th></tr></thead>\n<tbody>\n")
	for i, e := range lb.Entries {
		value := ""
		if v, ok := e.Metric(lb.Metric); ok {
			value = record.FormatValue(v, prefix)
		}
		fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			i+1, html.EscapeString(e.DisplayName), html.EscapeString(e.Category), html.EscapeString(value))
	}
	b.WriteString("</tbody>\n</table>\n")
	return b.String()
}

// ReportMarkdown converts the leaderboard report into markdown.
func ReportMarkdown(lb *record.Leaderboard, title, prefix string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.Table())
	out, err := converter.ConvertString(ReportHTML(lb, title, prefix))
	if err != nil {
		return "", fmt.Errorf("failed to convert report to markdown: %w", err)
	}
	return out, nil
}
