package layout

import (
	"fmt"
	"html"
	"strings"

	"chainrank/internal/record"
)

// Style controls the textual treatment of each placed entry.
type Style struct {
	MetricLabel  string // label shown before the primary metric, e.g. "Users"
	MetricPrefix string // "$" for monetary metrics
	ChangeMetric string // metric name whose sign picks the change color, "" to omit
	Badge        string // optional badge text, e.g. "FEES: 7 DAYS"
	Footer       string // footer line, e.g. "21 August 2026 | @ChainMindX"
}

// Item is one entity placed on a slot.
type Item struct {
	Rank     int    `json:"rank"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Metric   string `json:"metric"`          // formatted primary metric
	Change   string `json:"change,omitempty"` // formatted change metric
	Negative bool   `json:"negative,omitempty"`
	LogoURI  string `json:"-"` // data URI, omitted from JSON output
	Slot     Slot   `json:"slot"`
	Col      int    `json:"col"`
	Row      int    `json:"row"`
}

// Document is the renderable mapping of leaderboard ranks onto template
// slots. It carries positions, text and image refs only; turning it into a
// bitmap is the rendering engine's job.
type Document struct {
	Template *Template
	Style    Style
	Items    []Item
}

// Compose maps leaderboard rank i onto template slot i. Entries beyond the
// template's slot count are dropped, never wrapped or resized. resolved maps
// logo refs to embeddable data URIs; refs absent from the map render without
// a logo.
func Compose(lb *record.Leaderboard, tmpl *Template, resolved map[string]string, style Style) (*Document, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	n := len(lb.Entries)
	if n > len(tmpl.Slots) {
		n = len(tmpl.Slots)
	}

	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		e := lb.Entries[i]
		col, row := tmpl.Column(i)

		item := Item{
			Rank:    i + 1,
			Name:    e.DisplayName,
			LogoURI: resolved[e.LogoRef],
			Slot:    tmpl.Slots[i],
			Col:     col,
			Row:     row,
		}
		if e.Category != "" && e.Category != "N/A" {
			item.Category = e.Category
		}
		if v, ok := e.Metric(lb.Metric); ok {
			item.Metric = record.FormatValue(v, style.MetricPrefix)
		}
		if style.ChangeMetric != "" {
			if c, ok := e.Metric(style.ChangeMetric); ok {
				item.Change = record.FormatChange(c)
				// Qualitative color encoding is a pure function of sign,
				// computed here, never stored on the entity.
				item.Negative = c < 0
			}
		}
		items = append(items, item)
	}

	return &Document{Template: tmpl, Style: style, Items: items}, nil
}

// HTML renders the document as a self-contained page the rendering engine
// can screenshot. All geometry is absolute-positioned from the slot rects;
// long names are clipped by the CSS max-width/ellipsis rule rather than
// wrapped, because slot geometry is fixed pixel space.
func (d *Document) HTML() string {
	t := d.Template
	var b strings.Builder

	fmt.Fprintf(&b, `<!DOCTYPE html>
<html>
<head>
<style>
@import url('https://fonts.googleapis.com/css2?family=Inter:wght@400;600;700;800&display=swap');
* { margin: 0; padding: 0; box-sizing: border-box; }
body, html {
  width: %dpx;
  height: %dpx;
  overflow: hidden;
  background-color: black;
  font-family: 'Inter', sans-serif;
  color: white;
}
#background { position: absolute; inset: 0; %s background-size: %dpx %dpx; z-index: 1; }
#container { position: absolute; inset: 0; z-index: 2; }
.entity-logo {
  position: absolute;
  border-radius: 50%%;
  background-color: #222;
  object-fit: cover;
  border: 2px solid rgba(255,255,255,0.2);
}
.text-group {
  position: absolute;
  display: flex;
  flex-direction: column;
  justify-content: center;
}
.entity-name {
  font-size: 81px;
  font-weight: 800;
  white-space: nowrap;
  overflow: hidden;
  text-overflow: ellipsis;
  text-shadow: 2px 2px 4px rgba(0,0,0,0.9);
  margin-bottom: 21px;
}
.entity-stats {
  font-size: 59px;
  font-weight: 600;
  display: flex;
  gap: 54px;
  color: #ccc;
  align-items: center;
}
.stat-cat { color: #A855F7; font-weight: 700; }
.stat-label { color: #9CA3AF; font-size: 48px; }
.stat-value { color: #F0B90B; }
.stat-change { color: #2EBD85; }
.stat-change.negative { color: #FF4D4D; }
#footer {
  position: absolute;
  bottom: 80px;
  left: 140px;
  color: rgba(255, 255, 255, 0.85);
  font-size: 44px;
  font-weight: 600;
  z-index: 10;
  letter-spacing: 0.5px;
}
#badge {
  position: absolute;
  top: 120px;
  right: 140px;
  background: linear-gradient(135deg, #10B981, #059669);
  padding: 20px 50px;
  border-radius: 50px;
  font-size: 48px;
  font-weight: 800;
  z-index: 10;
}
</style>
</head>
<body>
<div id="background"></div>
<div id="container">
`, t.Width, t.Height, t.BackgroundStyle(), t.Width, t.Height)

	if d.Style.Badge != "" {
		fmt.Fprintf(&b, "<div id=\"badge\">%s</div>\n", html.EscapeString(d.Style.Badge))
	}

	for _, it := range d.Items {
		if it.LogoURI != "" {
			fmt.Fprintf(&b,
				"<img src=%q class=\"entity-logo\" style=\"left: %dpx; top: %dpx; width: %dpx; height: %dpx;\">\n",
				it.LogoURI, it.Slot.Logo.X, it.Slot.Logo.Y, it.Slot.Logo.W, it.Slot.Logo.H)
		}

		var stats []string
		if it.Category != "" {
			stats = append(stats, fmt.Sprintf("<span class=\"stat-cat\">%s</span>", html.EscapeString(it.Category)))
		}
		if it.Metric != "" {
			stats = append(stats, fmt.Sprintf("<span class=\"stat-label\">%s</span> <span class=\"stat-value\">%s</span>",
				html.EscapeString(d.Style.MetricLabel), html.EscapeString(it.Metric)))
		}
		if it.Change != "" {
			cls := "stat-change"
			if it.Negative {
				cls += " negative"
			}
			stats = append(stats, fmt.Sprintf("<span class=%q>%s</span>", cls, html.EscapeString(it.Change)))
		}

		fmt.Fprintf(&b, `<div class="text-group" style="left: %dpx; top: %dpx; height: %dpx;">
<div class="entity-name" style="max-width: %dpx;">%s</div>
`, it.Slot.Text.X, it.Slot.Text.Y, it.Slot.Text.H, it.Slot.Text.W, html.EscapeString(it.Name))
		if len(stats) > 0 {
			fmt.Fprintf(&b, "<div class=\"entity-stats\">%s</div>\n", strings.Join(stats, " "))
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("</div>\n")
	if d.Style.Footer != "" {
		fmt.Fprintf(&b, "<div id=\"footer\">%s</div>\n", html.EscapeString(d.Style.Footer))
	}
	b.WriteString("</body>\n</html>\n")

	return b.String()
}
