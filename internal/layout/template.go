// Package layout maps a leaderboard onto the fixed slot geometry of a visual
// template and renders the result as a self-contained HTML document.
//
// Slot rectangles are measured from the template artwork in advance and
// treated as configuration. The compositor never re-derives geometry from
// the image.
package layout

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Rect is a pixel rectangle, top-left origin.
type Rect struct {
	X int `koanf:"x" json:"x"`
	Y int `koanf:"y" json:"y"`
	W int `koanf:"w" json:"w"`
	H int `koanf:"h" json:"h"`
}

// Slot is the placement for one rank position: where the logo mark goes and
// where the caption text block goes.
type Slot struct {
	Logo Rect `koanf:"logo" json:"logo"`
	Text Rect `koanf:"text" json:"text"`
}

// Template is the fixed visual geometry reused across runs.
type Template struct {
	Width      int    `koanf:"width" json:"width"`
	Height     int    `koanf:"height" json:"height"`
	Background string `koanf:"background" json:"background"` // path to the template PNG
	ColumnSize int    `koanf:"column_size" json:"columnSize"`
	LogoSize   int    `koanf:"logo_size" json:"logoSize"`
	Slots      []Slot `koanf:"slots" json:"slots"`
}

// Validate rejects templates the compositor cannot place slots on.
func (t *Template) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("template canvas %dx%d is invalid", t.Width, t.Height)
	}
	if t.ColumnSize <= 0 {
		return fmt.Errorf("template column_size must be positive, got %d", t.ColumnSize)
	}
	if len(t.Slots) == 0 {
		return fmt.Errorf("template declares no slots")
	}
	return nil
}

// Column returns the column and row a slot index falls in. Slots are laid
// out column-major: indexes 0..ColumnSize-1 fill the first column.
func (t *Template) Column(i int) (col, row int) {
	return i / t.ColumnSize, i % t.ColumnSize
}

// BackgroundStyle returns the CSS background for the template artwork,
// embedding the PNG as a data URI. When the artwork file is missing it falls
// back to a gradient so a misplaced file degrades the image instead of
// failing the run.
func (t *Template) BackgroundStyle() string {
	if t.Background != "" {
		if raw, err := os.ReadFile(t.Background); err == nil {
			return fmt.Sprintf("background-image: url('data:image/png;base64,%s');",
				base64.StdEncoding.EncodeToString(raw))
		}
	}
	return "background: linear-gradient(135deg, #0f2027 0%, #203a43 50%, #2c5364 100%);"
}

// Load reads a template descriptor from a YAML file.
func Load(path string) (*Template, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", path, err)
	}
	var t Template
	if err := k.UnmarshalWithConf("", &t, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Default returns the built-in two-column 4K template measured from the
// standard ranking artwork: logo centers at X 718 (left column) and X 2473
// (right column), five 195px circles per column.
func Default() *Template {
	const (
		leftX    = 718
		rightX   = 2473
		logoSize = 195
		radius   = logoSize / 2
		textGap  = 50
	)
	leftCenters := []int{395, 738, 1078, 1418, 1775}
	rightCenters := []int{378, 718, 1063, 1398, 1758}

	slots := make([]Slot, 0, 10)
	for _, y := range leftCenters {
		slots = append(slots, slotAt(leftX, y, logoSize, radius, textGap))
	}
	for _, y := range rightCenters {
		slots = append(slots, slotAt(rightX, y, logoSize, radius, textGap))
	}

	return &Template{
		Width:      3825,
		Height:     2160,
		ColumnSize: 5,
		LogoSize:   logoSize,
		Slots:      slots,
	}
}

func slotAt(centerX, centerY, logoSize, radius, textGap int) Slot {
	return Slot{
		Logo: Rect{X: centerX - radius, Y: centerY - radius, W: logoSize, H: logoSize},
		Text: Rect{X: centerX + radius + textGap, Y: centerY - radius, W: 1080, H: logoSize},
	}
}
