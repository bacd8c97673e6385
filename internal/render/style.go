package render

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// StyleSheet holds the marker styling for rendered tiles. Widths can be
// overridden per zoom level; unlisted zooms use the built-in ladder.
type StyleSheet struct {
	MarkerFill   string          `yaml:"marker_fill"`
	MarkerWidths map[int]float64 `yaml:"marker_widths"`
}

// DefaultStyleSheet returns the stock marker styling.
func DefaultStyleSheet() StyleSheet {
	return StyleSheet{MarkerFill: "#4287F5"}
}

// LoadStyleSheet reads a YAML style file. Missing fields keep their defaults.
func LoadStyleSheet(path string) (StyleSheet, error) {
	sheet := DefaultStyleSheet()
	data, err := os.ReadFile(path)
	if err != nil {
		return sheet, eris.Wrapf(err, "render: read styles %s", path)
	}
	if err := yaml.Unmarshal(data, &sheet); err != nil {
		return sheet, eris.Wrapf(err, "render: parse styles %s", path)
	}
	if sheet.MarkerFill == "" {
		sheet.MarkerFill = DefaultStyleSheet().MarkerFill
	}
	return sheet, nil
}

// StyleForZoom picks the marker style for a zoom level. Markers grow with
// zoom so individual points stay visible when zoomed in.
func (s StyleSheet) StyleForZoom(zoom int) LayerStyle {
	if w, ok := s.MarkerWidths[zoom]; ok {
		return LayerStyle{MarkerFill: s.MarkerFill, MarkerWidth: w}
	}
	var width float64
	switch {
	case zoom <= 3:
		width = 5.0
	case zoom <= 6:
		width = 6.0
	case zoom >= 10:
		width = 16.0
	default:
		width = map[int]float64{7: 9.0, 8: 12.5, 9: 14.0}[zoom]
	}
	return LayerStyle{MarkerFill: s.MarkerFill, MarkerWidth: width}
}
