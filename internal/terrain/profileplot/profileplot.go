// Package profileplot renders ProfileResult values as PNG charts for
// headless use: batch tools and the HTTP export endpoints.
package profileplot

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/terrain.profile/internal/terrain"
)

// Options controls chart rendering. The zero value renders a 10x5 inch chart
// with the default title.
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Height Profile"
	}
	if o.Width == 0 {
		o.Width = 10 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 5 * vg.Inch
	}
	return o
}

// Render writes a distance-vs-height chart of the profile to path. The output
// format follows the file extension (.png, .svg, .pdf). Mean heights are
// drawn as a solid line with the min/max envelope as lighter lines; no-data
// stations break the lines rather than plotting as zero.
func Render(result *terrain.ProfileResult, path string, opts Options) error {
	opts = opts.withDefaults()

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Distance (m)"
	p.Y.Label.Text = "Height (m)"

	for _, series := range []struct {
		name   string
		value  func(*terrain.HeightStats) float64
		color  color.Color
		width  vg.Length
		dashes []vg.Length
	}{
		{"min", func(s *terrain.HeightStats) float64 { return s.Min }, color.RGBA{R: 70, G: 130, B: 180, A: 255}, vg.Points(0.5), []vg.Length{vg.Points(3), vg.Points(2)}},
		{"max", func(s *terrain.HeightStats) float64 { return s.Max }, color.RGBA{R: 178, G: 34, B: 34, A: 255}, vg.Points(0.5), []vg.Length{vg.Points(3), vg.Points(2)}},
		{"mean", func(s *terrain.HeightStats) float64 { return s.Mean }, color.RGBA{R: 34, G: 139, B: 34, A: 255}, vg.Points(1.5), nil},
	} {
		for _, segment := range contiguousRuns(result.Stations) {
			pts := make(plotter.XYs, len(segment))
			for i, st := range segment {
				pts[i].X = st.Distance
				pts[i].Y = series.value(st.Stats)
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return fmt.Errorf("build %s line: %w", series.name, err)
			}
			line.Color = series.color
			line.Width = series.width
			line.Dashes = series.dashes
			p.Add(line)
		}
		// One legend entry per series, not per gap segment.
		swatch, err := plotter.NewLine(plotter.XYs{})
		if err != nil {
			return fmt.Errorf("build %s legend: %w", series.name, err)
		}
		swatch.Color = series.color
		swatch.Width = series.width
		swatch.Dashes = series.dashes
		p.Legend.Add(series.name, swatch)
	}

	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("save profile plot: %w", err)
	}
	return nil
}

// contiguousRuns splits the stations into maximal runs that carry data, so
// no-data gaps appear as breaks in the plotted lines.
func contiguousRuns(stations []terrain.Station) [][]terrain.Station {
	var runs [][]terrain.Station
	start := -1
	for i, st := range stations {
		if st.HasData() {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, stations[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, stations[start:])
	}
	return runs
}
