package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/terrain.profile/internal/terrain"
)

// profileChartHandler renders an interactive distance-vs-height chart (HTML)
// of a freshly computed profile using go-echarts. No-data stations plot as
// gaps, never as zero heights.
func (s *Server) profileChartHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProfileRequest(w, r)
	if !ok {
		return
	}

	result, err := s.computeProfile(req)
	if err != nil {
		s.writeProfileError(w, req.LayerID, err)
		return
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Height Profile",
			Theme:     "dark",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Height Profile",
			Subtitle: fmt.Sprintf("layer=%s samples=%d tolerance=%.2fm length=%.2fm",
				req.LayerID, result.SampleCount, result.Tolerance, result.Length),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Distance (m)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Height (m)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	distances := make([]string, len(result.Stations))
	for i, st := range result.Stations {
		distances[i] = fmt.Sprintf("%.2f", st.Distance)
	}

	line.SetXAxis(distances).
		AddSeries("mean", seriesData(result.Stations, func(s *terrain.HeightStats) float64 { return s.Mean })).
		AddSeries("min", seriesData(result.Stations, func(s *terrain.HeightStats) float64 { return s.Min })).
		AddSeries("max", seriesData(result.Stations, func(s *terrain.HeightStats) float64 { return s.Max }))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// seriesData converts stations into chart points, emitting nulls at no-data
// stations so echarts draws a gap.
func seriesData(stations []terrain.Station, value func(*terrain.HeightStats) float64) []opts.LineData {
	data := make([]opts.LineData, len(stations))
	for i, st := range stations {
		if st.HasData() {
			data[i] = opts.LineData{Value: value(st.Stats)}
		} else {
			data[i] = opts.LineData{Value: nil}
		}
	}
	return data
}
