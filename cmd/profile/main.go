// Command profile computes an elevation profile for a point cloud stored in
// an XYZ text file and writes the result as CSV, a PNG plot, an interactive
// HTML chart, or any combination of the three.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/terrain.profile/internal/terrain"
	"github.com/banshee-data/terrain.profile/internal/terrain/profileplot"
)

var (
	pointsPath = flag.String("points", "", "Input XYZ file (whitespace-separated x y z per line)")
	startFlag  = flag.String("start", "", "Profile line start as x,y,z")
	endFlag    = flag.String("end", "", "Profile line end as x,y,z")
	samples    = flag.Int("samples", 100, "Number of stations along the line")
	tolerance  = flag.Float64("tolerance", 1.0, "Corridor radius in metres")
	cellSize   = flag.Float64("cell-size", terrain.DefaultCellSize, "Spatial index cell size in metres")
	fillGaps   = flag.Bool("fill-gaps", false, "Fill interior no-data stations by linear interpolation")
	csvOut     = flag.String("csv", "", "Write the profile as CSV to this path")
	pngOut     = flag.String("png", "", "Write a PNG plot to this path")
	htmlOut    = flag.String("html", "", "Write an interactive HTML chart to this path")
)

// parseVec3 parses "x,y,z" into a vector. A missing z defaults to zero so
// planar line endpoints can be given as "x,y".
func parseVec3(s string) (terrain.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return terrain.Vec3{}, fmt.Errorf("want x,y or x,y,z, got %q", s)
	}
	var v terrain.Vec3
	dst := []*float64{&v.X, &v.Y, &v.Z}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return terrain.Vec3{}, fmt.Errorf("invalid coordinate %q: %w", p, err)
		}
		*dst[i] = f
	}
	return v, nil
}

// loadXYZ reads whitespace-separated x y z lines. Blank lines and lines
// starting with '#' are skipped; extra columns beyond z are ignored.
func loadXYZ(path string) ([]terrain.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var points []terrain.Point
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: want at least 3 columns, got %d", lineNo, len(fields))
		}
		var p terrain.Point
		for i, dst := range []*float64{&p.X, &p.Y, &p.Z} {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q: %w", lineNo, fields[i], err)
			}
			*dst = v
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func writeHTMLChart(path string, result *terrain.ProfileResult) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Height Profile",
			Subtitle: fmt.Sprintf("%d stations, %.2fm line", result.SampleCount, result.Length),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	xAxis := make([]string, len(result.Stations))
	mean := make([]opts.LineData, len(result.Stations))
	for i, st := range result.Stations {
		xAxis[i] = strconv.FormatFloat(st.Distance, 'f', 2, 64)
		if st.HasData() {
			mean[i] = opts.LineData{Value: st.Stats.Mean}
		} else {
			mean[i] = opts.LineData{Value: nil}
		}
	}
	line.SetXAxis(xAxis).AddSeries("mean", mean)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return line.Render(f)
}

func main() {
	flag.Parse()

	if *pointsPath == "" || *startFlag == "" || *endFlag == "" {
		flag.Usage()
		log.Fatal("-points, -start and -end are required")
	}
	if *csvOut == "" && *pngOut == "" && *htmlOut == "" {
		log.Fatal("no output requested; give at least one of -csv, -png, -html")
	}

	start, err := parseVec3(*startFlag)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end, err := parseVec3(*endFlag)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	points, err := loadXYZ(*pointsPath)
	if err != nil {
		log.Fatalf("failed to load points: %v", err)
	}
	log.Printf("loaded %d points from %s", len(points), *pointsPath)

	cloud := terrain.NewPointCloud(points)
	index := terrain.NewSpatialIndex(*cellSize)
	index.Build(cloud)

	line := terrain.LineSegment{Start: start, End: end}
	result, err := terrain.ComputeProfile(cloud, index, line, *samples, *tolerance)
	if err != nil {
		log.Fatalf("failed to compute profile: %v", err)
	}
	if *fillGaps {
		result = result.InterpolateGaps()
	}

	summary := result.Summary()
	log.Printf("profile: %d/%d stations with data, elevation %.2fm to %.2fm",
		summary.ValidStations, len(result.Stations), summary.MinElevation, summary.MaxElevation)

	if *csvOut != "" {
		if err := terrain.ExportCSV(*csvOut, result); err != nil {
			log.Fatalf("failed to write csv: %v", err)
		}
		log.Printf("wrote %s", *csvOut)
	}
	if *pngOut != "" {
		if err := profileplot.Render(result, *pngOut, profileplot.Options{}); err != nil {
			log.Fatalf("failed to write plot: %v", err)
		}
		log.Printf("wrote %s", *pngOut)
	}
	if *htmlOut != "" {
		if err := writeHTMLChart(*htmlOut, result); err != nil {
			log.Fatalf("failed to write chart: %v", err)
		}
		log.Printf("wrote %s", *htmlOut)
	}
}
