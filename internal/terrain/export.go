package terrain

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// csvHeader is the column layout consumed by existing export tooling.
// Do not rename or reorder columns.
var csvHeader = []string{
	"distance_m",
	"min_height_m",
	"max_height_m",
	"mean_height_m",
	"std_height_m",
	"point_count",
}

// WriteCSV serialises a profile as CSV, one row per station. No-data
// stations emit empty statistic fields and a zero point count, never a
// numeric placeholder that could be misread as a real height.
func WriteCSV(w io.Writer, result *ProfileResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, st := range result.Stations {
		row := []string{formatMeters(st.Distance), "", "", "", "", "0"}
		if st.HasData() {
			row[1] = formatMeters(st.Stats.Min)
			row[2] = formatMeters(st.Stats.Max)
			row[3] = formatMeters(st.Stats.Mean)
			row[4] = formatMeters(st.Stats.StdDev)
			row[5] = strconv.Itoa(st.Stats.Count)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the profile to a file at path, truncating any existing
// file.
func ExportCSV(path string, result *ProfileResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, result); err != nil {
		return err
	}
	return f.Close()
}

func formatMeters(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
