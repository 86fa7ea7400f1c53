package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

// csvHeader matches the historical report layout consumed downstream;
// do not reorder.
var csvHeader = []string{"Repository", "Path", "Size_KB", "Size_MB", "Timestamp"}

// CSVReporter writes one row per large file.
type CSVReporter struct {
	writer io.Writer
}

// NewCSVReporter creates a new CSV reporter
func NewCSVReporter(w io.Writer) *CSVReporter {
	return &CSVReporter{writer: w}
}

// Generate generates a CSV report
func (r *CSVReporter) Generate(data Data) error {
	w := csv.NewWriter(r.writer)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for i := range data.Results {
		for _, rec := range data.Results[i].Records {
			row := []string{
				rec.Repository,
				rec.Path,
				strconv.FormatFloat(rec.SizeKB, 'f', 2, 64),
				strconv.FormatFloat(rec.SizeMB, 'f', 2, 64),
				rec.Timestamp.Format(TimestampLayout),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}
