package scanner

import (
	"sort"
	"time"
)

// Record is one file found above the threshold. Derived once per
// qualifying blob, immutable afterwards.
type Record struct {
	Repository string    `json:"repository"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	SizeKB     float64   `json:"size_kb"`
	SizeMB     float64   `json:"size_mb"`
	Timestamp  time.Time `json:"timestamp"`
}

// Result is the outcome of scanning one repository. Error is set only
// when the repository could not be scanned at all; PartialFailures lists
// subtrees that failed to expand even though the scan produced results.
// An empty record list with no error is a successful scan.
type Result struct {
	Repository      string    `json:"repository"`
	Revision        string    `json:"revision,omitempty"`
	Records         []Record  `json:"records"`
	Error           string    `json:"error,omitempty"`
	PartialFailures []string  `json:"partial_failures,omitempty"`
	ScannedAt       time.Time `json:"scanned_at"`
}

// Failed reports whether the repository could not be scanned at all.
func (r *Result) Failed() bool { return r.Error != "" }

// finalize orders records by descending size with path as a stable
// tie-break, then applies the optional per-repository cap.
func finalize(res *Result, maxFiles int) {
	sort.Slice(res.Records, func(i, j int) bool {
		a, b := res.Records[i], res.Records[j]
		if a.SizeBytes != b.SizeBytes {
			return a.SizeBytes > b.SizeBytes
		}
		return a.Path < b.Path
	})
	sort.Strings(res.PartialFailures)
	if maxFiles > 0 && len(res.Records) > maxFiles {
		res.Records = res.Records[:maxFiles]
	}
}
