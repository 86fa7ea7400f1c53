package report

import (
	"time"

	"github.com/ppiankov/gitweight/internal/scanner"
)

// TimestampLayout is the record timestamp format used in reports.
const TimestampLayout = "02-Jan-2006 15:04:05"

// Reporter interface for different report formats
type Reporter interface {
	Generate(data Data) error
}

// Data contains all report data
type Data struct {
	Tool      string           `json:"tool"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
	Config    Config           `json:"config"`
	Summary   Summary          `json:"summary"`
	Results   []scanner.Result `json:"results"`
}

// Config contains scan configuration
type Config struct {
	ThresholdKB     float64 `json:"threshold_kb"`
	APIURL          string  `json:"api_url,omitempty"`
	MaxFilesPerRepo int     `json:"max_files_per_repo,omitempty"`
}

// Summary aggregates the batch outcome.
type Summary struct {
	TotalRepositories   int      `json:"total_repositories"`
	TotalLargeFiles     int      `json:"total_large_files"`
	FailedRepositories  []string `json:"failed_repositories,omitempty"`
	PartialRepositories []string `json:"partial_repositories,omitempty"`
}

// Summarize derives the batch summary from per-repository results.
func Summarize(results []scanner.Result) Summary {
	s := Summary{TotalRepositories: len(results)}
	for i := range results {
		res := &results[i]
		s.TotalLargeFiles += len(res.Records)
		if res.Failed() {
			s.FailedRepositories = append(s.FailedRepositories, res.Repository)
		} else if len(res.PartialFailures) > 0 {
			s.PartialRepositories = append(s.PartialRepositories, res.Repository)
		}
	}
	return s
}
