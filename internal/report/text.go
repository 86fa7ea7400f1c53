package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ppiankov/gitweight/internal/scanner"
)

// TextReporter generates human-readable text reports
type TextReporter struct {
	writer io.Writer
}

// NewTextReporter creates a new text reporter
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{writer: w}
}

// Generate generates a text report
func (r *TextReporter) Generate(data Data) error {
	fmt.Fprintf(r.writer, "Gitweight Report\n")
	fmt.Fprintf(r.writer, "================\n\n")
	fmt.Fprintf(r.writer, "Scan Time: %s\n", data.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(r.writer, "Threshold: %.2f KB\n", data.Config.ThresholdKB)
	if data.Config.APIURL != "" {
		fmt.Fprintf(r.writer, "API: %s\n", data.Config.APIURL)
	}
	if data.Config.MaxFilesPerRepo > 0 {
		fmt.Fprintf(r.writer, "Max Files Per Repo: %d\n", data.Config.MaxFilesPerRepo)
	}
	fmt.Fprintf(r.writer, "\n")

	r.printSummary(data.Summary)

	for i := range data.Results {
		r.printResult(&data.Results[i])
	}
	return nil
}

func (r *TextReporter) printSummary(summary Summary) {
	fmt.Fprintf(r.writer, "Summary\n")
	fmt.Fprintf(r.writer, "-------\n")
	fmt.Fprintf(r.writer, "Repositories Scanned: %d\n", summary.TotalRepositories)
	fmt.Fprintf(r.writer, "Large Files Found: %d\n", summary.TotalLargeFiles)

	if len(summary.FailedRepositories) > 0 {
		fmt.Fprintf(r.writer, "%s: %d\n",
			color.RedString("Failed Repositories"),
			len(summary.FailedRepositories))
	}
	if len(summary.PartialRepositories) > 0 {
		fmt.Fprintf(r.writer, "%s: %d\n",
			color.YellowString("Partial Repositories"),
			len(summary.PartialRepositories))
	}
	fmt.Fprintf(r.writer, "\n")
}

func (r *TextReporter) printResult(res *scanner.Result) {
	header := res.Repository
	if res.Revision != "" {
		header += "@" + res.Revision
	}
	fmt.Fprintf(r.writer, "%s\n", header)
	fmt.Fprintf(r.writer, "%s\n", strings.Repeat("-", len(header)))

	if res.Failed() {
		fmt.Fprintf(r.writer, "  %s: %s\n\n", color.RedString("[FAILED]"), res.Error)
		return
	}

	if len(res.Records) == 0 {
		fmt.Fprintf(r.writer, "  no files above threshold\n")
	}
	for _, rec := range res.Records {
		fmt.Fprintf(r.writer, "  %s: %s (%.2f KB / %.2f MB)\n",
			color.YellowString("[LARGE_FILE]"),
			rec.Path, rec.SizeKB, rec.SizeMB)
	}

	if len(res.PartialFailures) > 0 {
		fmt.Fprintf(r.writer, "  %s:\n", color.RedString("unscanned subtrees"))
		for _, path := range res.PartialFailures {
			if path == "" {
				path = "(root)"
			}
			fmt.Fprintf(r.writer, "    - %s\n", path)
		}
	}
	fmt.Fprintf(r.writer, "\n")
}
