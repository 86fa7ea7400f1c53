package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ppiankov/gitweight/internal/report"
)

func printStatus(format string, args ...interface{}) {
	slog.Info(fmt.Sprintf(format, args...))
}

// enhanceError enhances an error with additional context and helpful suggestions
func enhanceError(operation string, err error) error {
	if err == nil {
		return nil
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "authentication failed") || strings.Contains(errMsg, "401") {
		return fmt.Errorf("%s failed: GitHub rejected the credentials.\n"+
			"Solutions:\n"+
			"  - Set the GITHUB_TOKEN environment variable or pass --token\n"+
			"  - For app auth, check --app-id, --installation-id and --private-key\n"+
			"  - Verify the token has not expired or been revoked\n"+
			"Original error: %w", operation, err)
	}

	if strings.Contains(errMsg, "rate limit") {
		return fmt.Errorf("%s failed: GitHub rate limit exceeded.\n"+
			"Solutions:\n"+
			"  - Reduce --concurrency and --dir-concurrency\n"+
			"  - Wait for the quota window to reset and try again\n"+
			"Original error: %w", operation, err)
	}

	if strings.Contains(errMsg, "repository not found") || strings.Contains(errMsg, "404") {
		return fmt.Errorf("%s failed: Repository not found.\n"+
			"Solutions:\n"+
			"  - Check the owner/name spelling\n"+
			"  - Private repositories need a credential with repo access\n"+
			"Original error: %w", operation, err)
	}

	if strings.Contains(errMsg, "no such file or directory") {
		return fmt.Errorf("%s failed: File not found.\n"+
			"Solutions:\n"+
			"  - Check the --input and --private-key paths\n"+
			"Original error: %w", operation, err)
	}

	// Default error with context
	return fmt.Errorf("%s failed: %w", operation, err)
}

func selectReporter(format string, writer io.Writer) (report.Reporter, error) {
	switch format {
	case "json":
		return report.NewJSONReporter(writer), nil
	case "csv":
		return report.NewCSVReporter(writer), nil
	case "text":
		return report.NewTextReporter(writer), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: text, json, csv)", format)
	}
}
