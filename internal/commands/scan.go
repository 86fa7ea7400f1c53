package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ppiankov/gitweight/internal/github"
	"github.com/ppiankov/gitweight/internal/repolist"
	"github.com/ppiankov/gitweight/internal/report"
	"github.com/ppiankov/gitweight/internal/scanner"
)

var scanFlags struct {
	inputFile       string
	authType        string
	token           string
	appID           int64
	installationID  int64
	privateKeyPath  string
	apiURL          string
	thresholdKB     float64
	maxFilesPerRepo int
	concurrency     int
	dirConcurrency  int
	outputFormat    string
	outputFile      string
	failOnFound     bool
	noProgress      bool
	timeout         time.Duration
}

var scanCmd = &cobra.Command{
	Use:   "scan [owner/name ...]",
	Short: "Scan repositories for files above the size threshold",
	Long: `Walks each repository's tree through the GitHub API and reports files
whose stored size exceeds the threshold. Repositories are given as
owner/name arguments, full URLs, or an input file (plain list or CSV
with a repository column).`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanFlags.inputFile, "input", "i", "", "File with repositories to scan (plain list or CSV)")
	scanCmd.Flags().StringVar(&scanFlags.authType, "auth-type", "token", "Authentication type: token or app")
	scanCmd.Flags().StringVar(&scanFlags.token, "token", "", "GitHub personal access token (defaults to GITHUB_TOKEN)")
	scanCmd.Flags().Int64Var(&scanFlags.appID, "app-id", 0, "GitHub App ID (for app auth)")
	scanCmd.Flags().Int64Var(&scanFlags.installationID, "installation-id", 0, "GitHub App installation ID (for app auth)")
	scanCmd.Flags().StringVar(&scanFlags.privateKeyPath, "private-key", "", "Path to the GitHub App PEM private key (for app auth)")
	scanCmd.Flags().StringVar(&scanFlags.apiURL, "api-url", "", "GitHub API base URL (for GitHub Enterprise)")
	scanCmd.Flags().Float64Var(&scanFlags.thresholdKB, "threshold-kb", 1000, "Report files larger than this many KB")
	scanCmd.Flags().IntVar(&scanFlags.maxFilesPerRepo, "max-files-per-repo", 0, "Report at most this many files per repository (0 = unlimited)")
	scanCmd.Flags().IntVar(&scanFlags.concurrency, "concurrency", 3, "Max concurrent repository scans")
	scanCmd.Flags().IntVar(&scanFlags.dirConcurrency, "dir-concurrency", 4, "Max concurrent directory expansions within one repository")
	scanCmd.Flags().StringVarP(&scanFlags.outputFormat, "format", "f", "text", "Output format: text, json, or csv")
	scanCmd.Flags().StringVarP(&scanFlags.outputFile, "output", "o", "", "Output file (default: stdout)")
	scanCmd.Flags().BoolVar(&scanFlags.failOnFound, "fail-on-found", false, "Exit with error if any file above threshold is found")
	scanCmd.Flags().BoolVar(&scanFlags.noProgress, "no-progress", false, "Disable progress indicators")
	scanCmd.Flags().DurationVar(&scanFlags.timeout, "timeout", 0, "Total operation timeout (e.g. 5m, 30s). 0 means no timeout")
}

func runScan(cmd *cobra.Command, args []string) error {
	applyConfigToScanFlags(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if scanFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scanFlags.timeout)
		defer cancel()
	}
	start := time.Now()

	refs, err := collectRefs(args)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("no repositories to scan: pass owner/name arguments or --input")
	}
	printStatus("Scanning %d repositories (threshold %.0f KB)", len(refs), scanFlags.thresholdKB)

	provider, err := buildProvider()
	if err != nil {
		return enhanceError("authentication setup", err)
	}

	client, err := github.NewClient(provider, github.Options{BaseURL: scanFlags.apiURL})
	if err != nil {
		return enhanceError("API client initialization", err)
	}

	walker := scanner.NewWalker(client, scanFlags.thresholdKB, scanFlags.dirConcurrency)
	walker.SetMaxFiles(scanFlags.maxFilesPerRepo)
	runner := scanner.NewRunner(walker, scanFlags.concurrency)

	isTTY := term.IsTerminal(int(os.Stderr.Fd()))
	var bar *pb.ProgressBar
	if isTTY && !scanFlags.noProgress {
		bar = pb.Full.Start(len(refs))
		bar.SetWriter(os.Stderr)
		runner.SetProgressCallback(func(done, total int, repository string) {
			bar.Increment()
		})
	} else {
		runner.SetProgressCallback(func(done, total int, repository string) {
			slog.Debug("Scan progress", slog.Int("done", done), slog.Int("total", total), slog.String("repository", repository))
		})
	}

	results := runner.Run(ctx, refs)
	if bar != nil {
		bar.Finish()
	}

	data := report.Data{
		Tool:      "gitweight",
		Version:   GetVersion(),
		Timestamp: time.Now(),
		Config: report.Config{
			ThresholdKB:     scanFlags.thresholdKB,
			APIURL:          scanFlags.apiURL,
			MaxFilesPerRepo: scanFlags.maxFilesPerRepo,
		},
		Summary: report.Summarize(results),
		Results: results,
	}

	writer := os.Stdout
	if scanFlags.outputFile != "" {
		f, err := os.Create(scanFlags.outputFile)
		if err != nil {
			return enhanceError("output file creation", err)
		}
		defer func() { _ = f.Close() }()
		writer = f
	}

	reporter, err := selectReporter(scanFlags.outputFormat, writer)
	if err != nil {
		return err
	}
	if err := reporter.Generate(data); err != nil {
		return enhanceError("report generation", err)
	}

	slog.Info("Scan complete",
		slog.Int("repositories", data.Summary.TotalRepositories),
		slog.Int("large_files", data.Summary.TotalLargeFiles),
		slog.Int("failed", len(data.Summary.FailedRepositories)),
		slog.Duration("duration", time.Since(start)),
	)

	if len(data.Summary.FailedRepositories) == len(results) {
		return fmt.Errorf("all %d repositories failed to scan", len(results))
	}
	if scanFlags.failOnFound && data.Summary.TotalLargeFiles > 0 {
		return fmt.Errorf("found %d files above %.0f KB", data.Summary.TotalLargeFiles, scanFlags.thresholdKB)
	}
	return nil
}

func collectRefs(args []string) ([]github.Ref, error) {
	var refs []github.Ref
	for _, arg := range args {
		ref, err := repolist.Parse(arg)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if scanFlags.inputFile != "" {
		fromFile, skipped, err := repolist.Load(scanFlags.inputFile)
		if err != nil {
			return nil, err
		}
		for _, s := range skipped {
			slog.Warn("Skipping invalid repository entry", "entry", s)
		}
		refs = append(refs, fromFile...)
	}
	return refs, nil
}

func buildProvider() (github.Provider, error) {
	switch scanFlags.authType {
	case "token":
		token := scanFlags.token
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}
		return github.NewStaticTokenProvider(token)
	case "app":
		if scanFlags.appID == 0 || scanFlags.installationID == 0 || scanFlags.privateKeyPath == "" {
			return nil, fmt.Errorf("app auth requires --app-id, --installation-id and --private-key")
		}
		return github.NewAppProvider(scanFlags.appID, scanFlags.installationID, scanFlags.privateKeyPath, scanFlags.apiURL)
	default:
		return nil, fmt.Errorf("unsupported auth type: %s (supported: token, app)", scanFlags.authType)
	}
}

func applyConfigToScanFlags(cmd *cobra.Command) {
	if !cmd.Flags().Lookup("api-url").Changed && cfg.APIURL != "" {
		scanFlags.apiURL = cfg.APIURL
	}
	if !cmd.Flags().Lookup("threshold-kb").Changed && cfg.ThresholdKB > 0 {
		scanFlags.thresholdKB = cfg.ThresholdKB
	}
	if !cmd.Flags().Lookup("max-files-per-repo").Changed && cfg.MaxFilesPerRepo > 0 {
		scanFlags.maxFilesPerRepo = cfg.MaxFilesPerRepo
	}
	if !cmd.Flags().Lookup("concurrency").Changed && cfg.Concurrency > 0 {
		scanFlags.concurrency = cfg.Concurrency
	}
	if !cmd.Flags().Lookup("format").Changed && cfg.Format != "" {
		scanFlags.outputFormat = cfg.Format
	}
	if !cmd.Flags().Lookup("timeout").Changed {
		if d := cfg.TimeoutDuration(); d > 0 {
			scanFlags.timeout = d
		}
	}
}
