package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/gitweight/internal/report"
)

func TestSelectReporter(t *testing.T) {
	var buf bytes.Buffer

	for _, format := range []string{"text", "json", "csv"} {
		r, err := selectReporter(format, &buf)
		if err != nil {
			t.Fatalf("selectReporter(%q): %v", format, err)
		}
		if r == nil {
			t.Fatalf("selectReporter(%q) returned nil reporter", format)
		}
	}

	if _, err := selectReporter("xml", &buf); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestSelectReporter_TypeMatchesFormat(t *testing.T) {
	var buf bytes.Buffer
	r, err := selectReporter("json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.(*report.JSONReporter); !ok {
		t.Fatalf("expected *report.JSONReporter, got %T", r)
	}
}

func TestEnhanceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "authentication", err: errors.New("401 Bad credentials"), want: "GITHUB_TOKEN"},
		{name: "rate limit", err: errors.New("rate limit exceeded"), want: "--concurrency"},
		{name: "not found", err: errors.New("repository not found: acme/gone"), want: "owner/name"},
		{name: "missing file", err: errors.New("open repos.txt: no such file or directory"), want: "--input"},
		{name: "generic", err: errors.New("boom"), want: "scan failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := enhanceError("scan", tt.err)
			if got == nil {
				t.Fatal("expected non-nil error")
			}
			if !strings.Contains(got.Error(), tt.want) {
				t.Fatalf("error %q missing %q", got.Error(), tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Fatal("original error must stay unwrappable")
			}
		})
	}
}

func TestEnhanceError_Nil(t *testing.T) {
	if enhanceError("scan", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}
