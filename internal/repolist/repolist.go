// Package repolist turns user-supplied repository identifiers into refs.
// Accepted forms: "owner/name" and full URLs like
// "https://github.com/owner/name"; input files may be plain lists or CSV
// with a repository column.
package repolist

import (
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ppiankov/gitweight/internal/github"
)

var csvColumns = []string{"repository", "repository_url"}

// Parse normalizes one repository identifier.
func Parse(raw string) (github.Ref, error) {
	s := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if s == "" {
		return github.Ref{}, fmt.Errorf("empty repository identifier")
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return github.Ref{}, fmt.Errorf("invalid repository URL %q: %w", raw, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return github.Ref{}, fmt.Errorf("invalid repository URL %q: need /owner/name", raw)
		}
		return github.Ref{
			Host:  u.Host,
			Owner: parts[0],
			Name:  strings.TrimSuffix(parts[1], ".git"),
		}, nil
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return github.Ref{}, fmt.Errorf("invalid repository %q: expected owner/name", raw)
	}
	return github.Ref{Owner: parts[0], Name: strings.TrimSuffix(parts[1], ".git")}, nil
}

// Load reads repository identifiers from a file, preserving order and
// skipping blanks, comments and unparseable rows (logged by the caller
// via the returned skipped list).
func Load(path string) (refs []github.Ref, skipped []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read repository list: %w", err)
	}
	content := strings.TrimPrefix(string(data), "\ufeff")

	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return parseCSV(content)
	}
	return parseLines(content)
}

func parseLines(content string) (refs []github.Ref, skipped []string, err error) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, perr := Parse(line)
		if perr != nil {
			skipped = append(skipped, line)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, skipped, nil
}

func parseCSV(content string) (refs []github.Ref, skipped []string, err error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse repository CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	col := -1
	for i, name := range rows[0] {
		header := strings.ToLower(strings.TrimSpace(name))
		for _, want := range csvColumns {
			if header == want {
				col = i
			}
		}
	}
	if col < 0 {
		return nil, nil, fmt.Errorf("repository CSV must have a %q or %q column", csvColumns[0], csvColumns[1])
	}

	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		ref, perr := Parse(cell)
		if perr != nil {
			skipped = append(skipped, cell)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, skipped, nil
}
