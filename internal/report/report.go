// Package report writes run outputs: the JSON results file, the derived URL
// list for downstream stages, and a summary table for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/v0xg/coursescrape/internal/artifact"
	"github.com/v0xg/coursescrape/internal/pipeline"
)

// Files lists what Write produced. URLs is empty when no derived URLs existed.
type Files struct {
	Results string
	URLs    string
}

// document is the results file layout
type document struct {
	*pipeline.Summary
	Artifacts *artifact.Stats `json:"artifacts,omitempty"`
}

// timestamp renders t safely for file names (no colons)
func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15-04-05Z")
}

// Write stores {site}-results-{ts}.json and, when any successful result has
// derived URLs, {site}-urls-{ts}.txt under dir.
func Write(dir string, s *pipeline.Summary, stats *artifact.Stats, now time.Time) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	ts := timestamp(now)

	var files Files
	files.Results = filepath.Join(dir, fmt.Sprintf("%s-results-%s.json", s.Site, ts))
	data, err := json.MarshalIndent(document{Summary: s, Artifacts: stats}, "", "  ")
	if err != nil {
		return Files{}, fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(files.Results, data, 0o644); err != nil {
		return Files{}, fmt.Errorf("failed to write results: %w", err)
	}

	urls := s.DerivedURLs()
	if len(urls) == 0 {
		return files, nil
	}
	files.URLs = filepath.Join(dir, fmt.Sprintf("%s-urls-%s.txt", s.Site, ts))
	if err := os.WriteFile(files.URLs, []byte(strings.Join(urls, "\n")+"\n"), 0o644); err != nil {
		return files, fmt.Errorf("failed to write url list: %w", err)
	}
	return files, nil
}

// RenderTable prints the run counts and every item error
func RenderTable(w io.Writer, s *pipeline.Summary, stats *artifact.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s run %s (%s)", s.Site, s.RunID, s.Duration))
	t.AppendHeader(table.Row{"Requested", "Processed", "Succeeded", "Failed", "Rejected", "Persist failed"})
	t.AppendRow(table.Row{s.TotalRequested, s.Processed, s.Succeeded, s.Failed, s.Rejected, s.PersistFailed})
	t.SetStyle(table.StyleRounded)
	t.Render()
	if stats != nil {
		fmt.Fprintf(w, "Artifacts: %d uploaded, %d reused, %d failed\n", stats.Uploaded, stats.Reused, stats.Failed)
	}

	if len(s.Errors) == 0 {
		return
	}
	e := table.NewWriter()
	e.SetOutputMirror(w)
	e.AppendHeader(table.Row{"#", "Stage", "URL", "Error"})
	for i, ie := range s.Errors {
		e.AppendRow(table.Row{i + 1, ie.Stage, ie.URL, ie.Message})
	}
	e.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})
	e.SetStyle(table.StyleRounded)
	e.Render()
}
