package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"fieldload/domain/fieldvalue"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// SummarizeLatency computes call latency statistics. An empty sample gives
// a zero LatencyStats.
func SummarizeLatency(samples []time.Duration) fieldvalue.LatencyStats {
	if len(samples) == 0 {
		return fieldvalue.LatencyStats{}
	}
	data := make(stats.Float64Data, len(samples))
	for i, d := range samples {
		data[i] = float64(d)
	}

	out := fieldvalue.LatencyStats{Count: len(samples)}
	if mean, err := stats.Mean(data); err == nil {
		out.Mean = time.Duration(mean)
	}
	if median, err := stats.Median(data); err == nil {
		out.Median = time.Duration(median)
	}
	if p95, err := stats.Percentile(data, 95); err == nil {
		out.P95 = time.Duration(p95)
	}
	if max, err := stats.Max(data); err == nil {
		out.Max = time.Duration(max)
	}
	// sample standard deviation is undefined for a single call
	if len(data) > 1 {
		out.StdDev = time.Duration(stat.StdDev(data, nil))
	}
	return out
}

// WriteConsole prints the end-of-run summary
func WriteConsole(w io.Writer, s fieldvalue.BatchSummary) {
	fmt.Fprintf(w, "Total rows in spreadsheet: %d\n", s.RowsSeen)
	fmt.Fprintf(w, "Unique requests sent: %d\n", s.UniqueSent)
	fmt.Fprintf(w, "Duplicates skipped: %d\n", s.DuplicatesSkipped)
	fmt.Fprintf(w, "Rows without value skipped: %d\n", s.SkippedEmpty)
	fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	if s.SourceError != "" {
		fmt.Fprintf(w, "Source stopped early: %s\n", s.SourceError)
	}
}

// Markdown renders the summary as a markdown document
func Markdown(s fieldvalue.BatchSummary) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Field value load %s\n\n", s.RunID)
	fmt.Fprintf(&b, "- Source: `%s`\n", s.Source)
	fmt.Fprintf(&b, "- Environment: %s\n", s.EnvironmentID)
	fmt.Fprintf(&b, "- Field: %s\n", s.FieldName)
	fmt.Fprintf(&b, "- Started: %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n\n", s.Duration.Round(time.Millisecond))

	b.WriteString("| Metric | Count |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Rows seen | %d |\n", s.RowsSeen)
	fmt.Fprintf(&b, "| Unique sent | %d |\n", s.UniqueSent)
	fmt.Fprintf(&b, "| Duplicates skipped | %d |\n", s.DuplicatesSkipped)
	fmt.Fprintf(&b, "| Empty rows skipped | %d |\n", s.SkippedEmpty)
	fmt.Fprintf(&b, "| Errors | %d |\n", s.Errors)
	fmt.Fprintf(&b, "| of which parse errors | %d |\n\n", s.ParseErrors)

	if s.Latency.Count > 0 {
		b.WriteString("## Request latency\n\n| Calls | Mean | Std dev | Median | p95 | Max |\n|---:|---:|---:|---:|---:|---:|\n")
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n\n", s.Latency.Count,
			s.Latency.Mean.Round(time.Microsecond), s.Latency.StdDev.Round(time.Microsecond),
			s.Latency.Median.Round(time.Microsecond), s.Latency.P95.Round(time.Microsecond),
			s.Latency.Max.Round(time.Microsecond))
	}
	if s.SourceError != "" {
		fmt.Fprintf(&b, "> Source stopped early: %s\n", s.SourceError)
	}
	return b.Bytes()
}

// RenderHTML renders the summary as a standalone HTML page
func RenderHTML(s fieldvalue.BatchSummary) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: fmt.Sprintf("Field value load %s", s.RunID),
	})
	return markdown.ToHTML(Markdown(s), p, r)
}

// WriteHTML writes the HTML report to path
func WriteHTML(path string, s fieldvalue.BatchSummary) error {
	if err := os.WriteFile(path, RenderHTML(s), 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
