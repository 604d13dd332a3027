// Package report renders processing reports and idea records for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ibeckermayer/ideaminer/internal/pipeline"
	"github.com/ibeckermayer/ideaminer/internal/types"
)

// Filter selects which report rows are shown.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterViable    Filter = "viable"
	FilterNotViable Filter = "not-viable"
)

const (
	tableWidth     = 160
	previewLength  = 100
	titleMaxLength = 60
)

// ParseFilter accepts all, viable or not-viable. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterViable:
		return FilterViable, nil
	case FilterNotViable:
		return FilterNotViable, nil
	default:
		return "", fmt.Errorf("unknown filter %q (want all, viable or not-viable)", s)
	}
}

// Apply returns the entries the filter keeps. Viable means a record was added.
func (f Filter) Apply(entries []types.ReportEntry) []types.ReportEntry {
	if f == FilterAll || f == "" {
		return entries
	}
	out := make([]types.ReportEntry, 0, len(entries))
	for _, e := range entries {
		switch {
		case f == FilterViable && e.Status == types.StatusAdded:
			out = append(out, e)
		case f == FilterNotViable && e.Status == types.StatusNotViable:
			out = append(out, e)
		}
	}
	return out
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Options.SeparateRows = true
	return t
}

// RenderReport prints one row per attempted item and a status tally.
func RenderReport(w io.Writer, entries []types.ReportEntry, filter Filter) {
	shown := filter.Apply(entries)

	t := newTable(w)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMax: 4},
		{Number: 2, WidthMax: titleMaxLength},
		{Number: 3, WidthMax: 12},
		{Number: 4, WidthMax: tableWidth / 2},
	})
	t.AppendHeader(table.Row{"#", "Title", "Status", "Details"})

	counts := map[types.Status]int{}
	for _, e := range entries {
		counts[e.Status]++
	}
	for i, e := range shown {
		t.AppendRow(table.Row{i + 1, preview(e.Title, titleMaxLength), colorStatus(e.Status), preview(e.Details, previewLength)})
	}
	t.AppendFooter(table.Row{
		"Total", len(entries),
		fmt.Sprintf("%s %d", types.StatusAdded, counts[types.StatusAdded]),
		fmt.Sprintf("%s %d / %s %d", types.StatusNotViable, counts[types.StatusNotViable], types.StatusError, counts[types.StatusError]),
	})
	t.Render()
}

// RenderSourceErrors prints subreddits whose fetch failed. Nothing is printed
// when there are none.
func RenderSourceErrors(w io.Writer, errs []pipeline.SourceError) {
	if len(errs) == 0 {
		return
	}
	t := newTable(w)
	t.SetTitle("Fetch failures")
	t.AppendHeader(table.Row{"Subreddit", "Error"})
	for _, e := range errs {
		t.AppendRow(table.Row{"r/" + e.Subreddit, preview(e.Error, previewLength)})
	}
	t.Render()
}

// RenderIdeas prints summaries, newest first as given.
func RenderIdeas(w io.Writer, ideas []types.IdeaSummary) {
	t := newTable(w)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: titleMaxLength},
		{Number: 5, WidthMax: tableWidth / 3},
	})
	t.AppendHeader(table.Row{"UUID", "Scraped", "Title", "Subreddit", "Problem"})
	for _, idea := range ideas {
		t.AppendRow(table.Row{
			idea.UUID,
			idea.ScrapedAt.Format("2006-01-02 15:04"),
			preview(idea.Title, titleMaxLength),
			idea.Subreddit,
			preview(idea.Description, previewLength),
		})
	}
	t.AppendFooter(table.Row{"Total", len(ideas)})
	t.Render()
}

// RenderIdea prints a full record: the analysis, the solution, the numbered
// playbook and a copy-all block of every prompt.
func RenderIdea(w io.Writer, rec types.IdeaRecord) {
	fmt.Fprintf(w, "%s\n", text.Bold.Sprint(rec.Reddit.Title))
	if rec.Reddit.URL != "" {
		fmt.Fprintf(w, "%s\n", rec.Reddit.URL)
	}
	fmt.Fprintf(w, "r/%s  ·  %s  ·  %s\n\n", rec.Reddit.Subreddit, rec.Meta.ScrapedAt.Format("2006-01-02 15:04 MST"), rec.Meta.UUID)

	t := newTable(w)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: tableWidth - 30}})
	t.AppendRows([]table.Row{
		{"Problem", rec.Analysis.Description()},
		{"Target market", string(rec.Analysis.TargetMarket)},
		{"Viable", bool(rec.Analysis.IsViable)},
		{"Confidence", float64(rec.Analysis.ConfidenceScore)},
		{"Solution", rec.Solution.SolutionDescription},
		{"Tech stack", strings.Join(rec.Solution.TechStack, ", ")},
		{"MVP features", strings.Join(rec.Solution.MVPFeatures, "\n")},
		{"Estimate", string(rec.Solution.EstDevelopmentTime)},
	})
	t.Render()

	if len(rec.CursorPlaybook) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", text.Bold.Sprint("Playbook"))
	for i, p := range rec.CursorPlaybook {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, p)
	}
	fmt.Fprintf(w, "\n%s\n%s\n", text.Bold.Sprint("Copy all"), CopyAll(rec.CursorPlaybook))
}

// CopyAll joins prompts into one paste-ready block.
func CopyAll(prompts []string) string {
	var b strings.Builder
	for i, p := range prompts {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "Prompt %d:\n%s", i+1, p)
	}
	return b.String()
}

func colorStatus(s types.Status) string {
	switch s {
	case types.StatusAdded:
		return text.FgGreen.Sprint(string(s))
	case types.StatusNotViable:
		return text.FgYellow.Sprint(string(s))
	case types.StatusError:
		return text.FgRed.Sprint(string(s))
	default:
		return string(s)
	}
}

// preview flattens whitespace and cuts s to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
