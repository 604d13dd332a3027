// Package digest renders newly added ideas into an email.
package digest

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

// ErrNoIdeas is returned when there is nothing to send.
var ErrNoIdeas = errors.New("no ideas to include in digest")

// Builder creates digest emails from idea records
type Builder struct {
	maxIdeas int
	template *template.Template
	now      func() time.Time
}

// New creates a new digest builder. maxIdeas <= 0 means no limit.
func New(maxIdeas int) (*Builder, error) {
	tmpl, err := template.New("digest").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		maxIdeas: maxIdeas,
		template: tmpl,
		now:      time.Now,
	}, nil
}

// Digest represents a compiled digest ready for sending
type Digest struct {
	Subject   string    `json:"subject"`
	HTMLBody  string    `json:"html_body"`
	PlainBody string    `json:"plain_body"`
	IdeaIDs   []string  `json:"idea_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// DigestData is the template data structure
type DigestData struct {
	Title string
	Date  string
	Ideas []IdeaData
	Stats StatsData
}

// IdeaData represents one idea in the digest template
type IdeaData struct {
	Title       string
	Subreddit   string
	URL         string
	Problem     string
	Market      string
	Solution    string
	Features    []string
	Estimate    string
	Confidence  float64
	PromptCount int
}

// StatsData contains digest statistics
type StatsData struct {
	TotalNew      int
	TotalIncluded int
}

// Build creates a digest from records, highest confidence first. The input
// slice is not modified.
func (b *Builder) Build(records []types.IdeaRecord) (*Digest, error) {
	if len(records) == 0 {
		return nil, ErrNoIdeas
	}

	sorted := make([]types.IdeaRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Analysis.ConfidenceScore > sorted[j].Analysis.ConfidenceScore
	})
	if b.maxIdeas > 0 && len(sorted) > b.maxIdeas {
		sorted = sorted[:b.maxIdeas]
	}

	now := b.now()
	data := DigestData{
		Title: "New Reddit idea digest",
		Date:  now.Format("Monday, January 2"),
		Ideas: make([]IdeaData, len(sorted)),
		Stats: StatsData{
			TotalNew:      len(records),
			TotalIncluded: len(sorted),
		},
	}

	ids := make([]string, len(sorted))
	for i, r := range sorted {
		data.Ideas[i] = IdeaData{
			Title:       r.Reddit.Title,
			Subreddit:   r.Reddit.Subreddit,
			URL:         r.Reddit.URL,
			Problem:     truncate(r.Analysis.Description(), 400),
			Market:      string(r.Analysis.TargetMarket),
			Solution:    truncate(r.Solution.SolutionDescription, 600),
			Features:    r.Solution.MVPFeatures,
			Estimate:    string(r.Solution.EstDevelopmentTime),
			Confidence:  float64(r.Analysis.ConfidenceScore),
			PromptCount: len(r.CursorPlaybook),
		}
		ids[i] = r.Meta.UUID
	}

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Digest{
		Subject:   fmt.Sprintf("%d new idea%s - %s", len(records), plural(len(records)), now.Format("Jan 2")),
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		IdeaIDs:   ids,
		CreatedAt: now,
	}, nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

func buildPlainText(data DigestData) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s\n%s\n\n", data.Title, data.Date)

	for i, idea := range data.Ideas {
		fmt.Fprintf(&buf, "%d. %s (r/%s)\n", i+1, idea.Title, idea.Subreddit)
		fmt.Fprintf(&buf, "   Problem: %s\n", idea.Problem)
		fmt.Fprintf(&buf, "   Solution: %s\n", idea.Solution)
		for _, f := range idea.Features {
			fmt.Fprintf(&buf, "   - %s\n", f)
		}
		if idea.URL != "" {
			fmt.Fprintf(&buf, "   %s\n", idea.URL)
		}
		buf.WriteString("\n")
	}

	fmt.Fprintf(&buf, "Included %d of %d new ideas\n", data.Stats.TotalIncluded, data.Stats.TotalNew)
	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 20px; background: #f6f7f8; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #ff4500; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        .idea { border-bottom: 1px solid #eee; padding: 15px 0; }
        .idea:last-child { border-bottom: none; }
        .title { font-weight: bold; color: #1a1a1b; }
        .sub { color: #787c7e; font-size: 13px; }
        .label { font-weight: 600; color: #333; }
        .block { margin: 8px 0; line-height: 1.4; }
        .meta { color: #666; font-size: 13px; }
        .link { color: #0079d3; text-decoration: none; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}}</div>

        {{range .Ideas}}
        <div class="idea">
            <div class="title">{{.Title}}</div>
            <div class="sub">r/{{.Subreddit}}{{if .Market}} · {{.Market}}{{end}}</div>
            <div class="block"><span class="label">Problem:</span> {{.Problem}}</div>
            <div class="block"><span class="label">Solution:</span> {{.Solution}}</div>
            {{if .Features}}<ul>{{range .Features}}<li>{{.}}</li>{{end}}</ul>{{end}}
            <div class="meta">confidence {{printf "%.2f" .Confidence}}{{if .Estimate}} · {{.Estimate}}{{end}} · {{.PromptCount}} prompts</div>
            {{if .URL}}<a href="{{.URL}}" class="link">View thread →</a>{{end}}
        </div>
        {{end}}

        <div class="footer">
            Included {{.Stats.TotalIncluded}} of {{.Stats.TotalNew}} new ideas · Generated by ideaminer
        </div>
    </div>
</body>
</html>`
