package types

import "strings"

// DiscussionItem is one fetched Reddit thread. It is never stored directly;
// only the IdeaRecord derived from it is.
type DiscussionItem struct {
	ID         string   `json:"id"`
	SourceName string   `json:"subreddit"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Replies    []string `json:"comments"`
}

// IdeaRecord is the durable output of a successful pipeline run for one item.
// The JSON layout is shared by the JSONL file, the SQL store and the HTTP API.
type IdeaRecord struct {
	Meta           RecordMeta `json:"meta"`
	Reddit         SourceRef  `json:"reddit"`
	Analysis       Analysis   `json:"analysis"`
	Solution       Solution   `json:"solution"`
	CursorPlaybook []string   `json:"cursor_playbook"`
	OwnerEmail     string     `json:"owner_email,omitempty"`
}

type RecordMeta struct {
	UUID      string    `json:"uuid"`
	ScrapedAt Timestamp `json:"scraped_at"`
}

// SourceRef points back at the thread a record came from. ID is nil for
// manually submitted ideas.
type SourceRef struct {
	Subreddit string  `json:"subreddit"`
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	ID        *string `json:"id"`
}

// Analysis is the stage 1 viability classification.
type Analysis struct {
	IsViable               Flag   `json:"is_viable"`
	IsOpportunity          Flag   `json:"is_opportunity"`
	ProblemDescription     string `json:"problem_description,omitempty"`
	OpportunityDescription string `json:"opportunity_description,omitempty"`
	TargetMarket           Text   `json:"target_market"`
	ConfidenceScore        Score  `json:"confidence_score"`
}

// FallbackProblem is handed to the solution stage when the analysis carries
// no description at all.
const FallbackProblem = "A viable business opportunity identified from Reddit discussion"

// Description returns the problem description, or the opportunity
// description when the problem is blank.
func (a Analysis) Description() string {
	if strings.TrimSpace(a.ProblemDescription) != "" {
		return a.ProblemDescription
	}
	return a.OpportunityDescription
}

// Problem is Description with a non-empty fallback.
func (a Analysis) Problem() string {
	if d := a.Description(); strings.TrimSpace(d) != "" {
		return d
	}
	return FallbackProblem
}

// Solution is the stage 2 MVP sketch.
type Solution struct {
	SolutionDescription string     `json:"solution_description"`
	TechStack           StringList `json:"tech_stack"`
	MVPFeatures         StringList `json:"mvp_features"`
	EstDevelopmentTime  Text       `json:"est_development_time"`
}

// Playbook is the stage 3 output: prompts to paste into a coding assistant.
type Playbook struct {
	Prompts []string `json:"prompts"`
}

// Status is the outcome of one attempted item.
type Status string

const (
	StatusAdded     Status = "Added"
	StatusNotViable Status = "Not viable"
	StatusError     Status = "Error"
)

// ReportEntry is one row of the processing report.
type ReportEntry struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Status  Status `json:"status"`
	Details string `json:"details"`
}

// IdeaSummary is the listing view of a stored record.
type IdeaSummary struct {
	UUID        string    `json:"uuid"`
	ScrapedAt   Timestamp `json:"scraped_at"`
	Title       string    `json:"title"`
	Subreddit   string    `json:"subreddit"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
}

// Summary builds the listing view of r.
func (r IdeaRecord) Summary() IdeaSummary {
	return IdeaSummary{
		UUID:        r.Meta.UUID,
		ScrapedAt:   r.Meta.ScrapedAt,
		Title:       r.Reddit.Title,
		Subreddit:   r.Reddit.Subreddit,
		URL:         r.Reddit.URL,
		Description: r.Analysis.Description(),
	}
}

// IDSet is a set of source item ids.
type IDSet map[string]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Add(id string) { s[id] = struct{}{} }

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Merge adds every id of other to s.
func (s IDSet) Merge(other IDSet) {
	for id := range other {
		s.Add(id)
	}
}
