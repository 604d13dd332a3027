package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysis_Problem(t *testing.T) {
	tests := []struct {
		name     string
		analysis Analysis
		want     string
	}{
		{
			name:     "problem description wins",
			analysis: Analysis{ProblemDescription: "invoices are slow", OpportunityDescription: "resell"},
			want:     "invoices are slow",
		},
		{
			name:     "falls back to opportunity",
			analysis: Analysis{OpportunityDescription: "agencies pay for audits"},
			want:     "agencies pay for audits",
		},
		{
			name:     "whitespace problem is blank",
			analysis: Analysis{ProblemDescription: "  ", OpportunityDescription: "audits"},
			want:     "audits",
		},
		{
			name:     "literal fallback",
			analysis: Analysis{},
			want:     FallbackProblem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.analysis.Problem())
			assert.NotEmpty(t, tt.analysis.Problem())
		})
	}
}

func TestAnalysis_LenientDecode(t *testing.T) {
	raw := `{"is_viable":"yes","is_opportunity":0,"problem_description":"p","target_market":"smb","confidence_score":"0.75"}`

	var a Analysis
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	assert.True(t, bool(a.IsViable))
	assert.False(t, bool(a.IsOpportunity))
	assert.InDelta(t, 0.75, float64(a.ConfidenceScore), 1e-9)

	err := json.Unmarshal([]byte(`{"is_viable":"perhaps"}`), &a)
	assert.Error(t, err)
}

func TestSolution_NumericEstimate(t *testing.T) {
	var s Solution
	require.NoError(t, json.Unmarshal([]byte(`{"solution_description":"x","est_development_time":2}`), &s))
	assert.Equal(t, Text("2"), s.EstDevelopmentTime)
}

func TestIdeaRecord_WireShape(t *testing.T) {
	rec := IdeaRecord{
		Meta: RecordMeta{
			UUID:      "0b6f3c1e-1111-4222-8333-444455556666",
			ScrapedAt: NewTimestamp(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)),
		},
		Reddit:         SourceRef{Subreddit: "manual", Title: "Idea"},
		Analysis:       Analysis{IsViable: true, TargetMarket: "devs"},
		Solution:       Solution{SolutionDescription: "cli", TechStack: []string{"go"}},
		CursorPlaybook: []string{"a", "b"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.ElementsMatch(t, []string{"meta", "reddit", "analysis", "solution", "cursor_playbook"}, keys(generic))

	reddit := generic["reddit"].(map[string]any)
	assert.Contains(t, reddit, "id")
	assert.Nil(t, reddit["id"])

	meta := generic["meta"].(map[string]any)
	assert.Equal(t, "2024-05-01T12:30:00Z", meta["scraped_at"])

	var back IdeaRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.Analysis, back.Analysis)
	assert.Equal(t, rec.Solution, back.Solution)
	assert.Equal(t, rec.CursorPlaybook, back.CursorPlaybook)
	assert.True(t, rec.Meta.ScrapedAt.Equal(back.Meta.ScrapedAt.Time))
}

func TestParseTimestamp_NaiveISO(t *testing.T) {
	ts, err := ParseTimestamp("2024-03-09T08:15:42.123456")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 8, 15, 42, 123456000, time.UTC), ts.Time)

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestIDSet(t *testing.T) {
	s := NewIDSet("a", "b")
	s.Merge(NewIDSet("c"))
	assert.True(t, s.Has("c"))
	assert.False(t, s.Has("d"))
	assert.Len(t, s, 3)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestText_LenientDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Text
	}{
		{name: "string", raw: `"smb owners"`, want: "smb owners"},
		{name: "number", raw: `2`, want: "2"},
		{name: "bool", raw: `true`, want: "true"},
		{name: "null", raw: `null`, want: ""},
		{name: "array", raw: `["consultants","agencies"]`, want: "consultants, agencies"},
		{name: "object keeps value order", raw: `{"primary":"founders","secondary":"freelancers"}`, want: "founders, freelancers"},
		{name: "nested", raw: `[{"a":"x"},["y",3]]`, want: "x, y, 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Text
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringList_LenientDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want StringList
	}{
		{name: "array", raw: `["go","htmx"]`, want: StringList{"go", "htmx"}},
		{name: "single string", raw: `"go"`, want: StringList{"go"}},
		{name: "blank string", raw: `""`, want: StringList{}},
		{name: "null", raw: `null`, want: nil},
		{name: "object values", raw: `{"backend":"Go","db":"SQLite"}`, want: StringList{"Go", "SQLite"}},
		{name: "object entries", raw: `[{"name":"import","why":"day one"},"export"]`, want: StringList{"import, day one", "export"}},
		{name: "numbers", raw: `[1, 2]`, want: StringList{"1", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StringList
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSolution_LooseShapes(t *testing.T) {
	var s Solution
	raw := `{"solution_description":"x","tech_stack":{"backend":"Go","db":"SQLite"},"mvp_features":["a"]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, StringList{"Go", "SQLite"}, s.TechStack)

	var a Analysis
	require.NoError(t, json.Unmarshal([]byte(`{"is_viable":true,"target_market":["smb","agencies"]}`), &a))
	assert.Equal(t, Text("smb, agencies"), a.TargetMarket)
}
