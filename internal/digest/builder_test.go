package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

func idea(id string, score float64) types.IdeaRecord {
	return types.IdeaRecord{
		Meta:   types.RecordMeta{UUID: id},
		Reddit: types.SourceRef{Subreddit: "consulting", Title: "Idea " + id, URL: "https://reddit.com/r/consulting/comments/" + id + "/"},
		Analysis: types.Analysis{
			IsViable:           true,
			ProblemDescription: "problem <" + id + ">",
			ConfidenceScore:    types.Score(score),
		},
		Solution: types.Solution{SolutionDescription: "solution " + id, MVPFeatures: []string{"one", "two"}},
	}
}

func newTestBuilder(t *testing.T, max int) *Builder {
	t.Helper()
	b, err := New(max)
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2025, 3, 4, 7, 0, 0, 0, time.UTC) }
	return b
}

func TestBuilder_Build(t *testing.T) {
	b := newTestBuilder(t, 2)
	records := []types.IdeaRecord{idea("a", 0.2), idea("b", 0.9), idea("c", 0.5)}

	d, err := b.Build(records)
	require.NoError(t, err)

	assert.Equal(t, "3 new ideas - Mar 4", d.Subject)
	assert.Equal(t, []string{"b", "c"}, d.IdeaIDs)
	assert.Contains(t, d.PlainBody, "1. Idea b (r/consulting)")
	assert.Contains(t, d.PlainBody, "Included 2 of 3 new ideas")
	// html/template escapes model text.
	assert.Contains(t, d.HTMLBody, "problem &lt;b&gt;")
	assert.NotContains(t, d.HTMLBody, "Idea a")

	// Input order is untouched.
	assert.Equal(t, "a", records[0].Meta.UUID)
}

func TestBuilder_SingleIdeaSubject(t *testing.T) {
	d, err := newTestBuilder(t, 0).Build([]types.IdeaRecord{idea("a", 0.5)})
	require.NoError(t, err)
	assert.Equal(t, "1 new idea - Mar 4", d.Subject)
}

func TestBuilder_Empty(t *testing.T) {
	_, err := newTestBuilder(t, 5).Build(nil)
	assert.ErrorIs(t, err, ErrNoIdeas)
}
