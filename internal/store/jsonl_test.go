package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

func TestJSONLFile_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "results.jsonl")
	f := NewJSONLFile(path)
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.SaveIdeas(ctx, []types.IdeaRecord{sampleRecord("a", base, strPtr("t1"))}))
	require.NoError(t, f.SaveIdeas(ctx, []types.IdeaRecord{sampleRecord("b", base.Add(time.Minute), nil)}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `{"meta":{"uuid":"a"`))
	assert.Contains(t, lines[1], `"id":null`)
	assert.NotContains(t, lines[1], "owner_email")

	recent, err := f.RecentIdeas(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].UUID)

	rec, err := f.IdeaByUUID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"p0", "p1"}, rec.CursorPlaybook)

	_, err = f.IdeaByUUID(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONLFile_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	content := `{"meta":{"uuid":"old","scraped_at":"2023-11-05T10:00:00.123456"},"reddit":{"subreddit":"consulting","url":"u","title":"t","id":"x1"},"analysis":{"is_viable":true,"problem_description":"p","target_market":"m","confidence_score":0.9},"solution":{"solution_description":"s","tech_stack":[],"mvp_features":[],"est_development_time":"1 week"},"cursor_playbook":["a"]}
not json

`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, err := NewJSONLFile(path).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "old", records[0].Meta.UUID)
	assert.Equal(t, 2023, records[0].Meta.ScrapedAt.Year())
}

func TestJSONLFile_MissingFile(t *testing.T) {
	records, err := NewJSONLFile(filepath.Join(t.TempDir(), "none.jsonl")).ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "r.jsonl"), expandHome("~/r.jsonl"))
	assert.Equal(t, "rel/r.jsonl", expandHome("rel/r.jsonl"))
}
