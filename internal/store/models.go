package store

import (
	"encoding/json"
	"fmt"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

const ideaColumns = `uuid, scraped_at, subreddit, reddit_url, reddit_title, reddit_id,
	user_id, analysis, solution, cursor_playbook`

// ideaRow is one scraped_results row. The three payload columns hold the
// record's JSON exactly as it appears on the wire.
type ideaRow struct {
	UUID      string  `db:"uuid"`
	ScrapedAt string  `db:"scraped_at"`
	Subreddit string  `db:"subreddit"`
	URL       string  `db:"reddit_url"`
	Title     string  `db:"reddit_title"`
	RedditID  *string `db:"reddit_id"`
	UserID    string  `db:"user_id"`
	Analysis  string  `db:"analysis"`
	Solution  string  `db:"solution"`
	Playbook  string  `db:"cursor_playbook"`
}

func toRow(rec types.IdeaRecord) (ideaRow, error) {
	analysis, err := marshalColumn(rec.Analysis)
	if err != nil {
		return ideaRow{}, fmt.Errorf("encode analysis: %w", err)
	}
	solution, err := marshalColumn(rec.Solution)
	if err != nil {
		return ideaRow{}, fmt.Errorf("encode solution: %w", err)
	}
	prompts := rec.CursorPlaybook
	if prompts == nil {
		prompts = []string{}
	}
	playbook, err := marshalColumn(prompts)
	if err != nil {
		return ideaRow{}, fmt.Errorf("encode playbook: %w", err)
	}

	return ideaRow{
		UUID:      rec.Meta.UUID,
		ScrapedAt: rec.Meta.ScrapedAt.UTC().Format(dbTimeFormat),
		Subreddit: rec.Reddit.Subreddit,
		URL:       rec.Reddit.URL,
		Title:     rec.Reddit.Title,
		RedditID:  rec.Reddit.ID,
		UserID:    rec.OwnerEmail,
		Analysis:  analysis,
		Solution:  solution,
		Playbook:  playbook,
	}, nil
}

func (r ideaRow) record() (types.IdeaRecord, error) {
	ts, err := types.ParseTimestamp(r.ScrapedAt)
	if err != nil {
		return types.IdeaRecord{}, err
	}
	rec := types.IdeaRecord{
		Meta: types.RecordMeta{UUID: r.UUID, ScrapedAt: ts},
		Reddit: types.SourceRef{
			Subreddit: r.Subreddit,
			URL:       r.URL,
			Title:     r.Title,
			ID:        r.RedditID,
		},
		OwnerEmail: r.UserID,
	}
	if err := json.Unmarshal([]byte(r.Analysis), &rec.Analysis); err != nil {
		return types.IdeaRecord{}, fmt.Errorf("decode analysis of %s: %w", r.UUID, err)
	}
	if err := json.Unmarshal([]byte(r.Solution), &rec.Solution); err != nil {
		return types.IdeaRecord{}, fmt.Errorf("decode solution of %s: %w", r.UUID, err)
	}
	if err := json.Unmarshal([]byte(r.Playbook), &rec.CursorPlaybook); err != nil {
		return types.IdeaRecord{}, fmt.Errorf("decode playbook of %s: %w", r.UUID, err)
	}
	return rec, nil
}
