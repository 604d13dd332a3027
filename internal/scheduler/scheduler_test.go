package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Mars/Olympus", nil)
	assert.Error(t, err)
}

func TestScrapeSchedule(t *testing.T) {
	tests := []struct {
		name     string
		cron     string
		interval int
		want     string
		wantErr  bool
	}{
		{name: "interval", interval: 6, want: "0 */6 * * *"},
		{name: "cron wins", cron: "30 7 * * 1-5", interval: 6, want: "30 7 * * 1-5"},
		{name: "bad cron", cron: "not a cron", wantErr: true},
		{name: "zero interval", interval: 0, wantErr: true},
		{name: "interval too large", interval: 48, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScrapeSchedule(tt.cron, tt.interval)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduler_AddListRemove(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.AddScrapeJob("", 6, noop))
	// Re-adding replaces the entry instead of duplicating it.
	require.NoError(t, s.AddScrapeJob("", 12, noop))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "scrape", jobs[0].Name)

	s.RemoveJob("scrape")
	assert.Empty(t, s.ListJobs())
}

func TestScheduler_RunNow(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)

	var hasDeadline bool
	err = s.RunNow(context.Background(), "scrape", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, hasDeadline)

	boom := errors.New("boom")
	err = s.RunNow(context.Background(), "scrape", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
