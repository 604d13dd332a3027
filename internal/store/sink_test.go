package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

type countingSink struct {
	mu    sync.Mutex
	saved int
	err   error
}

func (c *countingSink) SaveIdeas(_ context.Context, records []types.IdeaRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.saved += len(records)
	return nil
}

func TestMultiSink(t *testing.T) {
	recs := []types.IdeaRecord{{}, {}}
	boom := errors.New("db down")

	tests := []struct {
		name        string
		primaryErr  error
		mirrorErr   error
		records     []types.IdeaRecord
		wantPrimary int
		wantMirrors int
		wantMirror  bool
		wantErr     error
	}{
		{name: "all succeed", records: recs, wantPrimary: 2, wantMirrors: 2},
		{name: "primary fails before mirrors", primaryErr: boom, records: recs, wantErr: boom},
		{name: "mirror fails after primary", mirrorErr: boom, records: recs, wantPrimary: 2, wantMirror: true, wantErr: boom},
		{name: "empty batch", records: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &countingSink{err: tt.primaryErr}
			ok := &countingSink{}
			failing := &countingSink{err: tt.mirrorErr}

			err := MultiSink{Primary: primary, Mirrors: []Sink{ok, failing}}.SaveIdeas(context.Background(), tt.records)

			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			var mirrorErr *MirrorError
			assert.Equal(t, tt.wantMirror, errors.As(err, &mirrorErr))
			assert.Equal(t, tt.wantPrimary, primary.saved)
			assert.Equal(t, tt.wantMirrors, ok.saved)
		})
	}
}

func TestMultiSink_FailingPrimaryLeavesFileUntouched(t *testing.T) {
	jsonl := NewJSONLFile(filepath.Join(t.TempDir(), "results.jsonl"))
	sink := MultiSink{Primary: &countingSink{err: errors.New("db down")}, Mirrors: []Sink{jsonl}}

	err := sink.SaveIdeas(context.Background(), []types.IdeaRecord{{Meta: types.RecordMeta{UUID: "u1"}}})
	require.Error(t, err)

	got, err := jsonl.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}
