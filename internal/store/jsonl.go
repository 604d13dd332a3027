package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

// maxLineBytes caps one JSONL record; playbooks can be long.
const maxLineBytes = 16 << 20

// JSONLFile appends records to a newline-delimited JSON file.
type JSONLFile struct {
	mu   sync.Mutex
	path string
}

// NewJSONLFile expands a leading "~/" in path.
func NewJSONLFile(path string) *JSONLFile {
	return &JSONLFile{path: expandHome(path)}
}

func (f *JSONLFile) Path() string { return f.path }

// SaveIdeas appends one line per record.
func (f *JSONLFile) SaveIdeas(_ context.Context, records []types.IdeaRecord) error {
	if len(records) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if rec.CursorPlaybook == nil {
			rec.CursorPlaybook = []string{}
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode %s: %w", rec.Meta.UUID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Sync()
}

// ReadAll returns every parseable record in file order. A missing file is
// empty; malformed lines are skipped.
func (f *JSONLFile) ReadAll() ([]types.IdeaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []types.IdeaRecord
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec types.IdeaRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

// RecentIdeas lists records newest first.
func (f *JSONLFile) RecentIdeas(_ context.Context, limit int) ([]types.IdeaSummary, error) {
	records, err := f.ReadAll()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Meta.ScrapedAt.After(records[j].Meta.ScrapedAt.Time)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	out := make([]types.IdeaSummary, len(records))
	for i, r := range records {
		out[i] = r.Summary()
	}
	return out, nil
}

// IdeaByUUID returns the first record with the given uuid.
func (f *JSONLFile) IdeaByUUID(_ context.Context, id string) (types.IdeaRecord, error) {
	records, err := f.ReadAll()
	if err != nil {
		return types.IdeaRecord{}, err
	}
	for _, r := range records {
		if r.Meta.UUID == id {
			return r, nil
		}
	}
	return types.IdeaRecord{}, ErrNotFound
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
