package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/ideaminer/internal/config"
)

// Cache is a directory of timestamped debugging artifacts.
type Cache struct {
	dir string
	now func() time.Time
}

// NewCache roots a cache at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir, now: time.Now}
}

// DefaultCache roots a cache at the user cache directory.
func DefaultCache() (*Cache, error) {
	dir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	return NewCache(dir), nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// filename sorts chronologically by name.
func (c *Cache) filename(ext string) string {
	return c.now().UTC().Format("2006-01-02T15-04-05.000000000") + ext
}

// StepName identifies a pipeline step for caching purposes.
type StepName string

const (
	StepFetched StepName = "step1_fetched"
	StepReport  StepName = "step2_report"
	StepRecords StepName = "step3_records"
	StepDigest  StepName = "step4_digest"
)

func (c *Cache) stepDir(step StepName) string {
	return filepath.Join(c.dir, string(step))
}

// SaveStepOutput saves JSON-serializable data to the step's cache directory.
// Returns the path to the saved file.
func SaveStepOutput[T any](c *Cache, step StepName, data T) (string, error) {
	dir := c.stepDir(step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}

	path := filepath.Join(dir, c.filename(".json"))

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal step output: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}

	return path, nil
}

// SaveTextOutput saves text content (e.g. an HTML digest) to the step's
// cache directory.
func (c *Cache) SaveTextOutput(step StepName, content string, ext string) (string, error) {
	dir := c.stepDir(step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}

	path := filepath.Join(dir, c.filename(ext))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}

	return path, nil
}

// LoadLatestStepOutput loads the most recent output from a step's cache directory.
// Returns the data, the filepath it was loaded from, and any error.
func LoadLatestStepOutput[T any](c *Cache, step StepName) (T, string, error) {
	var zero T

	latestPath, err := c.LatestStepFile(step, ".json")
	if err != nil {
		return zero, "", err
	}

	data, err := LoadStepOutput[T](latestPath)
	if err != nil {
		return zero, "", err
	}

	return data, latestPath, nil
}

// LoadStepOutput loads JSON data from a specific file path.
func LoadStepOutput[T any](path string) (T, error) {
	var data T

	jsonData, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read step output: %w", err)
	}

	if err := json.Unmarshal(jsonData, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal step output: %w", err)
	}

	return data, nil
}

// LatestStepFile returns the path to the most recent file with extension ext
// in a step's cache directory.
func (c *Cache) LatestStepFile(step StepName, ext string) (string, error) {
	dir := c.stepDir(step)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no cached output for step %s", step)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for these filenames.
	var latest string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ext {
			latest = entry.Name()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no cached output for step %s", step)
	}

	return filepath.Join(dir, latest), nil
}
