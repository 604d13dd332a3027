package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// LLMExchange is one model call as the gateway saw it: the stage it served,
// the prompt, the raw reply and how it failed, if it did.
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage,omitempty"` // analysis, solution or playbook
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
	Failure   string    `json:"failure,omitempty"` // transport, empty or malformed
}

// LLMCacheDir holds cached exchanges, one subdirectory per stage.
func (c *Cache) LLMCacheDir() string {
	return filepath.Join(c.dir, "llm")
}

// SaveLLMExchange writes ex under LLMCacheDir, grouped by stage, and returns
// the file path.
func (c *Cache) SaveLLMExchange(ex LLMExchange) (string, error) {
	dir := c.LLMCacheDir()
	if ex.Stage != "" {
		dir = filepath.Join(dir, ex.Stage)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(ex, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, c.filename(".json"))
	return path, os.WriteFile(path, data, 0644)
}
