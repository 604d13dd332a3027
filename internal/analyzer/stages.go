package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

// decodeStage parses a model object into T. A type mismatch is a malformed
// model response, the same as unparseable text.
func decodeStage[T any](raw json.RawMessage, stage Stage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, newFailure(FailureMalformed, fmt.Sprintf("%s result does not match schema", stage), err)
	}
	return out, nil
}

// decodePlaybook keeps the model's prompt array as returned: order and length
// are untouched, non-string entries are kept as their JSON text. A missing
// key yields an empty list.
func decodePlaybook(raw json.RawMessage) (types.Playbook, error) {
	var wire struct {
		Prompts json.RawMessage `json:"prompts"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return types.Playbook{}, newFailure(FailureMalformed, "playbook result does not match schema", err)
	}

	pb := types.Playbook{Prompts: []string{}}
	if len(wire.Prompts) == 0 || string(wire.Prompts) == "null" {
		return pb, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(wire.Prompts, &entries); err != nil {
		return types.Playbook{}, newFailure(FailureMalformed, "playbook prompts is not an array", err)
	}
	for _, e := range entries {
		var s string
		if err := json.Unmarshal(e, &s); err == nil {
			pb.Prompts = append(pb.Prompts, s)
			continue
		}
		pb.Prompts = append(pb.Prompts, string(e))
	}
	return pb, nil
}

// ValidatePlaybook checks the seven-prompt contract: exact count, no blank
// entries, and the ready sentence closing prompt 0.
func ValidatePlaybook(pb types.Playbook) error {
	var errs []error
	if len(pb.Prompts) != PlaybookLength {
		errs = append(errs, fmt.Errorf("expected %d prompts, got %d", PlaybookLength, len(pb.Prompts)))
	}
	for i, p := range pb.Prompts {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("prompt %d is blank", i))
		}
	}
	if len(pb.Prompts) > 0 && !strings.Contains(normalizeQuotes(pb.Prompts[0]), ReadySentence) {
		errs = append(errs, errors.New("prompt 0 does not end with the ready sentence"))
	}
	return errors.Join(errs...)
}

var quoteReplacer = strings.NewReplacer("‘", "'", "’", "'", "“", "\"", "”", "\"")

func normalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}
