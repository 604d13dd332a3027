package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Flag is a bool that also accepts "true"/"false"/"yes"/"no" strings and
// 0/1 numbers, since models are not consistent about JSON booleans.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = n != 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flag: unsupported value %s", data)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		*f = true
	case "false", "no", "n", "0", "":
		*f = false
	default:
		return fmt.Errorf("flag: unsupported value %q", s)
	}
	return nil
}

// Score is a float that also accepts numeric strings.
type Score float64

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Score(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("score: unsupported value %s", data)
	}
	str = strings.TrimSpace(str)
	if str == "" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	*s = Score(n)
	return nil
}

// Text is a string that also accepts numbers, booleans, arrays and objects.
// Collections are flattened to their leaf values joined with ", ".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	parts, err := flatten(data)
	if err != nil {
		return fmt.Errorf("text: %w", err)
	}
	*t = Text(strings.Join(parts, ", "))
	return nil
}

// StringList is a list of strings that also accepts a single string or an
// object, whose values become the entries in document order. Nested
// collections inside an entry are joined into one string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	var entries []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("string list: %w", err)
		}
	case '{':
		vals, err := objectValues(data)
		if err != nil {
			return fmt.Errorf("string list: %w", err)
		}
		entries = vals
	default:
		entries = []json.RawMessage{data}
	}

	out := make(StringList, 0, len(entries))
	for _, e := range entries {
		parts, err := flatten(e)
		if err != nil {
			return fmt.Errorf("string list: %w", err)
		}
		if v := strings.TrimSpace(strings.Join(parts, ", ")); v != "" {
			out = append(out, v)
		}
	}
	*l = out
	return nil
}

// flatten returns the scalar leaves of a JSON value in document order.
// Object keys and nulls are dropped.
func flatten(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return flattenAll(items)
	case '{':
		vals, err := objectValues(data)
		if err != nil {
			return nil, err
		}
		return flattenAll(vals)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return []string{strconv.FormatBool(b)}, nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("unsupported value %s", data)
		}
		return []string{n.String()}, nil
	}
}

func flattenAll(items []json.RawMessage) ([]string, error) {
	var out []string
	for _, it := range items {
		parts, err := flatten(it)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	return out, nil
}

// objectValues returns an object's values in document order.
func objectValues(data []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var vals []json.RawMessage
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// Timestamp is a UTC instant. It writes RFC 3339 and reads both RFC 3339 and
// the zone-less ISO form found in older results files.
type Timestamp struct {
	time.Time
}

const naiveISO = "2006-01-02T15:04:05.999999999"

// NewTimestamp truncates t to microseconds and converts it to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimestamp parses RFC 3339 or a zone-less ISO timestamp (taken as UTC).
func ParseTimestamp(s string) (Timestamp, error) {
	if tm, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(tm), nil
	}
	tm, err := time.ParseInLocation(naiveISO, s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("timestamp: unsupported format %q", s)
	}
	return NewTimestamp(tm), nil
}
