package analyzer

import (
	"regexp"
	"strings"
)

var (
	// fencedObjectPattern matches an object inside a ```json fence.
	fencedObjectPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	objectPattern       = regexp.MustCompile(`(?s)\{.*\}`)
	trailingComma       = regexp.MustCompile(`,\s*([}\]])`)
)

// extractObject pulls the outermost JSON object out of model output that may
// be wrapped in a code fence or surrounded by prose. Line comments and
// trailing commas are removed. Returns "" when no object is present.
func extractObject(content string) string {
	raw := ""
	if m := fencedObjectPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		raw = objectPattern.FindString(content)
	}
	if raw == "" {
		return ""
	}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingComma.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment drops a trailing // comment that sits outside any string.
//
//	"url": "https://reddit.com/r/x" // source  →  "url": "https://reddit.com/r/x"
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
