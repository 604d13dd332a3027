package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("bot@example.com", "me@example.com", "3 new ideas", "<p>hi</p>", "hi"))

	assert.True(t, strings.HasPrefix(msg, "From: bot@example.com\r\nTo: me@example.com\r\n"))
	assert.Contains(t, msg, "Subject: 3 new ideas\r\n")
	assert.Contains(t, msg, `boundary="ideaminer-boundary"`)
	assert.Contains(t, msg, "text/plain; charset=\"utf-8\"\r\n\r\nhi\r\n")
	assert.Contains(t, msg, "<p>hi</p>")
	assert.True(t, strings.HasSuffix(msg, "--ideaminer-boundary--\r\n"))
}

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	msg := string(buildMessage("a@b", "c@d", "Idées", "", ""))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
}
