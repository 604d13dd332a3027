package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultMaxTokens = 25000

func TestAnthropicProvider_ChatJSON(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens int
	}{
		{name: "default token budget", maxTokens: defaultMaxTokens},
		{name: "small token budget", maxTokens: 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			hits := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits++
				assert.Equal(t, "/v1/messages", r.URL.Path)
				body, _ := io.ReadAll(r.Body)
				assert.NoError(t, json.Unmarshal(body, &got))

				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
					"content":[{"type":"text","text":"\"is_viable\": true}"}],
					"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":5}}`)
			}))
			defer srv.Close()

			p := NewAnthropicProvider("k", "claude-sonnet-4-5", 0.45, option.WithBaseURL(srv.URL+"/"))
			out, err := p.ChatJSON(context.Background(), "hi", "Return JSON only.", tt.maxTokens)
			require.NoError(t, err)

			assert.Equal(t, 1, hits)
			assert.JSONEq(t, `{"is_viable": true}`, out)
			assert.EqualValues(t, tt.maxTokens, got["max_tokens"])
			assert.Contains(t, got, "system")
		})
	}
}

func TestAnthropicProvider_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
			"content":[],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":0}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", "claude-sonnet-4-5", 0.45, option.WithBaseURL(srv.URL+"/"))
	out, err := p.ChatJSON(context.Background(), "hi", "", defaultMaxTokens)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOpenAIProvider_ChatJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"o4-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"a\":1}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "o4-mini", Temperature: 0.45, BaseURL: srv.URL + "/v1"})
	out, err := p.ChatJSON(context.Background(), "hi", "Return JSON only.", defaultMaxTokens)
	require.NoError(t, err)

	assert.Equal(t, `{"a":1}`, out)
	assert.EqualValues(t, defaultMaxTokens, got["max_completion_tokens"])
	assert.Equal(t, "json_object", got["response_format"].(map[string]any)["type"])
	assert.NotContains(t, got, "temperature")
}
