package analyzer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

func TestBuildContext(t *testing.T) {
	tests := []struct {
		name       string
		item       types.DiscussionItem
		maxReplies int
		want       string
	}{
		{
			name:       "with replies",
			item:       types.DiscussionItem{Title: "T", Body: "B", Replies: []string{"r1", "r2", "r3"}},
			maxReplies: 2,
			want:       "Title: T\n\nBody: B\n\nTop Comments:\nr1\nr2",
		},
		{
			name:       "no replies omits section",
			item:       types.DiscussionItem{Title: "T", Body: ""},
			maxReplies: 10,
			want:       "Title: T\n\nBody: \n\n",
		},
		{
			name:       "zero max replies",
			item:       types.DiscussionItem{Title: "T", Body: "B", Replies: []string{"r1"}},
			maxReplies: 0,
			want:       "Title: T\n\nBody: B\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildContext(tt.item, tt.maxReplies))
		})
	}
}

func TestBuildContext_Truncates(t *testing.T) {
	body := strings.Repeat("é", MaxContextChars)
	got := BuildContext(types.DiscussionItem{Title: "T", Body: body}, 10)

	assert.Equal(t, MaxContextChars, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasPrefix(got, "Title: T\n\nBody: éé"))
}

func TestBuildContext_ShortIsUntouched(t *testing.T) {
	item := types.DiscussionItem{Title: "T", Body: strings.Repeat("a", 100)}
	assert.Equal(t, "Title: T\n\nBody: "+strings.Repeat("a", 100)+"\n\n", BuildContext(item, 10))
}
