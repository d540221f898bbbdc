package textparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			name:   "json list literal",
			output: `["a", "b", "c"]`,
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "labeled bare list",
			output: "**inspirational tags**: [a, b, c]",
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "single quoted list literal",
			output: "['moss hush', 'dusk glow']",
			want:   []string{"moss hush", "dusk glow"},
		},
		{
			name:   "fancy quotes and bom",
			output: "\ufeff[\u201cliquid dusk\u201d, \u201caurora pad\u201d]",
			want:   []string{"liquid dusk", "aurora pad"},
		},
		{
			name:   "labeled quoted list with commentary",
			output: "Sure!\n**inspirational tags**: [\"crystal sunrise\", \"echo surf\"]\nEnjoy.",
			want:   []string{"crystal sunrise", "echo surf"},
		},
		{
			name:   "chinese label",
			output: "**灵感标签**： [雨后青苔, 心跳回声]",
			want:   []string{"雨后青苔", "心跳回声"},
		},
		{
			name:   "json object label",
			output: `{"inspirational tags": ["glass", "rain"]}`,
			want:   []string{"glass", "rain"},
		},
		{
			name:   "label without brackets",
			output: "**Inspirational Tags**: *neon*, **chrome**, 'dust'",
			want:   []string{"neon", "chrome", "dust"},
		},
		{
			name:   "nested bracket commas kept together",
			output: "**inspirational tags**: echo [left, right], drift",
			want:   []string{"echo [left, right]", "drift"},
		},
		{
			name:   "unlabeled bracket span fallback",
			output: "Here are ideas: [warm haze, \"cold glint\"] and more",
			want:   []string{"warm haze", "cold glint"},
		},
		{
			name:   "code fenced json",
			output: "```json\n[\"x\", \"y\"]\n```",
			want:   []string{"x", "y"},
		},
		{
			name:   "empties dropped",
			output: `["", " ** ", "ok"]`,
			want:   []string{"ok"},
		},
		{
			name:   "nothing recognizable",
			output: "I cannot help with that.",
			want:   []string{},
		},
		{
			name:   "empty labeled list stays empty",
			output: "**inspirational tags**: [] [later, list]",
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.output))
		})
	}
}

func TestParseTagsNeverPanics(t *testing.T) {
	inputs := []string{"[", "]", "[[[", `["unterminated`, "**inspirational tags**:", "\x00\xff", "[1, 2, ]"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = ParseTags(in) }, "input %q", in)
	}
}

func TestParseTagsNumbers(t *testing.T) {
	assert.Equal(t, []string{"1", "2.5"}, ParseTags("[1, 2.5]"))
}

func TestParseEntities(t *testing.T) {
	assert.Equal(t,
		[]string{"dreamlike sunrise", "soft ocean waves"},
		ParseEntities(`["dreamlike sunrise", "soft ocean waves"]`),
	)
	assert.Equal(t,
		[]string{"golden horizon", "morning haze"},
		ParseEntities(`Keywords: "golden horizon" and "morning haze"`),
	)
	assert.Empty(t, ParseEntities("no entities"))
}
