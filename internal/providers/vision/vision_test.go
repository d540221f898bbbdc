package vision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniwizz/internal/domain"
	"omniwizz/internal/textparse"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestOpenAIGenerateSendsImageAndParams(t *testing.T) {
	var captured openAIChatRequest
	var auth string
	gen, err := NewOpenAI(OpenAIOptions{
		APIKey: "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			auth = r.Header.Get("Authorization")
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			return jsonResponse(http.StatusOK, `{"choices":[{"message":{"content":"  **Music Prompt:** harp  "}}]}`), nil
		})},
	})
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), Instruction{
		Task:     TaskTags,
		Language: domain.LanguageEnglish,
		Image:    Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"},
	})

	require.NoError(t, err)
	assert.Equal(t, "**Music Prompt:** harp", out)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4.1-mini", captured.Model)
	assert.Equal(t, 256, captured.MaxTokens)
	assert.InDelta(t, 1.0, captured.Temperature, 1e-6)
	assert.InDelta(t, 0.9, captured.TopP, 1e-6)
	require.Len(t, captured.Messages, 1)
	require.Len(t, captured.Messages[0].Content, 2)
	assert.Equal(t, "text", captured.Messages[0].Content[0].Type)
	assert.Contains(t, captured.Messages[0].Content[0].Text, "**inspirational tags**")
	require.NotNil(t, captured.Messages[0].Content[1].ImageURL)
	assert.True(t, strings.HasPrefix(captured.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestOpenAIGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		rt   roundTripFunc
		want string
	}{
		{
			name: "transport",
			rt: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("boom")
			},
			want: "http request",
		},
		{
			name: "status",
			rt: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`), nil
			},
			want: "status 429: rate limited",
		},
		{
			name: "empty choices",
			rt: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"choices":[]}`), nil
			},
			want: "no choices",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewOpenAI(OpenAIOptions{APIKey: "k", HTTPClient: &http.Client{Transport: tt.rt}})
			require.NoError(t, err)
			_, err = gen.Generate(context.Background(), Instruction{Task: TaskLyrics})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIOptions{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNormalizeOpenAIModel(t *testing.T) {
	cases := []struct {
		input  string
		model  string
		reason string
	}{
		{input: "", model: "gpt-4.1-mini"},
		{input: "GPT-4.1-nano", model: "gpt-4.1-nano"},
		{input: "gpt4o mini", model: "gpt-4o-mini", reason: "alias"},
		{input: "llama", model: "gpt-4.1-mini", reason: "defaulted"},
	}
	for _, tc := range cases {
		model, reason := normalizeOpenAIModel(tc.input)
		assert.Equal(t, tc.model, model, tc.input)
		assert.Equal(t, tc.reason, reason, tc.input)
	}
}

func TestParamsFor(t *testing.T) {
	p, err := ParamsFor(TaskLyrics)
	require.NoError(t, err)
	assert.Equal(t, Params{MaxTokens: 512, Temperature: 1.2, TopP: 0.95}, p)

	p, err = ParamsFor(TaskEntities)
	require.NoError(t, err)
	assert.Equal(t, 128, p.MaxTokens)

	_, err = ParamsFor(Task("poems"))
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestBuildPromptChordHint(t *testing.T) {
	text, err := BuildPrompt(Instruction{
		Task:     TaskLyrics,
		Language: domain.LanguageEnglish,
		Chords:   &ChordHint{Key: "C major", Chords: []string{"C", "G", "Am", "F"}},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "key of C major with the chord progression C - G - Am - F")

	zh, err := BuildPrompt(Instruction{Task: TaskLyrics, Language: domain.LanguageChinese})
	require.NoError(t, err)
	assert.Contains(t, zh, "**音乐风格：**")
	assert.NotContains(t, zh, "和弦进行")
}

func TestStaticOutputsParse(t *testing.T) {
	gen := NewStatic()
	for _, lang := range []domain.Language{domain.LanguageEnglish, domain.LanguageChinese} {
		lyrics, err := gen.Generate(context.Background(), Instruction{Task: TaskLyrics, Language: lang})
		require.NoError(t, err)
		creative := textparse.ExtractCreative(lyrics, lang)
		assert.NotEmpty(t, creative.Prompt, lang)
		assert.NotEmpty(t, creative.Lyrics, lang)

		tags, err := gen.Generate(context.Background(), Instruction{Task: TaskTags, Language: lang})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(textparse.ParseTags(tags)), 8, lang)

		entities, err := gen.Generate(context.Background(), Instruction{Task: TaskEntities, Language: lang})
		require.NoError(t, err)
		assert.Len(t, textparse.ParseEntities(entities), 8, lang)
	}
	_, err := gen.Generate(context.Background(), Instruction{Task: Task("x")})
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestLoadImageDetectsType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.bin")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n0000"), 0o644))

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	jpg := filepath.Join(dir, "photo.JPG")
	require.NoError(t, os.WriteFile(jpg, []byte("x"), 0o644))
	img, err = LoadImage(jpg)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)
}
