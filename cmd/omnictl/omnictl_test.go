package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	generateLanguage, generateModes, generateReference = "en", "", ""
	regenerateFolder, regeneratePrompt, regenerateLyricsFile, regenerateLanguage = "", "", "", "en"
	parseInputFile, parseLanguage = "", "en"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	t.Setenv("TEST_MODE", "true")
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "output"))
	t.Setenv("EVENT_LOG_DRIVER", "none")
	return dir
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	path := filepath.Join(dir, "sunrise.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestParseTagsFromStdin(t *testing.T) {
	out, err := execute(t, `**Inspirational Tags**: ["calm sea", "morning light"]`, "parse", "tags")
	require.NoError(t, err)

	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"calm sea", "morning light"}, got["tags"])
}

func TestParseLRCAlignsPlainLines(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "lyrics.txt")
	require.NoError(t, os.WriteFile(in, []byte("first line\n\nsecond line\n"), 0o644))

	out, err := execute(t, "", "parse", "lrc", "--in", in)
	require.NoError(t, err)
	assert.Equal(t, "[00:10.00]first line\n[00:15.00]second line", out)
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := execute(t, "", "parse", "poem")
	assert.Error(t, err)
}

func TestGenerateWritesRun(t *testing.T) {
	dir := testEnv(t)
	path := writePNG(t, dir)

	out, err := execute(t, "", "generate", path, "--modes", "tags,images")
	require.NoError(t, err)

	var got generateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotEmpty(t, got.Folder)
	assert.Nil(t, got.Music)
	require.NotNil(t, got.Tags)
	assert.NotEmpty(t, got.Tags.Tags)
	require.NotNil(t, got.Images)
	assert.FileExists(t, filepath.Join(dir, "output", got.Folder, "tags.json"))
}

func TestGenerateAndRegenerateMusic(t *testing.T) {
	dir := testEnv(t)
	path := writePNG(t, dir)

	out, err := execute(t, "", "generate", path, "--modes", "music")
	require.NoError(t, err)
	var got generateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Music)
	assert.FileExists(t, filepath.Join(dir, "output", got.Folder, "audio.wav"))

	lyrics := filepath.Join(dir, "lyrics.txt")
	require.NoError(t, os.WriteFile(lyrics, []byte("new words\n"), 0o644))
	out, err = execute(t, "", "regenerate", "--folder", got.Folder, "--prompt", "Slow strings", "--lyrics", lyrics)
	require.NoError(t, err)
	assert.Contains(t, out, "[00:10.00]new words")

	prompt, err := os.ReadFile(filepath.Join(dir, "output", got.Folder, "prompt.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Slow strings", strings.TrimSpace(string(prompt)))
}

func TestGenerateRequiresValidMode(t *testing.T) {
	dir := testEnv(t)
	path := writePNG(t, dir)

	_, err := execute(t, "", "generate", path, "--modes", "poems")
	assert.Error(t, err)
}

func TestRegenerateRequiresFlags(t *testing.T) {
	testEnv(t)
	_, err := execute(t, "", "regenerate", "--prompt", "x")
	assert.Error(t, err)
}
