// Package vision produces free-form text from an image with a multimodal
// language model. Callers pick a Task; the package owns the language-specific
// instruction templates and sampling parameters for each task.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"omniwizz/internal/domain"
)

// Task selects the instruction template and sampling parameters.
type Task string

const (
	TaskLyrics   Task = "lyrics"
	TaskTags     Task = "tags"
	TaskEntities Task = "entities"
)

// ErrUnknownTask is returned for a Task outside the known set.
var ErrUnknownTask = errors.New("vision: unknown task")

// Image is an inline image attached to an instruction.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL renders the image as a base64 data URL.
func (i Image) DataURL() string {
	mt := i.MIMEType
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// LoadImage reads an image file, guessing its MIME type from the extension
// and then from the content.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("vision: read image: %w", err)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" || !strings.HasPrefix(mt, "image/") {
		mt = http.DetectContentType(data)
	}
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return Image{Data: data, MIMEType: mt}, nil
}

// ChordHint is optional harmonic context for the lyrics task.
type ChordHint struct {
	Key    string
	Chords []string
}

// Instruction is one generation request.
type Instruction struct {
	Task     Task
	Language domain.Language
	Image    Image
	Chords   *ChordHint
}

// Params are the sampling settings for a task.
type Params struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
}

var taskParams = map[Task]Params{
	TaskLyrics:   {MaxTokens: 512, Temperature: 1.2, TopP: 0.95},
	TaskTags:     {MaxTokens: 256, Temperature: 1.0, TopP: 0.9},
	TaskEntities: {MaxTokens: 128, Temperature: 0.7, TopP: 0.9},
}

// ParamsFor returns the sampling settings used for task.
func ParamsFor(task Task) (Params, error) {
	p, ok := taskParams[task]
	if !ok {
		return Params{}, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
	return p, nil
}

// Generator turns an instruction into raw model output.
type Generator interface {
	Generate(ctx context.Context, inst Instruction) (string, error)
	Name() string
}

func validate(inst Instruction) (Params, string, error) {
	params, err := ParamsFor(inst.Task)
	if err != nil {
		return Params{}, "", err
	}
	text, err := BuildPrompt(inst)
	if err != nil {
		return Params{}, "", err
	}
	return params, text, nil
}
