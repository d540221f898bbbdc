package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	geminiProviderName = "gemini"
	defaultGeminiModel = "gemini-1.5-flash"
)

type GeminiOptions struct {
	APIKey string
	Model  string
}

// Gemini generates text through the Gemini SDK with the image attached as
// inline data.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("vision: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("vision: gemini: create client: %w", err)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return geminiProviderName }

func (g *Gemini) Generate(ctx context.Context, inst Instruction) (string, error) {
	params, text, err := validate(inst)
	if err != nil {
		return "", err
	}
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(params.Temperature)
	model.SetTopP(params.TopP)
	model.SetMaxOutputTokens(int32(params.MaxTokens))

	parts := []genai.Part{genai.Text(text)}
	if len(inst.Image.Data) > 0 {
		parts = append(parts, genai.ImageData(imageFormat(inst.Image.MIMEType), inst.Image.Data))
	}
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("vision: gemini: generate content: %w", err)
	}
	return geminiText(resp)
}

// Close releases the underlying SDK client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("vision: gemini: no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("vision: gemini: no content")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("vision: gemini: empty response")
	}
	return out, nil
}

// imageFormat maps a MIME type to the short format name the SDK expects.
func imageFormat(mimeType string) string {
	format := strings.TrimPrefix(strings.ToLower(mimeType), "image/")
	switch format {
	case "jpg":
		return "jpeg"
	case "":
		return "png"
	default:
		return format
	}
}

var _ Generator = (*Gemini)(nil)
