package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"omniwizz/internal/infra"
)

const (
	openAIProviderName   = "openai"
	openAIDefaultTimeout = 60 * time.Second
	defaultOpenAIModel   = "gpt-4.1-mini"
)

var openAIModelCanonical = map[string]string{
	"gpt-4.1-mini": "gpt-4.1-mini",
	"gpt-4.1-nano": "gpt-4.1-nano",
	"gpt-4.1":      "gpt-4.1",
	"gpt-4o-mini":  "gpt-4o-mini",
	"gpt-4o":       "gpt-4o",
}

var openAIModelAliases = map[string]string{
	"gpt4.1-mini":  "gpt-4.1-mini",
	"gpt-41-mini":  "gpt-4.1-mini",
	"gpt4.1-nano":  "gpt-4.1-nano",
	"gpt-41-nano":  "gpt-4.1-nano",
	"gpt4o-mini":   "gpt-4o-mini",
	"gpt4omini":    "gpt-4o-mini",
	"gpt-4-vision": "gpt-4o",
}

// ErrMissingAPIKey indicates the OpenAI generator was built without credentials.
var ErrMissingAPIKey = errors.New("vision: openai api key is required")

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	OnWarning    func(reason, detail string)
}

// OpenAI calls the chat completions endpoint with the image inlined as a
// data URL.
type OpenAI struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
	logger       *infra.Logger
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature"`
	TopP        float32         `json:"top_p"`
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	modelInput := strings.TrimSpace(opts.Model)
	model, reason := normalizeOpenAIModel(modelInput)
	if reason != "" && opts.OnWarning != nil {
		opts.OnWarning("model_"+reason, fmt.Sprintf("requested=%s resolved=%s", modelInput, model))
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &OpenAI{
		apiKey:       apiKey,
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		logger:       logger,
	}, nil
}

func (o *OpenAI) Name() string { return openAIProviderName }

// Model returns the resolved model identifier.
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Generate(ctx context.Context, inst Instruction) (string, error) {
	params, text, err := validate(inst)
	if err != nil {
		return "", err
	}
	parts := []openAIContentPart{{Type: "text", Text: text}}
	if len(inst.Image.Data) > 0 {
		parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: inst.Image.DataURL()}})
	}
	payload := openAIChatRequest{
		Model:       o.model,
		Messages:    []openAIMessage{{Role: "user", Content: parts}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("vision: openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("vision: openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("vision: openai: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var out openAIChatResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode >= 300 {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("vision: openai: status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("vision: openai: status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("vision: openai: decode response: %w", decodeErr)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("vision: openai: no choices")
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("vision: openai: empty response")
	}
	o.logger.Debug().
		Str("provider", openAIProviderName).
		Str("model", o.model).
		Str("task", string(inst.Task)).
		Int("chars", len(content)).
		Msg("vision: text generated")
	return content, nil
}

func normalizeOpenAIModel(name string) (string, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultOpenAIModel, ""
	}
	normalized := strings.ToLower(trimmed)
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	if canonical, ok := openAIModelCanonical[normalized]; ok {
		return canonical, ""
	}
	if alias, ok := openAIModelAliases[normalized]; ok {
		return alias, "alias"
	}
	return defaultOpenAIModel, "defaulted"
}

var _ Generator = (*OpenAI)(nil)
