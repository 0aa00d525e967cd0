package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// GeminiClient generates text with the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiOption customizes a GeminiClient.
type GeminiOption func(cfg *genai.ClientConfig)

// WithGeminiBaseURL points the client at a different API host.
func WithGeminiBaseURL(baseURL string) (opt GeminiOption) {
	opt = func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	return opt
}

// NewGeminiClient creates a Gemini client for model.
func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...GeminiOption) (client *GeminiClient, err error) {
	if apiKey == "" {
		err = errors.New("gemini API key is required")
		return client, err
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var gc *genai.Client
	gc, err = genai.NewClient(ctx, cfg)
	if err != nil {
		err = errors.Wrap(err, "failed to create Gemini client")
		return client, err
	}

	client = &GeminiClient{
		client: gc,
		model:  model,
	}
	return client, err
}

// Name identifies the provider in logs.
func (c *GeminiClient) Name() (name string) {
	name = "gemini/" + c.model
	return name
}

// GenerateText sends prompt with all content filters relaxed to the service defaults.
func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (text string, err error) {
	config := &genai.GenerateContentConfig{
		SafetySettings: relaxedSafetySettings(),
	}

	var resp *genai.GenerateContentResponse
	resp, err = c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		err = serviceError(err, "gemini request failed")
		return text, err
	}

	text = resp.Text()
	if strings.TrimSpace(text) == "" {
		err = serviceError(nil, "no text in Gemini response"+blockReason(resp))
		return text, err
	}

	return text, err
}

func relaxedSafetySettings() (settings []*genai.SafetySetting) {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}

	settings = make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}

// blockReason describes why the service withheld a response, if it said so.
func blockReason(resp *genai.GenerateContentResponse) (reason string) {
	if resp == nil {
		return reason
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		reason = " (prompt blocked: " + string(resp.PromptFeedback.BlockReason) + ")"
		return reason
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		reason = " (finish reason: " + string(resp.Candidates[0].FinishReason) + ")"
	}
	return reason
}
