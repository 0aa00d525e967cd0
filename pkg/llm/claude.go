package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
)

// ClaudeMaxTokens bounds the size of a generated document.
const ClaudeMaxTokens = 8192

// ClaudeClient generates text with the Anthropic Messages API.
type ClaudeClient struct {
	client anthropic.Client
	model  string
}

// NewClaudeClient creates a Claude client for model. Extra request options
// (base URL, HTTP client) are appended after the defaults.
func NewClaudeClient(apiKey, model string, opts ...option.RequestOption) (client *ClaudeClient, err error) {
	if apiKey == "" {
		err = errors.New("anthropic API key is required")
		return client, err
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	reqOpts = append(reqOpts, opts...)

	client = &ClaudeClient{
		client: anthropic.NewClient(reqOpts...),
		model:  model,
	}
	return client, err
}

// Name identifies the provider in logs.
func (c *ClaudeClient) Name() (name string) {
	name = "anthropic/" + c.model
	return name
}

// GenerateText sends prompt as a single user message.
func (c *ClaudeClient) GenerateText(ctx context.Context, prompt string) (text string, err error) {
	var msg *anthropic.Message
	msg, err = c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: ClaudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		err = serviceError(err, "anthropic request failed")
		return text, err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text = sb.String()
	if strings.TrimSpace(text) == "" {
		err = serviceError(nil, "no content in Claude response (stop reason: "+string(msg.StopReason)+")")
		return text, err
	}

	return text, err
}
