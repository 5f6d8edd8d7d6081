// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

// DefaultOpenAIBaseURL points at Groq's OpenAI-compatible endpoint.
const DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"

const defaultOpenAIModel = "llama-3.3-70b-versatile"

// OpenAIGenerator calls any OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
	maxTokens  int
}

// NewOpenAIGenerator configures a chat completions client from cfg.
func NewOpenAIGenerator(cfg types.GeneratorConfig, httpClient *http.Client) *OpenAIGenerator {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = DefaultOpenAIBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIGenerator{
		client:     openai.NewClientWithConfig(oc),
		httpClient: httpClient,
		model:      model,
		maxTokens:  cfg.MaxTokens,
	}
}

// Generate sends an optional system message plus prompt and returns the
// first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if opts.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: opts.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: float32(opts.Temperature),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", types.NewGenerationError(fmt.Sprintf("chat completion returned %d", apiErr.HTTPStatusCode), err)
		}
		return "", types.NewGenerationError("calling chat completion API", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", types.NewGenerationError("chat completion returned no content", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// Close releases idle connections held by the HTTP client.
func (g *OpenAIGenerator) Close() error {
	if g.httpClient != nil {
		g.httpClient.CloseIdleConnections()
	}
	return nil
}
