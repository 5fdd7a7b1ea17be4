package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/hireflow/internal/prompts"
	"github.com/timmy/hireflow/internal/retry"
)

// OpenAIConfig holds configuration for an OpenAI-compatible chat completions API.
type OpenAIConfig struct {
	Model           string
	ExtractionModel string
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client          *resty.Client
	model           string
	extractionModel string
	endpoint        string
}

// NewOpenAIClient creates a new OpenAI-compatible client.
// Parameters:
//   - cfg: model, API key and base URL.
//
// Returns:
//   - *OpenAIClient: initialized client.
func NewOpenAIClient(cfg *OpenAIConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	extractionModel := cfg.ExtractionModel
	if extractionModel == "" {
		extractionModel = cfg.Model
	}

	return &OpenAIClient{
		client:          client,
		model:           cfg.Model,
		extractionModel: extractionModel,
		endpoint:        baseURL + "/chat/completions",
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float32               `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string, or []interface{} for multimodal parts
}

type openAITextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIFileContent struct {
	Type string         `json:"type"`
	File openAIFileData `json:"file"`
}

type openAIFileData struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIErrorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a chat request and returns the first choice's content.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: prompts and output constraints.
//
// Returns:
//   - string: model reply.
//   - error: *retry.HTTPError for non-2xx responses, so a 429 is classified as retryable.
func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		body.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	return c.send(ctx, body)
}

// ExtractText sends the document as a base64 file part and returns the transcribed text.
func (c *OpenAIClient) ExtractText(ctx context.Context, doc Document) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", doc.MIMEType, base64.StdEncoding.EncodeToString(doc.Data))

	body := openAIRequest{
		Model: c.extractionModel,
		Messages: []openAIMessage{
			{Role: "system", Content: prompts.ExtractionSystemPrompt},
			{
				Role: "user",
				Content: []interface{}{
					openAITextContent{Type: "text", Text: prompts.ExtractionUserPrompt},
					openAIFileContent{
						Type: "file",
						File: openAIFileData{Filename: doc.Name, FileData: dataURL},
					},
				},
			},
		},
	}

	text, err := c.send(ctx, body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *OpenAIClient) send(ctx context.Context, body openAIRequest) (string, error) {
	var resp openAIResponse
	var apiErr openAIErrorResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		SetError(&apiErr).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call chat API: %w", err)
	}

	if httpResp.IsError() || httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := strings.TrimSpace(string(httpResp.Body()))
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", &retry.HTTPError{StatusCode: httpResp.StatusCode(), Message: msg}
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat API returned no choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("chat API returned empty content")
	}
	return content, nil
}
