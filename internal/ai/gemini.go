package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/hireflow/internal/prompts"
	"github.com/timmy/hireflow/internal/retry"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the subset of genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient wraps the Google GenAI client.
type GeminiClient struct {
	models    contentGenerator
	modelName string
}

// NewGeminiClient creates a client configured for the Gemini API backend.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGeminiClient(client.Models, model), nil
}

func newGeminiClient(models contentGenerator, model string) *GeminiClient {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{models: models, modelName: model}
}

// Name returns the provider name.
func (g *GeminiClient) Name() string {
	return "gemini"
}

// Model returns the default model name.
func (g *GeminiClient) Model() string {
	return g.modelName
}

// Complete implements ChatModel.
func (g *GeminiClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	// Scoring profiles name OpenAI-style models; only honour gemini ones here.
	if !strings.HasPrefix(model, "gemini") {
		model = g.modelName
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}

	return g.generate(ctx, model, genai.Text(req.User), cfg)
}

// ExtractText implements DocumentExtractor by sending the file inline.
func (g *GeminiClient) ExtractText(ctx context.Context, doc Document) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompts.ExtractionUserPrompt),
			genai.NewPartFromBytes(doc.Data, doc.MIMEType),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompts.ExtractionSystemPrompt, genai.RoleUser),
	}
	return g.generate(ctx, g.modelName, contents, cfg)
}

func (g *GeminiClient) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", classifyGeminiError(err))
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

// classifyGeminiError maps genai API errors onto retry.HTTPError.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &retry.HTTPError{StatusCode: apiErr.Code, Message: strings.TrimSpace(apiErr.Status + " " + apiErr.Message)}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &retry.HTTPError{StatusCode: apiErrPtr.Code, Message: strings.TrimSpace(apiErrPtr.Status + " " + apiErrPtr.Message)}
	}
	return err
}
