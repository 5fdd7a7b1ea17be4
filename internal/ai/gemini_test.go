package ai

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/hireflow/internal/retry"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	model  string
	config *genai.GenerateContentConfig
	parts  []*genai.Part
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	for _, c := range contents {
		f.parts = append(f.parts, c.Parts...)
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGeminiCompleteUsesJSONMode(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse(`{"match_score": 70}`)}
	c := newGeminiClient(fake, "gemini-2.5-flash")

	out, err := c.Complete(context.Background(), ChatRequest{Model: "gpt-4o", System: "sys", User: "usr", JSON: true})
	require.NoError(t, err)

	assert.Equal(t, `{"match_score": 70}`, out)
	assert.Equal(t, "gemini-2.5-flash", fake.model, "non-gemini model names fall back to the default")
	require.NotNil(t, fake.config)
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	require.NotNil(t, fake.config.SystemInstruction)
}

func TestGeminiRateLimitMapsToHTTPError(t *testing.T) {
	fake := &fakeGenerator{err: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}}
	c := newGeminiClient(fake, "")

	_, err := c.Complete(context.Background(), ChatRequest{User: "hi"})
	require.Error(t, err)
	assert.True(t, retry.IsRetryable(err))
	assert.Equal(t, defaultGeminiModel, fake.model)
}

func TestGeminiExtractTextSendsInlineData(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse("Resume text")}
	c := newGeminiClient(fake, "gemini-2.5-flash")

	text, err := c.ExtractText(context.Background(), Document{Name: "cv.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "Resume text", text)

	require.Len(t, fake.parts, 2)
	require.NotNil(t, fake.parts[1].InlineData)
	assert.Equal(t, "application/pdf", fake.parts[1].InlineData.MIMEType)
}

func TestGeminiEmptyResponse(t *testing.T) {
	fake := &fakeGenerator{resp: &genai.GenerateContentResponse{}}
	c := newGeminiClient(fake, "")
	_, err := c.Complete(context.Background(), ChatRequest{User: "hi"})
	assert.Error(t, err)
}
