// Package ai contains the clients for the external inference services the
// pipeline calls: a chat model for scoring and matching, and a multimodal
// model for document text extraction.
package ai

import "context"

// ChatRequest is one system+user exchange with a chat model.
type ChatRequest struct {
	// Model overrides the client's default model when set.
	Model  string
	System string
	User   string
	// JSON asks the provider to constrain output to a JSON object.
	JSON        bool
	Temperature float32
	MaxTokens   int
}

// ChatModel answers a single chat request.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Document is a raw file handed to a text extractor.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// DocumentExtractor turns a binary document into plain text.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, doc Document) (string, error)
}

// Provider is a backend that can both chat and extract.
type Provider interface {
	ChatModel
	DocumentExtractor
	Name() string
}
