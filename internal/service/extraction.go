package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/retry"
)

// Extraction methods reported in ExtractionResult.Method.
const (
	ExtractionLocal    = "local"
	ExtractionRemote   = "remote"
	ExtractionFallback = "fallback"
)

// ExtractionResult is the text produced for one file.
type ExtractionResult struct {
	Text   string
	Method string
	// Cause is set when Method is ExtractionFallback.
	Cause error
}

// Degraded reports whether the text is the filename placeholder.
func (r ExtractionResult) Degraded() bool {
	return r.Method == ExtractionFallback
}

// ExtractionService turns raw resume files into analyzable text.
type ExtractionService struct {
	extractor ai.DocumentExtractor
	policy    retry.Policy
	logger    *logger.Logger
}

// NewExtractionService creates a new ExtractionService.
// Parameters:
//   - extractor: remote multimodal extractor; nil disables remote extraction.
//   - policy: retry policy applied to remote calls.
//   - log: fallback logger.
func NewExtractionService(extractor ai.DocumentExtractor, policy retry.Policy, log *logger.Logger) *ExtractionService {
	return &ExtractionService{extractor: extractor, policy: policy, logger: log}
}

func (s *ExtractionService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// FallbackText is the placeholder used when a file's text cannot be extracted.
func FallbackText(fileName string) string {
	return fmt.Sprintf("[Resume file: %s - text extraction unavailable, analysis based on filename only]", fileName)
}

// IsPlainText reports whether a file can be decoded locally.
func IsPlainText(name, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown", ".csv":
		return true
	}
	return false
}

// Extract returns text for doc. It never fails: when remote extraction is
// unavailable or exhausts its retries, the filename placeholder is returned
// with the cause attached.
func (s *ExtractionService) Extract(ctx context.Context, doc ai.Document) ExtractionResult {
	start := time.Now()

	if IsPlainText(doc.Name, doc.MIMEType) {
		text := decodePlainText(doc.Data)
		logger.With(logger.Fields{"file": doc.Name, "method": ExtractionLocal}).
			WithCount(len(text)).WithDuration(time.Since(start)).
			Debug(ctx, "Decoded plain-text resume")
		return ExtractionResult{Text: text, Method: ExtractionLocal}
	}

	if s.extractor == nil {
		return s.fallback(ctx, doc, fmt.Errorf("no remote extractor configured"))
	}

	attempts := 0
	text, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) (string, error) {
		attempts++
		return s.extractor.ExtractText(ctx, doc)
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("extractor returned no text")
	}
	if err != nil {
		return s.fallback(ctx, doc, err)
	}

	logger.With(logger.Fields{"file": doc.Name, "method": ExtractionRemote}).
		WithAttempt(attempts).WithDuration(time.Since(start)).
		Info(ctx, "Extracted resume text")
	return ExtractionResult{Text: text, Method: ExtractionRemote}
}

func (s *ExtractionService) fallback(ctx context.Context, doc ai.Document, cause error) ExtractionResult {
	s.log(ctx).WithFields(logger.Fields{
		"file":      doc.Name,
		"mime_type": doc.MIMEType,
	}).WithError(cause).Warn("Text extraction failed, using filename placeholder")
	return ExtractionResult{Text: FallbackText(doc.Name), Method: ExtractionFallback, Cause: stageErr(StageExtract, cause)}
}

func decodePlainText(data []byte) string {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ToValidUTF8(text, "")
	return strings.TrimSpace(text)
}
