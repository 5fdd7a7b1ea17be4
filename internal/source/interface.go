package source

import (
	"context"
	"mime"
	"path/filepath"
	"strings"
)

// ResumeFile represents one resume file offered for batch intake.
type ResumeFile struct {
	SourceID      string // Unique ID within the source
	Name          string // Original file name
	MIMEType      string
	LocalPath     string
	CandidateName string
	Email         string
	JobRole       string
	CoverLetter   string
}

// Source defines the interface for resume file sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// FetchBatch fetches a batch of resume files starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of resume files.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []ResumeFile, nextCursor string, err error)
}

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".rtf":  "application/rtf",
}

// SupportedExtension reports whether files with the given name are accepted for intake.
func SupportedExtension(name string) bool {
	_, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// DetectMIMEType returns the MIME type for a resume file name.
func DetectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
