package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/service"
)

// PipelineHandler exposes extraction, analysis and batch endpoints.
type PipelineHandler struct {
	extractor   Extractor
	analyzer    service.Analyzer
	batch       BatchRunner
	maxUploadMB int
}

// NewPipelineHandler creates a new pipeline handler.
// Parameters:
//   - extractor: text extraction adapter.
//   - analyzer: resume analysis orchestrator.
//   - batch: batch coordinator.
//   - maxUploadMB: limit on a multipart batch body; 0 means 32.
func NewPipelineHandler(extractor Extractor, analyzer service.Analyzer, batch BatchRunner, maxUploadMB int) *PipelineHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &PipelineHandler{
		extractor:   extractor,
		analyzer:    analyzer,
		batch:       batch,
		maxUploadMB: maxUploadMB,
	}
}

type extractRequest struct {
	FileContentBase64 string `json:"fileContentBase64" binding:"required"`
	FileName          string `json:"fileName" binding:"required"`
	MIMEType          string `json:"mimeType"`
}

// Extract handles POST /api/v1/extract.
func (h *PipelineHandler) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.FileContentBase64)
	if err != nil {
		badRequest(c, "fileContentBase64 is not valid base64")
		return
	}

	res := h.extractor.Extract(c.Request.Context(), ai.Document{
		Name:     req.FileName,
		MIMEType: req.MIMEType,
		Data:     data,
	})
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"text":     res.Text,
		"method":   res.Method,
		"degraded": res.Degraded(),
	})
}

// Analyze handles POST /api/v1/analyze.
func (h *PipelineHandler) Analyze(c *gin.Context) {
	var req service.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ApplicationID) == "" {
		badRequest(c, "applicationId is required")
		return
	}

	res, err := h.analyzer.Analyze(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	a := res.Analysis
	skills := make([]gin.H, 0, len(res.Skills))
	for _, s := range res.Skills {
		skills = append(skills, gin.H{"name": s.Name, "proficiency": s.Proficiency})
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"analysis": gin.H{
			"skills_score":     a.SkillsScore,
			"experience_score": a.ExperienceScore,
			"education_score":  a.EducationScore,
			"overall_score":    a.OverallScore,
			"skills":           skills,
			"recommendations":  a.Recommendations,
			"summary":          a.Summary,
			"profile":          a.Profile,
		},
	})
}

// Batch handles POST /api/v1/batch as multipart/form-data with one or more
// "files" parts. The batch keeps running if the client disconnects.
func (h *PipelineHandler) Batch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.maxUploadMB)<<20)
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "Invalid multipart form: "+err.Error())
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		badRequest(c, "at least one file is required")
		return
	}

	files := make([]service.BatchFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, fmt.Sprintf("open %s: %v", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			badRequest(c, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		files = append(files, service.BatchFile{
			Name:     fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	opts := service.BatchOptions{
		JobRole: c.PostForm("job_role"),
		Profile: c.PostForm("profile"),
	}
	ctx := context.WithoutCancel(c.Request.Context())
	summary, err := h.batch.ProcessFiles(ctx, files, opts)
	if err != nil {
		fail(c, err)
		return
	}
	logger.With(logger.Fields{logger.FieldBatchID: summary.BatchID}).
		WithCount(summary.Total).
		Info(ctx, "Batch upload finished: %d succeeded, %d failed, %d rate limited",
			summary.Succeeded, summary.Failed, summary.RateLimited)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": summary,
	})
}

type reanalyzeRequest struct {
	ApplicationIDs []string `json:"applicationIds"`
	Status         string   `json:"status"`
	Limit          int      `json:"limit"`
	Profile        string   `json:"profile"`
}

// Reanalyze handles POST /api/v1/reanalyze. Either applicationIds or a
// status selects the applications.
func (h *PipelineHandler) Reanalyze(c *gin.Context) {
	var req reanalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	opts := service.BatchOptions{Profile: req.Profile}
	ctx := context.WithoutCancel(c.Request.Context())

	var (
		summary *service.BatchSummary
		err     error
	)
	switch {
	case len(req.ApplicationIDs) > 0:
		summary, err = h.batch.Reanalyze(ctx, req.ApplicationIDs, opts)
	case req.Status != "":
		summary, err = h.batch.ReanalyzeStatus(ctx, domain.ApplicationStatus(req.Status), req.Limit, opts)
	default:
		badRequest(c, "applicationIds or status is required")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": summary,
	})
}
