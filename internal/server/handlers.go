package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/store"
	"github.com/ppiankov/claimlens/internal/worker"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string          `json:"status"`
	Version string          `json:"version"`
	Engines map[string]bool `json:"engines"`
	Cache   any             `json:"cache,omitempty"`
	Advisor string          `json:"advisor"`
	History bool            `json:"history"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Engines: map[string]bool{"fraud": true, "document": true, "image": true},
		Advisor: s.analyzer.AdvisorName(),
		History: s.history != nil,
	}
	if stats, ok := s.analyzer.CacheStats(); ok {
		resp.Cache = stats
	}
	c.JSON(http.StatusOK, resp)
}

// handleAnalyzeClaim handles POST /v1/claims/analyze
func (s *Server) handleAnalyzeClaim(c *gin.Context) {
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	analysis, err := s.analyzer.AnalyzeClaim(c.Request.Context(), req.toModel())
	if err != nil {
		abortFor(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// BatchClaimsResponse is the body of POST /v1/claims/batch
type BatchClaimsResponse struct {
	Results []BatchResult  `json:"results"`
	Summary worker.Summary `json:"summary"`
}

// BatchResult is one claim of a batch
type BatchResult struct {
	Index    int             `json:"index"`
	Analysis *model.Analysis `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// handleBatchClaims handles POST /v1/claims/batch. Claims run on the worker
// pool and results keep request order.
func (s *Server) handleBatchClaims(c *gin.Context) {
	var req BatchClaimsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, fmt.Sprintf("invalid request body (1-%d claims): %v", MaxBatchClaims, err))
		return
	}

	items := make([]worker.Item, len(req.Claims))
	for i, cr := range req.Claims {
		m := cr.toModel()
		items[i] = worker.Item{
			Kind:        model.KindClaim,
			ID:          m.ClaimID,
			Category:    m.Category,
			Description: m.Description,
			Amount:      m.Amount,
			Line:        i + 1,
		}
	}

	workers := s.workers
	if workers <= 0 {
		workers = 4
	}
	results := worker.NewBatchProcessor(s.analyzer, nil, workers, s.timeout).ProcessItems(c.Request.Context(), items)

	resp := BatchClaimsResponse{Results: make([]BatchResult, len(results)), Summary: worker.Summarize(results)}
	for i, r := range results {
		resp.Results[i] = BatchResult{Index: r.Index, Analysis: r.Analysis}
		if r.Error != nil {
			resp.Results[i].Error = r.Error.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// handleValidateDocument handles POST /v1/documents/validate (multipart:
// file, document_type, optional text)
func (s *Server) handleValidateDocument(c *gin.Context) {
	content, header, err := s.readUpload(c)
	if err != nil {
		abortFor(c, err)
		return
	}

	doc := model.Document{
		Content:  content,
		Filename: header.Filename,
		Type:     model.ParseDocumentType(c.PostForm("document_type")),
		Text:     c.PostForm("text"),
	}
	analysis, err := s.analyzer.ValidateDocument(c.Request.Context(), doc)
	if err != nil {
		abortFor(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// handleAnalyzeImage handles POST /v1/images/analyze (multipart: file,
// analysis_type). Only image/* uploads are accepted.
func (s *Server) handleAnalyzeImage(c *gin.Context) {
	content, header, err := s.readUpload(c)
	if err != nil {
		abortFor(c, err)
		return
	}
	if mediaType := imageMediaType(header, content); !strings.HasPrefix(mediaType, "image/") {
		abortFor(c, fmt.Errorf("%s is %s, not an image: %w", header.Filename, mediaType, model.ErrUnsupportedMedia))
		return
	}

	img := model.Image{
		Content:      content,
		Filename:     header.Filename,
		AnalysisType: model.ParseAnalysisType(c.PostForm("analysis_type")),
	}
	analysis, err := s.analyzer.AnalyzeImage(c.Request.Context(), img)
	if err != nil {
		abortFor(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// readUpload reads the "file" form field within the upload cap
func (s *Server) readUpload(c *gin.Context) ([]byte, *multipart.FileHeader, error) {
	limit := s.maxUploadBytes()
	if c.Request.ContentLength > limit+(1<<20) {
		return nil, nil, fmt.Errorf("upload of %d bytes: %w", c.Request.ContentLength, model.ErrPayloadTooLarge)
	}
	// multipart framing gets 1 MiB of headroom over the file cap
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+(1<<20))

	header, err := c.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, fmt.Errorf("upload: %w", model.ErrPayloadTooLarge)
		}
		return nil, nil, fmt.Errorf("form field file: %v: %w", err, model.ErrEmptyInput)
	}
	if header.Size > limit {
		return nil, nil, fmt.Errorf("%s is %d bytes, limit %d: %w", header.Filename, header.Size, limit, model.ErrPayloadTooLarge)
	}

	f, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	if len(content) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", header.Filename, model.ErrEmptyInput)
	}
	header.Filename = filepath.Base(header.Filename)
	return content, header, nil
}

// imageMediaType prefers the declared part type and sniffs when it is missing or generic
func imageMediaType(header *multipart.FileHeader, content []byte) string {
	declared := header.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return mediaType
	}
	return http.DetectContentType(content)
}

// handleGetAnalysis handles GET /v1/analyses/:id
func (s *Server) handleGetAnalysis(c *gin.Context) {
	if s.history == nil {
		abortError(c, http.StatusNotFound, "analysis history is disabled")
		return
	}
	analysis, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		abortError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		abortFor(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// handleListAnalyses handles GET /v1/analyses?kind=&limit=&offset=
func (s *Server) handleListAnalyses(c *gin.Context) {
	if s.history == nil {
		abortError(c, http.StatusNotFound, "analysis history is disabled")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 500 || offset < 0 {
		abortError(c, http.StatusBadRequest, "limit must be 1-500 and offset non-negative")
		return
	}

	records, err := s.history.List(c.Request.Context(), store.ListOptions{
		Kind:   model.AnalysisKind(c.Query("kind")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		abortFor(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": records, "limit": limit, "offset": offset})
}

// StatsResponse is the body of GET /v1/stats
type StatsResponse struct {
	History *store.Stats `json:"history,omitempty"`
	Cache   any          `json:"cache,omitempty"`
}

// handleStats handles GET /v1/stats
func (s *Server) handleStats(c *gin.Context) {
	var resp StatsResponse
	if s.history != nil {
		stats, err := s.history.Stats(c.Request.Context())
		if err != nil {
			abortFor(c, err)
			return
		}
		resp.History = &stats
	}
	if stats, ok := s.analyzer.CacheStats(); ok {
		resp.Cache = stats
	}
	c.JSON(http.StatusOK, resp)
}
