// Package api exposes the extraction pipeline over a small REST surface.
package api

import (
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"tagextract/internal/task"
)

const serviceVersion = "2.0.0"

type API struct {
	manager          *task.Manager
	defaultModel     string
	defaultDPI       int
	geminiConfigured bool
}

type submitResponse struct {
	TaskID  string      `json:"task_id"`
	Message string      `json:"message"`
	Status  task.Status `json:"status"`
}

type taskSummary struct {
	TaskID    string      `json:"task_id"`
	Status    task.Status `json:"status"`
	Progress  string      `json:"progress,omitempty"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
}

type pdfValidationResponse struct {
	Valid      bool    `json:"valid"`
	Filename   string  `json:"filename"`
	PageCount  *int    `json:"page_count,omitempty"`
	FileSizeMB float64 `json:"file_size_mb,omitempty"`
	Error      string  `json:"error,omitempty"`
	Message    string  `json:"message"`
}

func NewAPI(manager *task.Manager, defaultModel string, defaultDPI int, geminiConfigured bool) *API {
	return &API{
		manager:          manager,
		defaultModel:     defaultModel,
		defaultDPI:       defaultDPI,
		geminiConfigured: geminiConfigured,
	}
}

// RegisterRoutes registers all routes on the provided gin engine.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/", a.Root)
	router.GET("/health", a.Health)
	router.POST("/extract-tags", a.ExtractTags)
	router.GET("/status/:task_id", a.Status)
	router.GET("/result/:task_id", a.Result)
	router.GET("/tasks", a.ListTasks)
	router.DELETE("/task/:task_id", a.DeleteTask)
	router.POST("/validate-pdf", a.ValidatePDF)
}

// Root returns the service banner.
func (a *API) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "PDF Tag Extraction Service",
		"status":  "active",
		"version": serviceVersion,
	})
}

// Health reports liveness and whether the AI collaborator is configured.
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"gemini_configured": a.geminiConfigured,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"version":           serviceVersion,
	})
}

// ExtractTags accepts a multipart batch of PDFs and queues an extraction
// job. All validation happens here or in Submit, before a task id is
// allocated.
func (a *API) ExtractTags(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no PDF files uploaded"})
		return
	}

	model := c.DefaultPostForm("gemini_model", a.defaultModel)
	dpi := a.defaultDPI
	if raw := c.PostForm("pdf_conversion_dpi"); raw != "" {
		dpi, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pdf_conversion_dpi must be an integer"})
			return
		}
	}

	docs := make([]task.Document, 0, len(uploads))
	for _, header := range uploads {
		data, err := readUpload(header)
		if err != nil {
			log.Warn().Str("file", header.Filename).Err(err).Msg("failed to read upload")
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read %s", header.Filename)})
			return
		}
		docs = append(docs, task.Document{Name: header.Filename, Data: data})
	}

	created, err := a.manager.Submit(docs, model, dpi)
	if err != nil {
		log.Warn().Err(err).Msg("submission rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Info().Str("task_id", created.ID).Int("documents", len(docs)).
		Str("model", model).Int("dpi", dpi).Msg("extraction task accepted")
	c.JSON(http.StatusOK, submitResponse{
		TaskID:  created.ID,
		Message: "Processing started",
		Status:  created.Status,
	})
}

// Status returns the current task snapshot.
func (a *API) Status(c *gin.Context) {
	id := c.Param("task_id")
	snapshot, ok := a.manager.GetTask(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Result returns the extraction result of a completed task, 202 while
// the task is still running and the stored error for a failed one.
func (a *API) Result(c *gin.Context) {
	id := c.Param("task_id")
	snapshot, ok := a.manager.GetTask(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	switch snapshot.Status {
	case task.StatusQueued, task.StatusProcessing:
		c.JSON(http.StatusAccepted, gin.H{"detail": "Task still processing"})
	case task.StatusFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Task failed: " + snapshot.Error})
	case task.StatusCompleted:
		if snapshot.Result == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Unknown task state"})
			return
		}
		c.JSON(http.StatusOK, snapshot.Result)
	}
}

// ListTasks returns a summary of every known task.
func (a *API) ListTasks(c *gin.Context) {
	all := a.manager.ListTasks()
	summaries := make([]taskSummary, 0, len(all))
	for _, t := range all {
		summaries = append(summaries, taskSummary{
			TaskID:    t.ID,
			Status:    t.Status,
			Progress:  t.Progress,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: t.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tasks": summaries, "total_tasks": len(summaries)})
}

// DeleteTask removes a task snapshot from the store.
func (a *API) DeleteTask(c *gin.Context) {
	id := c.Param("task_id")
	if err := a.manager.DeleteTask(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	log.Info().Str("task_id", id).Msg("task deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully", "task_id": id})
}

// ValidatePDF checks a single upload without creating a job.
func (a *API) ValidatePDF(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}

	if !hasPDFExtension(header.Filename) {
		c.JSON(http.StatusOK, pdfValidationResponse{
			Valid:    false,
			Filename: header.Filename,
			Error:    "File is not a PDF",
			Message:  "File validation failed - not a PDF file",
		})
		return
	}

	data, err := readUpload(header)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read %s", header.Filename)})
		return
	}

	pages, err := a.manager.ValidatePDF(task.Document{Name: header.Filename, Data: data})
	if err != nil {
		c.JSON(http.StatusOK, pdfValidationResponse{
			Valid:    false,
			Filename: header.Filename,
			Error:    err.Error(),
			Message:  "PDF validation failed",
		})
		return
	}

	sizeMB := math.Round(float64(len(data))/(1<<20)*100) / 100
	c.JSON(http.StatusOK, pdfValidationResponse{
		Valid:      true,
		Filename:   header.Filename,
		PageCount:  &pages,
		FileSizeMB: sizeMB,
		Message:    "PDF is valid and can be processed",
	})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func hasPDFExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
