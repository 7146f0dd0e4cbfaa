package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tagextract/internal/extract"
	"tagextract/internal/task"
)

func setupRouter(t *testing.T, extractFn task.ExtractFunc) (*gin.Engine, *task.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()

	manager := task.NewManager(nil, task.Options{
		TempDir:            t.TempDir(),
		MaxConcurrentTasks: 1,
		MaxUploadBytes:     1 << 20,
	})
	if extractFn != nil {
		manager.UseExtractor(extractFn)
	}

	handler := NewAPI(manager, "gemini-1.5-flash-latest", 300, true)
	handler.RegisterRoutes(router)
	return router, manager
}

func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func submitOne(t *testing.T, router *gin.Engine, filename string) string {
	t.Helper()
	body, contentType := multipartBody(t, map[string][]byte{filename: []byte("%PDF")}, nil)
	req := httptest.NewRequest(http.MethodPost, "/extract-tags", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on submit, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal submit response: %v", err)
	}
	id, _ := resp["task_id"].(string)
	if id == "" {
		t.Fatalf("empty task_id in response: %s", w.Body.String())
	}
	if resp["status"] != string(task.StatusQueued) {
		t.Fatalf("expected queued status, got %v", resp["status"])
	}
	return id
}

func TestSubmitStatusResultFlow(t *testing.T) {
	router, _ := setupRouter(t, func(ctx context.Context, path string, opts extract.Options, onPage extract.PageFunc) ([][]string, error) {
		return [][]string{{"P-101A", "BV-0007"}, {"P-101A"}}, nil
	})

	id := submitOne(t, router, "drawing.pdf")

	// Poll status until terminal.
	deadline := time.Now().Add(2 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/status/"+id, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status poll: expected 200, got %d", w.Code)
		}
		var snapshot map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &snapshot)
		status, _ = snapshot["status"].(string)
		if status == string(task.StatusCompleted) || status == string(task.StatusFailed) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status != string(task.StatusCompleted) {
		t.Fatalf("expected completed, got %q", status)
	}

	req := httptest.NewRequest(http.MethodGet, "/result/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("result: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result["total_unique_tags"] != float64(2) {
		t.Fatalf("expected 2 unique tags, got %v", result["total_unique_tags"])
	}
	if result["total_pages_processed"] != float64(2) {
		t.Fatalf("expected 2 pages, got %v", result["total_pages_processed"])
	}
}

func TestSubmitValidationErrors(t *testing.T) {
	router, _ := setupRouter(t, nil)

	// No files at all.
	body, contentType := multipartBody(t, nil, map[string]string{"gemini_model": "x"})
	req := httptest.NewRequest(http.MethodPost, "/extract-tags", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("no files: expected 400, got %d", w.Code)
	}

	// Wrong extension.
	body, contentType = multipartBody(t, map[string][]byte{"notes.txt": []byte("x")}, nil)
	req = httptest.NewRequest(http.MethodPost, "/extract-tags", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-pdf: expected 400, got %d", w.Code)
	}

	// DPI out of range.
	body, contentType = multipartBody(t, map[string][]byte{"a.pdf": []byte("%PDF")}, map[string]string{"pdf_conversion_dpi": "1200"})
	req = httptest.NewRequest(http.MethodPost, "/extract-tags", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("dpi out of range: expected 400, got %d", w.Code)
	}

	// DPI not an integer.
	body, contentType = multipartBody(t, map[string][]byte{"a.pdf": []byte("%PDF")}, map[string]string{"pdf_conversion_dpi": "high"})
	req = httptest.NewRequest(http.MethodPost, "/extract-tags", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("dpi not integer: expected 400, got %d", w.Code)
	}
}

func TestResultWhileStillProcessing(t *testing.T) {
	blocker := make(chan struct{})
	router, manager := setupRouter(t, func(ctx context.Context, path string, opts extract.Options, onPage extract.PageFunc) ([][]string, error) {
		<-blocker
		return [][]string{}, nil
	})

	id := submitOne(t, router, "slow.pdf")

	req := httptest.NewRequest(http.MethodGet, "/result/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 while processing, got %d", w.Code)
	}

	close(blocker)
	if !manager.WaitAll(context.Background()) {
		t.Fatalf("workers did not finish")
	}
}

func TestResultOfFailedTask(t *testing.T) {
	router, manager := setupRouter(t, func(ctx context.Context, path string, opts extract.Options, onPage extract.PageFunc) ([][]string, error) {
		panic("model exploded")
	})

	id := submitOne(t, router, "a.pdf")
	if !manager.WaitAll(context.Background()) {
		t.Fatalf("workers did not finish")
	}

	req := httptest.NewRequest(http.MethodGet, "/result/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for failed task, got %d", w.Code)
	}
}

func TestStatusAndResultNotFound(t *testing.T) {
	router, _ := setupRouter(t, nil)

	for _, target := range []string{"/status/unknown", "/result/unknown"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, w.Code)
		}
	}
}

func TestListAndDeleteTask(t *testing.T) {
	router, manager := setupRouter(t, func(ctx context.Context, path string, opts extract.Options, onPage extract.PageFunc) ([][]string, error) {
		return [][]string{}, nil
	})

	id := submitOne(t, router, "a.pdf")
	if !manager.WaitAll(context.Background()) {
		t.Fatalf("workers did not finish")
	}

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var listResp struct {
		Tasks      []map[string]any `json:"tasks"`
		TotalTasks int              `json:"total_tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if listResp.TotalTasks != 1 || len(listResp.Tasks) != 1 {
		t.Fatalf("expected one task in list, got %+v", listResp)
	}

	req = httptest.NewRequest(http.MethodDelete, "/task/"+id, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/task/"+id, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if resp["status"] != "healthy" || resp["gemini_configured"] != true {
		t.Fatalf("unexpected health payload: %v", resp)
	}
}

func TestValidatePDFRejectsNonPDF(t *testing.T) {
	router, _ := setupRouter(t, nil)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("not a pdf")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/validate-pdf", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp pdfValidationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Valid || resp.Filename != "notes.txt" {
		t.Fatalf("expected invalid verdict, got %+v", resp)
	}
}

func TestValidatePDFReportsPageCount(t *testing.T) {
	router, manager := setupRouter(t, nil)
	manager.UsePageCounter(func(path string) (int, error) {
		return 3, nil
	})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "drawing.pdf")
	_, _ = part.Write([]byte("%PDF"))
	_ = writer.Close()
	payload := body.Bytes()

	req := httptest.NewRequest(http.MethodPost, "/validate-pdf", bytes.NewReader(payload))
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp pdfValidationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Valid || resp.PageCount == nil || *resp.PageCount != 3 {
		t.Fatalf("expected valid with 3 pages, got %+v", resp)
	}

	manager.UsePageCounter(func(path string) (int, error) {
		return 0, errors.New("broken xref")
	})
	req = httptest.NewRequest(http.MethodPost, "/validate-pdf", bytes.NewReader(payload))
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var bad pdfValidationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &bad); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if bad.Valid || bad.Error == "" {
		t.Fatalf("expected invalid verdict for broken pdf, got %+v", bad)
	}
}
