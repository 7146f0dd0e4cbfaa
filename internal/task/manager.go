package task

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tagextract/internal/extract"
	"tagextract/internal/file"
)

// ExtractFunc matches extract.Extractor's method signature so tests can
// inject a fake pipeline without a Gemini client.
type ExtractFunc func(ctx context.Context, path string, opts extract.Options, onPage extract.PageFunc) ([][]string, error)

// Manager owns the task store and drives extraction jobs as background
// workers. Jobs run concurrently up to a semaphore-bounded limit; within
// one job, documents and pages are processed sequentially.
type Manager struct {
	mu             sync.Mutex
	store          *Store
	extract        ExtractFunc
	countPages     func(path string) (int, error)
	tempDir        string
	maxUploadBytes int64
	semaphore      chan struct{}
	workersWG      sync.WaitGroup
	baseCtx        context.Context
}

// NewManager creates a manager around the given extractor. A nil
// extractor is allowed for tests that inject one via UseExtractor.
func NewManager(extractor extract.Extractor, opts Options) *Manager {
	if opts.MaxConcurrentTasks <= 0 {
		opts.MaxConcurrentTasks = defaultMaxConcurrent
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	m := &Manager{
		store:          NewStore(),
		countPages:     extract.PageCount,
		tempDir:        opts.TempDir,
		maxUploadBytes: opts.MaxUploadBytes,
		semaphore:      make(chan struct{}, opts.MaxConcurrentTasks),
		baseCtx:        context.Background(),
	}
	if extractor != nil {
		m.extract = extractor.ExtractDocument
	}
	return m
}

// Submit validates the batch synchronously and, if it passes, registers
// a queued task and schedules the pipeline run. The returned snapshot is
// immediately pollable. Validation failures never allocate a task id.
func (m *Manager) Submit(docs []Document, model string, dpi int) (Task, error) {
	if len(docs) == 0 {
		return Task{}, ErrNoDocuments
	}
	if dpi < MinDPI || dpi > MaxDPI {
		return Task{}, NewErrDPIOutOfRange(dpi)
	}
	for _, doc := range docs {
		if !strings.EqualFold(filepath.Ext(doc.Name), ".pdf") {
			return Task{}, NewErrNotPDF(doc.Name)
		}
		if len(doc.Data) == 0 {
			return Task{}, NewErrEmptyDocument(doc.Name)
		}
		if m.maxUploadBytes > 0 && int64(len(doc.Data)) > m.maxUploadBytes {
			return Task{}, NewErrTooLarge(doc.Name, m.maxUploadBytes)
		}
	}

	now := time.Now()
	newTask := &Task{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Progress:  "Task queued for processing",
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.store.Create(newTask)
	log.Info().Str("task_id", newTask.ID).Int("documents", len(docs)).Msg("task queued")

	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		m.runExtraction(newTask.ID, docs, model, dpi)
	}()

	return *newTask, nil
}

// GetTask returns a snapshot copy by ID.
func (m *Manager) GetTask(taskID string) (Task, bool) {
	return m.store.Get(taskID)
}

// ListTasks returns snapshot copies of every task, newest first.
func (m *Manager) ListTasks() []Task {
	return m.store.List()
}

// DeleteTask removes a task snapshot from the store.
func (m *Manager) DeleteTask(taskID string) error {
	if !m.store.Delete(taskID) {
		return ErrTaskNotFound
	}
	return nil
}

// ValidatePDF checks that the document opens as a well-formed PDF and
// returns its page count. The temp copy is removed before returning.
func (m *Manager) ValidatePDF(doc Document) (int, error) {
	path, err := file.SaveTemp(m.tempDir, doc.Name, doc.Data)
	if err != nil {
		return 0, err
	}
	defer file.RemoveQuiet(path)
	return m.pageCounter()(path)
}

// IsBusy reports whether every processing slot is occupied.
func (m *Manager) IsBusy() bool {
	return len(m.semaphore) >= cap(m.semaphore)
}

// SetBaseContext sets the context threaded through every collaborator
// call. Cancelling it aborts running jobs at the next document or page
// boundary; intended for graceful shutdown, and the hook for per-task
// cancellation if it is ever needed.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// WaitAll blocks until all in-flight workers finish or ctx is done.
// Returns true if all workers finished.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// UseExtractor replaces the extraction function. Intended for test setup
// only; not safe to call with jobs in flight.
func (m *Manager) UseExtractor(fn ExtractFunc) {
	m.mu.Lock()
	m.extract = fn
	m.mu.Unlock()
}

// UsePageCounter replaces the PDF page counter used by ValidatePDF.
// Intended for test setup only.
func (m *Manager) UsePageCounter(fn func(path string) (int, error)) {
	m.mu.Lock()
	m.countPages = fn
	m.mu.Unlock()
}

func (m *Manager) baseContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.baseCtx == nil {
		return context.Background()
	}
	return m.baseCtx
}

func (m *Manager) extractFunc() ExtractFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extract
}

func (m *Manager) pageCounter() func(path string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countPages
}
