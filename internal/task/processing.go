package task

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"tagextract/internal/extract"
	"tagextract/internal/file"
	"tagextract/internal/tags"
)

// runExtraction drives one job end to end. A failing document is logged
// and skipped so the job still completes with partial results; only an
// error outside the per-document boundary fails the job. Every temp copy
// is removed on every exit path.
func (m *Manager) runExtraction(taskID string, docs []Document, model string, dpi int) {
	m.semaphore <- struct{}{}
	defer func() { <-m.semaphore }()

	var tempFiles []string
	defer func() {
		for _, path := range tempFiles {
			file.RemoveQuiet(path)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task_id", taskID).Interface("panic", r).Msg("extraction pipeline panicked")
			m.failTask(taskID, fmt.Sprintf("processing failed: %v", r))
		}
	}()

	start := time.Now()
	m.store.Update(taskID, func(t *Task) {
		t.Status = StatusProcessing
		t.Progress = "Starting document processing..."
	})

	ctx := m.baseContext()
	extractDoc := m.extractFunc()
	if extractDoc == nil {
		m.failTask(taskID, "no document extractor configured")
		return
	}

	occurrences := make([]string, 0)
	tagsByDoc := make(map[string][]string, len(docs))
	totalPages := 0

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			m.failTask(taskID, "processing aborted: "+err.Error())
			return
		}

		m.setProgress(taskID, fmt.Sprintf("Processing file %d/%d: %s", i+1, len(docs), doc.Name))

		path, err := file.SaveTemp(m.tempDir, doc.Name, doc.Data)
		if err != nil {
			log.Warn().Str("task_id", taskID).Str("document", doc.Name).Err(err).
				Msg("temp copy failed, skipping document")
			continue
		}
		tempFiles = append(tempFiles, path)

		docName := doc.Name
		pageLists, err := extractDoc(ctx, path, extract.Options{Model: model, DPI: dpi},
			func(page, total int) {
				m.setProgress(taskID, fmt.Sprintf("Processing %s - Page %d/%d", docName, page, total))
			})
		if err != nil {
			if ctx.Err() != nil {
				m.failTask(taskID, "processing aborted: "+ctx.Err().Error())
				return
			}
			log.Warn().Str("task_id", taskID).Str("document", doc.Name).Err(err).
				Msg("document extraction failed, continuing with remaining documents")
			continue
		}

		// A document that rendered to zero pages contributes nothing,
		// not an empty entry.
		if len(pageLists) == 0 {
			continue
		}

		totalPages += len(pageLists)
		docTags := make([]string, 0)
		for _, pageTags := range pageLists {
			docTags = append(docTags, pageTags...)
		}
		tagsByDoc[doc.Name] = sortedUnique(docTags)
		occurrences = append(occurrences, docTags...)
	}

	unique := sortedUnique(occurrences)
	result := m.assembleResult(unique, tagsByDoc, occurrences, totalPages, start)

	m.store.Update(taskID, func(t *Task) {
		t.Status = StatusCompleted
		t.Result = result
		t.Progress = "Processing completed successfully"
	})
	log.Info().Str("task_id", taskID).
		Int("unique_tags", len(unique)).
		Int("pages", totalPages).
		Dur("elapsed", time.Since(start)).
		Msg("extraction completed")
}

func (m *Manager) failTask(taskID, msg string) {
	m.store.Update(taskID, func(t *Task) {
		if t.Status == StatusCompleted || t.Status == StatusFailed {
			return
		}
		t.Status = StatusFailed
		t.Error = msg
		t.Progress = "Processing failed: " + msg
	})
}

func (m *Manager) setProgress(taskID, msg string) {
	m.store.Update(taskID, func(t *Task) {
		t.Progress = msg
	})
}

func (m *Manager) assembleResult(unique []string, tagsByDoc map[string][]string, occurrences []string, totalPages int, start time.Time) *Result {
	return &Result{
		TotalUniqueTags:     len(unique),
		TagsByDocument:      tagsByDoc,
		CategorizedTags:     tags.Classify(unique),
		TagFrequency:        tags.CountOccurrences(occurrences),
		ProcessingTime:      time.Since(start).Seconds(),
		TotalPagesProcessed: totalPages,
	}
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
