// Package export renders a project's backlog to downloadable artifacts. A
// small in-process worker takes export requests off a queue, materializes
// the requested formats, and stores them as blobs.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"scrumcore/internal/infra/blob"
)

// Format names a rendering of the backlog.
type Format string

// Supported artifact formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Row is one backlog item flattened for export.
type Row struct {
	ID          string    `json:"id"`
	Definition  string    `json:"definition"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	State       string    `json:"state"`
	Stakeholder string    `json:"stakeholder"`
	StoryPoints *int      `json:"story_points"`
	SprintID    string    `json:"sprint_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var csvColumns = []string{"id", "definition", "description", "status", "state", "stakeholder", "story_points", "sprint_id", "created_at", "updated_at"}

// Source produces export rows for a project's backlog.
type Source interface {
	BacklogRows(ctx context.Context, projectID string) ([]Row, error)
}

// Request asks for a project backlog export in one or more formats.
type Request struct {
	ProjectID   string
	Formats     []Format
	RequestedBy string
}

// Artifact captures one stored rendering.
type Artifact struct {
	ID          string    `json:"id"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Key         string    `json:"key"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

type task struct {
	id      string
	request Request
}

// Worker executes backlog exports asynchronously.
type Worker struct {
	source Source
	store  blob.Store
	logger *slog.Logger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker. A nil logger discards.
func NewWorker(source Source, store blob.Store, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		logger: logger,
		queue:  make(chan task, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export and returns the queued record.
func (w *Worker) Enqueue(_ context.Context, request Request) (Record, error) {
	if request.ProjectID == "" {
		return Record{}, fmt.Errorf("project id required")
	}
	formats := request.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, dup := seen[format]; dup {
			continue
		}
		if format != FormatJSON && format != FormatCSV {
			return Record{}, fmt.Errorf("unsupported export format %s", format)
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}
	now := time.Now().UTC()
	record := Record{
		ID:          uuid.NewString(),
		ProjectID:   request.ProjectID,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: request.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: record.ID, request: request}:
	default:
		w.fail(record.ID, "export queue full")
		return Record{}, fmt.Errorf("export queue full")
	}
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	w.setStatus(t.id, StatusRunning)
	rows, err := w.source.BacklogRows(w.ctx, t.request.ProjectID)
	if err != nil {
		w.fail(t.id, fmt.Sprintf("collect backlog rows: %v", err))
		return
	}
	record, ok := w.Get(t.id)
	if !ok {
		return
	}
	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, contentType, err := materialize(format, rows)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		artifact := Artifact{
			ID:          uuid.NewString(),
			Format:      format,
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			Key:         fmt.Sprintf("exports/%s/%s.%s", t.request.ProjectID, t.id, format),
			CreatedAt:   time.Now().UTC(),
		}
		if w.store != nil {
			info, err := w.store.Put(w.ctx, artifact.Key, bytes.NewReader(payload), blob.PutOptions{
				ContentType: contentType,
				Metadata:    map[string]string{"project_id": t.request.ProjectID, "rows": strconv.Itoa(len(rows))},
			})
			if err != nil {
				w.fail(t.id, fmt.Sprintf("store artifact: %v", err))
				return
			}
			artifact.URL = info.URL
		}
		artifacts = append(artifacts, artifact)
	}
	w.complete(t.id, artifacts)
	w.logger.Info("backlog export finished", "export_id", t.id, "project_id", t.request.ProjectID, "artifacts", len(artifacts))
}

func materialize(format Format, rows []Row) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(rows)
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(csvColumns); err != nil {
			return nil, "", err
		}
		for _, row := range rows {
			points := ""
			if row.StoryPoints != nil {
				points = strconv.Itoa(*row.StoryPoints)
			}
			record := []string{
				row.ID,
				row.Definition,
				row.Description,
				row.Status,
				row.State,
				row.Stakeholder,
				points,
				row.SprintID,
				row.CreatedAt.UTC().Format(time.RFC3339),
				row.UpdatedAt.UTC().Format(time.RFC3339),
			}
			if err := writer.Write(record); err != nil {
				return nil, "", err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %s", format)
	}
}

func (w *Worker) setStatus(id string, status Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = time.Now().UTC()
	}
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.logger.Warn("backlog export failed", "export_id", id, "reason", reason)
}
