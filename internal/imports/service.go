package imports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/metrics"
	"github.com/loomline/designvault/pkg/pagination"
)

// Service drives catalog imports. Jobs are held by the instance that loaded
// the file; the import_jobs table only mirrors their progress.
type Service interface {
	Load(ctx context.Context, input LoadInput) (*Snapshot, error)
	ProcessNext(ctx context.Context, jobID uuid.UUID) (*AdvanceResult, error)
	Get(ctx context.Context, jobID uuid.UUID) (*Snapshot, error)
	Discard(ctx context.Context, jobID uuid.UUID) error
	Truncate(ctx context.Context, confirm bool) error
	History(ctx context.Context, params HistoryParams) (*HistoryResult, error)
}

// LoadInput carries one uploaded sheet.
type LoadInput struct {
	ActorID  uuid.UUID
	FileName string
	Body     io.Reader
}

// AdvanceResult pairs the processed chunk with the job state after it.
type AdvanceResult struct {
	Chunk *ChunkReport `json:"chunk,omitempty"`
	Job   Snapshot     `json:"job"`
}

// HistoryParams pages through audit rows.
type HistoryParams struct {
	Limit  int
	Cursor string
}

// HistoryItem is one audit row as returned to callers.
type HistoryItem struct {
	ID          uuid.UUID          `json:"id"`
	ActorID     *uuid.UUID         `json:"actor_id,omitempty"`
	FileName    string             `json:"file_name"`
	Status      enums.ImportStatus `json:"status"`
	TotalRows   int                `json:"total_rows"`
	TotalChunks int                `json:"total_chunks"`
	Cursor      int                `json:"cursor"`
	Progress    int                `json:"progress"`
	Counters
	LastError *string   `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryResult wraps audit rows and the cursor for the next page.
type HistoryResult struct {
	Items  []HistoryItem `json:"items"`
	Cursor string        `json:"cursor"`
}

// ServiceParams configure the import service.
type ServiceParams struct {
	Repo      Repository
	Logger    *logger.Logger
	Metrics   *metrics.ImportMetrics
	ChunkSize int
	JobTTL    time.Duration
}

type jobEntry struct {
	job     *Job
	actorID uuid.UUID
}

type service struct {
	repo      Repository
	logg      *logger.Logger
	metrics   *metrics.ImportMetrics
	chunkSize int
	jobTTL    time.Duration

	mu   sync.Mutex
	jobs map[uuid.UUID]*jobEntry
}

// NewService wires import dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "imports repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	chunkSize := params.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &service{
		repo:      params.Repo,
		logg:      params.Logger,
		metrics:   params.Metrics,
		chunkSize: chunkSize,
		jobTTL:    params.JobTTL,
		jobs:      map[uuid.UUID]*jobEntry{},
	}, nil
}

func (s *service) Load(ctx context.Context, input LoadInput) (*Snapshot, error) {
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv file is required")
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "error reading CSV file")
	}

	header, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if missing := MissingColumns(header); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing columns: "+strings.Join(missing, ", ")).
			WithDetails(map[string]any{"missing_columns": missing})
	}

	rows, err := ParseRows(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.FileName)
	if name == "" {
		name = "upload.csv"
	}
	job := NewJob(name, rows, s.chunkSize)
	s.register(ctx, job, input.ActorID)

	snap := job.Snapshot()
	ctx = s.logg.WithJobID(ctx, snap.ID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"file_name":    snap.FileName,
		"total_rows":   snap.TotalRows,
		"total_chunks": snap.TotalChunks,
	})
	s.logg.Info(ctx, fmt.Sprintf("file loaded: %d rows split into %d chunks", snap.TotalRows, snap.TotalChunks))
	s.audit(ctx, snap, input.ActorID, "")
	return &snap, nil
}

func (s *service) ProcessNext(ctx context.Context, jobID uuid.UUID) (*AdvanceResult, error) {
	entry, err := s.lookup(jobID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithJobID(ctx, jobID.String())

	report, err := entry.job.ProcessNext(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	snap := entry.job.Snapshot()
	if report == nil {
		return &AdvanceResult{Job: snap}, nil
	}

	s.metrics.ObserveChunk(report.Counted.Processed, report.Counted.Successful, report.Counted.Failed, report.Persisted, report.Duration)
	for _, rejected := range report.Rejected {
		rowCtx := s.logg.WithFields(ctx, map[string]any{
			"row":       rejected.Row,
			"design_no": rejected.DesignNo,
			"missing":   rejected.Missing,
		})
		s.logg.Warn(rowCtx, "import row rejected")
	}

	chunkCtx := s.logg.WithFields(ctx, map[string]any{
		"chunk":      report.Index + 1,
		"rows":       report.Rows,
		"accepted":   report.Accepted,
		"processed":  snap.Processed,
		"successful": snap.Successful,
		"failed":     snap.Failed,
		"progress":   snap.Progress,
	})
	if report.Persisted {
		s.logg.Info(chunkCtx, report.Message)
	} else {
		s.logg.Error(chunkCtx, report.Message, fmt.Errorf("upsert documents: %s", report.StoreError))
	}

	s.audit(ctx, snap, entry.actorID, report.StoreError)
	return &AdvanceResult{Chunk: report, Job: snap}, nil
}

func (s *service) Get(ctx context.Context, jobID uuid.UUID) (*Snapshot, error) {
	entry, err := s.lookup(jobID)
	if err != nil {
		return nil, err
	}
	snap := entry.job.Snapshot()
	return &snap, nil
}

func (s *service) Discard(ctx context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	entry, ok := s.jobs[jobID]
	if ok {
		delete(s.jobs, jobID)
	}
	s.mu.Unlock()
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "import job not found")
	}
	entry.job.discard()
	s.audit(s.logg.WithJobID(ctx, jobID.String()), entry.job.Snapshot(), entry.actorID, "")
	return nil
}

func (s *service) Truncate(ctx context.Context, confirm bool) error {
	if !confirm {
		return pkgerrors.New(pkgerrors.CodeValidation, "truncating documents requires confirmation")
	}
	s.mu.Lock()
	for _, entry := range s.jobs {
		if entry.job.InFlight() {
			s.mu.Unlock()
			return pkgerrors.New(pkgerrors.CodeStateConflict, "an import chunk is in flight")
		}
	}
	s.mu.Unlock()

	if err := s.repo.Truncate(ctx); err != nil {
		s.logg.Error(ctx, "failed to clear documents table", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to clear documents table")
	}
	s.logg.Info(ctx, "documents table cleared")
	return nil
}

func (s *service) History(ctx context.Context, params HistoryParams) (*HistoryResult, error) {
	query := listJobsParams{Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.ListJobs(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list import jobs")
	}
	result := &HistoryResult{Items: make([]HistoryItem, 0, len(rows))}
	for _, row := range rows {
		result.Items = append(result.Items, historyItem(row))
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func historyItem(row models.ImportJob) HistoryItem {
	return HistoryItem{
		ID:          row.ID,
		ActorID:     row.ActorID,
		FileName:    row.FileName,
		Status:      row.Status,
		TotalRows:   row.TotalRows,
		TotalChunks: row.TotalChunks,
		Cursor:      row.Cursor,
		Progress:    row.Progress,
		Counters: Counters{
			Processed:  row.Processed,
			Successful: row.Successful,
			Failed:     row.Failed,
		},
		LastError: row.LastError,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// register stores job, replacing any earlier job of the same actor, and drops
// idle jobs past their TTL.
func (s *service) register(ctx context.Context, job *Job, actorID uuid.UUID) {
	var replaced []*jobEntry
	s.mu.Lock()
	now := time.Now().UTC()
	for id, entry := range s.jobs {
		stale := s.jobTTL > 0 && now.Sub(entry.job.Snapshot().UpdatedAt) > s.jobTTL
		sameActor := actorID != uuid.Nil && entry.actorID == actorID
		if (stale || sameActor) && !entry.job.InFlight() {
			delete(s.jobs, id)
			replaced = append(replaced, entry)
		}
	}
	s.jobs[job.ID()] = &jobEntry{job: job, actorID: actorID}
	s.mu.Unlock()

	for _, entry := range replaced {
		entry.job.discard()
		s.audit(ctx, entry.job.Snapshot(), entry.actorID, "")
	}
}

func (s *service) lookup(jobID uuid.UUID) (*jobEntry, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "import job id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[jobID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "import job not found")
	}
	return entry, nil
}

func (s *service) audit(ctx context.Context, snap Snapshot, actorID uuid.UUID, lastError string) {
	if err := s.repo.SaveJob(ctx, snap.auditRecord(actorID, lastError)); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("import audit write failed: %v", err))
	}
}
