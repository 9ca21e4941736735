package imports

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
)

// DefaultChunkSize is the number of rows handled by one ProcessNext call.
const DefaultChunkSize = 2000

// Store persists cleaned documents for a job.
type Store interface {
	UpsertDocuments(ctx context.Context, docs []models.Document) error
	Truncate(ctx context.Context) error
}

// Counters accumulate row outcomes across processed chunks.
type Counters struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// ChunkReport describes the outcome of one ProcessNext call. Counted is what
// the chunk added to the job counters.
type ChunkReport struct {
	Index      int           `json:"index"`
	Rows       int           `json:"rows"`
	Accepted   int           `json:"accepted"`
	Rejected   []RowError    `json:"rejected,omitempty"`
	Persisted  bool          `json:"persisted"`
	StoreError string        `json:"store_error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	Message    string        `json:"message"`
	Counted    Counters      `json:"counted"`
}

// Snapshot is a point-in-time copy of a job's state.
type Snapshot struct {
	ID          uuid.UUID          `json:"id"`
	FileName    string             `json:"file_name"`
	Status      enums.ImportStatus `json:"status"`
	TotalRows   int                `json:"total_rows"`
	TotalChunks int                `json:"total_chunks"`
	Cursor      int                `json:"cursor"`
	Progress    int                `json:"progress"`
	InFlight    bool               `json:"in_flight"`
	Counters
	LastChunk *ChunkReport `json:"last_chunk,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Job is a resumable import over a parsed file. Chunks are advanced one at a
// time by ProcessNext; the cursor only moves forward.
type Job struct {
	mu        sync.Mutex
	id        uuid.UUID
	fileName  string
	totalRows int
	chunks    [][]Row
	cursor    int
	counters  Counters
	inFlight  bool
	discarded bool
	last      *ChunkReport
	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

// NewJob partitions rows into chunks of chunkSize and resets all counters.
func NewJob(fileName string, rows []Row, chunkSize int) *Job {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	now := time.Now().UTC()
	return &Job{
		id:        uuid.New(),
		fileName:  fileName,
		totalRows: len(rows),
		chunks:    Chunk(rows, chunkSize),
		createdAt: now,
		updatedAt: now,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ID returns the job identifier.
func (j *Job) ID() uuid.UUID {
	return j.id
}

// HasNext reports whether an unprocessed chunk remains.
func (j *Job) HasNext() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.discarded && j.cursor < len(j.chunks)
}

// InFlight reports whether a chunk is being processed right now.
func (j *Job) InFlight() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inFlight
}

// ProcessNext validates, folds and persists the chunk under the cursor, then
// advances the cursor whatever the store outcome. It returns a nil report when
// no chunk remains. A call made while another is running fails with
// STATE_CONFLICT. Once the store call starts it is not cancelled by ctx.
func (j *Job) ProcessNext(ctx context.Context, store Store) (*ChunkReport, error) {
	j.mu.Lock()
	if j.inFlight {
		j.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a chunk is already being processed")
	}
	if j.discarded || j.cursor >= len(j.chunks) {
		j.mu.Unlock()
		return nil, nil
	}
	if store == nil {
		j.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "import store required")
	}
	index := j.cursor
	chunk := j.chunks[index]
	j.inFlight = true
	j.mu.Unlock()

	start := time.Now()
	folded := Fold(chunk)
	report := ChunkReport{
		Index:     index,
		Rows:      len(chunk),
		Accepted:  len(folded.Documents),
		Rejected:  folded.Rejected,
		Persisted: true,
	}

	if len(folded.Documents) > 0 {
		if err := store.UpsertDocuments(context.WithoutCancel(ctx), folded.Documents); err != nil {
			report.Persisted = false
			report.StoreError = err.Error()
		}
	}
	report.Duration = time.Since(start)

	j.mu.Lock()
	defer j.mu.Unlock()
	before := j.counters
	j.counters.Processed += len(chunk)
	if report.Persisted {
		j.counters.Successful += len(folded.Documents)
		j.counters.Failed += len(folded.Rejected)
		report.Message = fmt.Sprintf("Chunk %d imported successfully", index+1)
	} else {
		j.counters.Failed += len(chunk)
		report.Message = fmt.Sprintf("Failed to import chunk %d", index+1)
	}
	report.Counted = Counters{
		Processed:  j.counters.Processed - before.Processed,
		Successful: j.counters.Successful - before.Successful,
		Failed:     j.counters.Failed - before.Failed,
	}
	j.cursor++
	if j.cursor >= len(j.chunks) {
		report.Message += "; all chunks processed"
	}
	j.inFlight = false
	j.updatedAt = j.now()
	j.last = &report
	return &report, nil
}

// Snapshot copies the current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := Snapshot{
		ID:          j.id,
		FileName:    j.fileName,
		Status:      j.statusLocked(),
		TotalRows:   j.totalRows,
		TotalChunks: len(j.chunks),
		Cursor:      j.cursor,
		Progress:    progress(j.cursor, len(j.chunks)),
		InFlight:    j.inFlight,
		Counters:    j.counters,
		CreatedAt:   j.createdAt,
		UpdatedAt:   j.updatedAt,
	}
	if j.last != nil {
		last := *j.last
		snap.LastChunk = &last
	}
	return snap
}

func (j *Job) discard() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.discarded = true
	j.updatedAt = j.now()
}

func (j *Job) statusLocked() enums.ImportStatus {
	switch {
	case j.discarded:
		return enums.ImportStatusDiscarded
	case j.cursor >= len(j.chunks):
		return enums.ImportStatusComplete
	case j.cursor == 0 && !j.inFlight:
		return enums.ImportStatusLoaded
	default:
		return enums.ImportStatusProcessing
	}
}

func progress(cursor, total int) int {
	if total == 0 {
		return 100
	}
	pct := int(math.Round(float64(cursor) / float64(total) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

func (s Snapshot) auditRecord(actorID uuid.UUID, lastError string) *models.ImportJob {
	record := &models.ImportJob{
		ID:          s.ID,
		FileName:    s.FileName,
		Status:      s.Status,
		TotalRows:   s.TotalRows,
		TotalChunks: s.TotalChunks,
		Cursor:      s.Cursor,
		Processed:   s.Processed,
		Successful:  s.Successful,
		Failed:      s.Failed,
		Progress:    s.Progress,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if actorID != uuid.Nil {
		id := actorID
		record.ActorID = &id
	}
	if lastError != "" {
		msg := lastError
		record.LastError = &msg
	}
	return record
}
