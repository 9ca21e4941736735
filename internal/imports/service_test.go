package imports

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/metrics"
	"github.com/loomline/designvault/pkg/pagination"
)

type fakeRepository struct {
	stubStore
	saveJobFn     func(ctx context.Context, job *models.ImportJob) error
	listJobsFn    func(ctx context.Context, params listJobsParams) ([]models.ImportJob, *pagination.Cursor, error)
	deleteBefore  func(ctx context.Context, cutoff time.Time) (int64, error)
	truncateErr   error
	truncateCalls int
	saved         []models.ImportJob
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Truncate(ctx context.Context) error {
	f.truncateCalls++
	if f.truncateErr != nil {
		return f.truncateErr
	}
	return f.stubStore.Truncate(ctx)
}

func (f *fakeRepository) SaveJob(ctx context.Context, job *models.ImportJob) error {
	f.saved = append(f.saved, *job)
	if f.saveJobFn != nil {
		return f.saveJobFn(ctx, job)
	}
	return nil
}

func (f *fakeRepository) ListJobs(ctx context.Context, params listJobsParams) ([]models.ImportJob, *pagination.Cursor, error) {
	if f.listJobsFn != nil {
		return f.listJobsFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.deleteBefore != nil {
		return f.deleteBefore(ctx, cutoff)
	}
	return 0, nil
}

func newTestService(t *testing.T, repo *fakeRepository, chunkSize int) (Service, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: &buf}),
		Metrics:   metrics.NewImportMetrics(prometheus.NewRegistry()),
		ChunkSize: chunkSize,
		JobTTL:    time.Hour,
	})
	require.NoError(t, err)
	return svc, &buf
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{})})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestLoadRejectsMissingColumns(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := newTestService(t, repo, 2)

	_, err := svc.Load(context.Background(), LoadInput{
		FileName: "partial.csv",
		Body:     strings.NewReader("id,design_no\n1,A\n"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	missing, ok := details["missing_columns"].([]string)
	require.True(t, ok)
	assert.Contains(t, missing, "category_id")
	assert.NotContains(t, missing, "design_no")
	assert.Empty(t, repo.saved, "no job is recorded for a rejected file")
}

func TestLoadAndProcessToCompletion(t *testing.T) {
	repo := &fakeRepository{}
	svc, logs := newTestService(t, repo, 2)
	ctx := context.Background()

	snap, err := svc.Load(ctx, LoadInput{
		ActorID:  uuid.New(),
		FileName: "designs.csv",
		Body:     strings.NewReader(sheet(sheetRow("A1"), sheetRow("A2"), sheetRow("A3"))),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, snap.TotalRows)
	assert.Equal(t, 2, snap.TotalChunks)
	assert.Equal(t, enums.ImportStatusLoaded, snap.Status)

	first, err := svc.ProcessNext(ctx, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, first.Chunk)
	assert.Equal(t, 50, first.Job.Progress)

	second, err := svc.ProcessNext(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, second.Job.Progress)
	assert.Equal(t, enums.ImportStatusComplete, second.Job.Status)
	assert.Equal(t, 3, second.Job.Successful)

	idle, err := svc.ProcessNext(ctx, snap.ID)
	require.NoError(t, err)
	assert.Nil(t, idle.Chunk)

	require.Len(t, repo.documents, 3)
	assert.Equal(t, 1234.5, repo.documents[0].TotalArea)
	require.NotEmpty(t, repo.saved)
	assert.Equal(t, enums.ImportStatusComplete, repo.saved[len(repo.saved)-1].Status)
	assert.Contains(t, logs.String(), "Chunk 2 imported successfully")
}

func TestProcessNextLogsRejectedRows(t *testing.T) {
	repo := &fakeRepository{}
	svc, logs := newTestService(t, repo, 10)
	ctx := context.Background()

	blank := strings.Replace(sheetRow("R1"), "Rose border", "", 1)
	snap, err := svc.Load(ctx, LoadInput{FileName: "rows.csv", Body: strings.NewReader(sheet(blank, sheetRow("R2")))})
	require.NoError(t, err)

	result, err := svc.ProcessNext(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Job.Successful)
	assert.Equal(t, 1, result.Job.Failed)
	assert.Contains(t, logs.String(), "import row rejected")
	assert.Contains(t, logs.String(), `"design_no":"R1"`)
}

func TestChunkMetricsFollowJobCounters(t *testing.T) {
	repo := &fakeRepository{}
	repo.upsertFn = func(ctx context.Context, docs []models.Document) error {
		if docs[0].DesignNo == "M2" {
			return errors.New("connection reset")
		}
		return nil
	}
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
		Metrics:   metrics.NewImportMetrics(reg),
		ChunkSize: 2,
		JobTTL:    time.Hour,
	})
	require.NoError(t, err)
	ctx := context.Background()

	blank := strings.Replace(sheetRow("M1"), "Rose border", "", 1)
	snap, err := svc.Load(ctx, LoadInput{FileName: "metrics.csv", Body: strings.NewReader(sheet(blank, sheetRow("M2"), sheetRow("M3")))})
	require.NoError(t, err)

	failed, err := svc.ProcessNext(ctx, snap.ID)
	require.NoError(t, err)
	require.False(t, failed.Chunk.Persisted)
	assert.Equal(t, 1, failed.Chunk.Accepted)
	assert.Equal(t, Counters{Processed: 2, Failed: 2}, failed.Chunk.Counted, "an unsaved chunk counts no row as successful")

	done, err := svc.ProcessNext(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, Counters{Processed: 1, Successful: 1}, done.Chunk.Counted)

	for outcome, want := range map[string]float64{
		"processed":  float64(done.Job.Processed),
		"successful": float64(done.Job.Successful),
		"failed":     float64(done.Job.Failed),
	} {
		assert.Equal(t, want, importRows(t, reg, outcome), outcome)
	}
	assert.Equal(t, 1.0, importRows(t, reg, "successful"))
}

func importRows(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "import_rows_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabel(metric, "outcome", outcome) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestAuditFailureDoesNotFailImport(t *testing.T) {
	repo := &fakeRepository{
		saveJobFn: func(ctx context.Context, job *models.ImportJob) error {
			return errors.New("audit table missing")
		},
	}
	svc, logs := newTestService(t, repo, 10)

	snap, err := svc.Load(context.Background(), LoadInput{FileName: "a.csv", Body: strings.NewReader(sheet(sheetRow("Z1")))})
	require.NoError(t, err)
	_, err = svc.ProcessNext(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "import audit write failed")
}

func TestLoadReplacesPreviousJobOfActor(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := newTestService(t, repo, 10)
	ctx := context.Background()
	actor := uuid.New()

	first, err := svc.Load(ctx, LoadInput{ActorID: actor, FileName: "a.csv", Body: strings.NewReader(sheet(sheetRow("A1")))})
	require.NoError(t, err)
	other, err := svc.Load(ctx, LoadInput{ActorID: uuid.New(), FileName: "b.csv", Body: strings.NewReader(sheet(sheetRow("B1")))})
	require.NoError(t, err)
	_, err = svc.Load(ctx, LoadInput{ActorID: actor, FileName: "c.csv", Body: strings.NewReader(sheet(sheetRow("C1")))})
	require.NoError(t, err)

	_, err = svc.Get(ctx, first.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = svc.Get(ctx, other.ID)
	assert.NoError(t, err)

	var discarded bool
	for _, row := range repo.saved {
		if row.ID == first.ID && row.Status == enums.ImportStatusDiscarded {
			discarded = true
		}
	}
	assert.True(t, discarded, "replaced job is audited as discarded")
}

func TestDiscardUnknownJob(t *testing.T) {
	svc, _ := newTestService(t, &fakeRepository{}, 10)
	err := svc.Discard(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.ProcessNext(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestTruncateRequiresConfirmation(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := newTestService(t, repo, 10)

	err := svc.Truncate(context.Background(), false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, repo.truncateCalls)

	require.NoError(t, svc.Truncate(context.Background(), true))
	assert.Equal(t, 1, repo.truncateCalls)

	repo.truncateErr = errors.New("permission denied")
	err = svc.Truncate(context.Background(), true)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestTruncateBlockedWhileChunkInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	repo := &fakeRepository{}
	repo.upsertFn = func(ctx context.Context, docs []models.Document) error {
		close(entered)
		<-release
		return nil
	}
	svc, _ := newTestService(t, repo, 10)
	snap, err := svc.Load(context.Background(), LoadInput{FileName: "a.csv", Body: strings.NewReader(sheet(sheetRow("T1")))})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.ProcessNext(context.Background(), snap.ID)
		done <- err
	}()
	<-entered

	err = svc.Truncate(context.Background(), true)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	close(release)
	require.NoError(t, <-done)
	assert.Zero(t, repo.truncateCalls)
}

func TestHistoryEncodesCursor(t *testing.T) {
	next := &pagination.Cursor{CreatedAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), ID: uuid.New()}
	repo := &fakeRepository{
		listJobsFn: func(ctx context.Context, params listJobsParams) ([]models.ImportJob, *pagination.Cursor, error) {
			assert.Equal(t, 5, params.Limit)
			return []models.ImportJob{{ID: uuid.New(), FileName: "a.csv", Status: enums.ImportStatusComplete, Processed: 4}}, next, nil
		},
	}
	svc, _ := newTestService(t, repo, 10)

	result, err := svc.History(context.Background(), HistoryParams{Limit: 5})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 4, result.Items[0].Processed)
	assert.Equal(t, pagination.EncodeCursor(*next), result.Cursor)

	_, err = svc.History(context.Background(), HistoryParams{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
