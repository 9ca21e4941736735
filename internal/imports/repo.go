package imports

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/pagination"
)

// DefaultSubBatchSize bounds how many documents go into one upsert statement.
const DefaultSubBatchSize = 500

// Repository persists catalog documents and import audit rows.
type Repository interface {
	Store
	WithTx(tx *gorm.DB) Repository
	SaveJob(ctx context.Context, job *models.ImportJob) error
	ListJobs(ctx context.Context, params listJobsParams) ([]models.ImportJob, *pagination.Cursor, error)
	DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db        *gorm.DB
	batchSize int
}

type listJobsParams struct {
	Limit  int
	Cursor *pagination.Cursor
}

// NewRepository returns an imports repository bound to the provided database.
func NewRepository(db *gorm.DB, batchSize int) Repository {
	if batchSize <= 0 {
		batchSize = DefaultSubBatchSize
	}
	return &repositoryImpl{db: db, batchSize: batchSize}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx, batchSize: r.batchSize}
}

// UpsertDocuments writes docs in sub-batches keyed on design_no, overwriting
// existing rows. All sub-batches of one call commit or roll back together.
func (r *repositoryImpl) UpsertDocuments(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	docs = lastWriteWins(docs)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(docs); start += r.batchSize {
			end := start + r.batchSize
			if end > len(docs) {
				end = len(docs)
			}
			batch := docs[start:end]
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "design_no"}},
				DoUpdates: clause.AssignmentColumns(models.DocumentUpsertColumns),
			}).Create(&batch).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Truncate removes every catalog document.
func (r *repositoryImpl) Truncate(ctx context.Context) error {
	if r.db.Dialector.Name() == "sqlite" {
		return r.db.WithContext(ctx).Exec("DELETE FROM documents").Error
	}
	return r.db.WithContext(ctx).Exec("TRUNCATE TABLE documents").Error
}

func (r *repositoryImpl) SaveJob(ctx context.Context, job *models.ImportJob) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(job).Error
}

func (r *repositoryImpl) ListJobs(ctx context.Context, params listJobsParams) ([]models.ImportJob, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.ImportJob{})
	if params.Cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var jobs []models.ImportJob
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, nil, err
	}
	if len(jobs) > normalized {
		next := jobs[normalized-1]
		jobs = jobs[:normalized]
		return jobs, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return jobs, nil, nil
}

func (r *repositoryImpl) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.ImportJob{})
	return result.RowsAffected, result.Error
}

// lastWriteWins drops earlier duplicates of a design number so one statement
// never touches the same key twice. Order of first appearance is kept.
func lastWriteWins(docs []models.Document) []models.Document {
	latest := make(map[string]int, len(docs))
	for i, doc := range docs {
		latest[doc.DesignNo] = i
	}
	if len(latest) == len(docs) {
		return docs
	}
	out := make([]models.Document, 0, len(latest))
	seen := make(map[string]bool, len(latest))
	for _, doc := range docs {
		if seen[doc.DesignNo] {
			continue
		}
		seen[doc.DesignNo] = true
		out = append(out, docs[latest[doc.DesignNo]])
	}
	return out
}
