package imports

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
)

func setupImportsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.ImportJob{}))
	return db
}

func TestUpsertDocumentsOverwritesDesignNo(t *testing.T) {
	db := setupImportsTestDB(t)
	repo := NewRepository(db, 2)
	ctx := context.Background()

	first := []models.Document{
		{DesignNo: "A1", ID: 1, CategoryID: 1, SubcategoryID: 1, Description: "old"},
		{DesignNo: "A2", ID: 2, CategoryID: 1, SubcategoryID: 1, Description: "keep"},
		{DesignNo: "A3", ID: 3, CategoryID: 1, SubcategoryID: 1, Description: "keep"},
	}
	require.NoError(t, repo.UpsertDocuments(ctx, first))

	second := []models.Document{
		{DesignNo: "A1", ID: 10, CategoryID: 4, SubcategoryID: 5, Description: "new", Colours: 9},
	}
	require.NoError(t, repo.UpsertDocuments(ctx, second))

	var count int64
	require.NoError(t, db.Model(&models.Document{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)

	var doc models.Document
	require.NoError(t, db.First(&doc, "design_no = ?", "A1").Error)
	assert.Equal(t, "new", doc.Description)
	assert.Equal(t, 10, doc.ID)
	assert.Equal(t, 4, doc.CategoryID)
	assert.Equal(t, 9, doc.Colours)
}

func TestUpsertDocumentsDuplicateInBatchLastWins(t *testing.T) {
	db := setupImportsTestDB(t)
	repo := NewRepository(db, 500)

	docs := []models.Document{
		{DesignNo: "B1", Description: "first"},
		{DesignNo: "B2", Description: "other"},
		{DesignNo: "B1", Description: "second"},
	}
	require.NoError(t, repo.UpsertDocuments(context.Background(), docs))

	var doc models.Document
	require.NoError(t, db.First(&doc, "design_no = ?", "B1").Error)
	assert.Equal(t, "second", doc.Description)
}

func TestLastWriteWinsKeepsFirstAppearanceOrder(t *testing.T) {
	out := lastWriteWins([]models.Document{
		{DesignNo: "X", Description: "1"},
		{DesignNo: "Y", Description: "2"},
		{DesignNo: "X", Description: "3"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "X", out[0].DesignNo)
	assert.Equal(t, "3", out[0].Description)
	assert.Equal(t, "Y", out[1].DesignNo)
}

func TestTruncateEmptiesDocuments(t *testing.T) {
	db := setupImportsTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()
	require.NoError(t, repo.UpsertDocuments(ctx, []models.Document{{DesignNo: "C1"}, {DesignNo: "C2"}}))

	require.NoError(t, repo.Truncate(ctx))

	var count int64
	require.NoError(t, db.Model(&models.Document{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSaveJobUpsertsAndLists(t *testing.T) {
	db := setupImportsTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		job := &models.ImportJob{
			ID:        uuid.New(),
			FileName:  fmt.Sprintf("sheet-%d.csv", i),
			Status:    enums.ImportStatusLoaded,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.SaveJob(ctx, job))
		ids = append(ids, job.ID)
	}

	update := &models.ImportJob{
		ID:        ids[0],
		FileName:  "sheet-0.csv",
		Status:    enums.ImportStatusComplete,
		Progress:  100,
		CreatedAt: base,
		UpdatedAt: base.Add(time.Hour),
	}
	require.NoError(t, repo.SaveJob(ctx, update))

	page, next, err := repo.ListJobs(ctx, listJobsParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	rest, next, err := repo.ListJobs(ctx, listJobsParams{Limit: 2, Cursor: next})
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)
	assert.Equal(t, enums.ImportStatusComplete, rest[0].Status)
	assert.Equal(t, 100, rest[0].Progress)
}

func TestDeleteJobsBefore(t *testing.T) {
	db := setupImportsTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &models.ImportJob{ID: uuid.New(), FileName: "old.csv", Status: enums.ImportStatusComplete, CreatedAt: now.Add(-48 * time.Hour), UpdatedAt: now.Add(-48 * time.Hour)}
	fresh := &models.ImportJob{ID: uuid.New(), FileName: "fresh.csv", Status: enums.ImportStatusLoaded, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.SaveJob(ctx, old))
	require.NoError(t, repo.SaveJob(ctx, fresh))

	deleted, err := repo.DeleteJobsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var remaining []models.ImportJob
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}
