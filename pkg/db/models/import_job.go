package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loomline/designvault/pkg/enums"
)

// ImportJob is the audit snapshot of a catalog import job. The job itself
// lives in memory on the instance that loaded the file.
type ImportJob struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ActorID     *uuid.UUID         `gorm:"column:actor_id;type:uuid;index"`
	FileName    string             `gorm:"column:file_name;not null"`
	Status      enums.ImportStatus `gorm:"column:status;not null"`
	TotalRows   int                `gorm:"column:total_rows;not null;default:0"`
	TotalChunks int                `gorm:"column:total_chunks;not null;default:0"`
	Cursor      int                `gorm:"column:chunk_cursor;not null;default:0"`
	Processed   int                `gorm:"column:processed;not null;default:0"`
	Successful  int                `gorm:"column:successful;not null;default:0"`
	Failed      int                `gorm:"column:failed;not null;default:0"`
	Progress    int                `gorm:"column:progress;not null;default:0"`
	LastError   *string            `gorm:"column:last_error"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
