package models

import "time"

// Document is one catalog design. DesignNo is the business key every import
// upserts on; ID is the identifier carried over from the source sheet.
type Document struct {
	DesignNo           string    `gorm:"column:design_no;primaryKey"`
	ID                 int       `gorm:"column:id;not null;default:0"`
	CategoryID         int       `gorm:"column:category_id;not null;index"`
	SubcategoryID      int       `gorm:"column:subcategory_id;not null;index"`
	Description        string    `gorm:"column:description;not null;default:''"`
	Extension          string    `gorm:"column:extension;not null;default:''"`
	FileType           string    `gorm:"column:file_type;not null;default:''"`
	TotalArea          float64   `gorm:"column:total_area;not null;default:0"`
	DurationMin        float64   `gorm:"column:duration_min;not null;default:0"`
	TotalSwitches      int       `gorm:"column:total_switches;not null;default:0"`
	Colours            int       `gorm:"column:colours;not null;default:0"`
	Width              float64   `gorm:"column:width;not null;default:0"`
	Height             float64   `gorm:"column:height;not null;default:0"`
	StabilizerRequired string    `gorm:"column:stabilizer_required;not null;default:''"`
	DesignOptions      string    `gorm:"column:design_options;not null;default:''"`
	DesignInformation  string    `gorm:"column:design_information;not null;default:''"`
	Confidential       string    `gorm:"column:confidential;not null;default:''"`
	Transfer           string    `gorm:"column:transfer;not null;default:''"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// DocumentUpsertColumns are overwritten when an import hits an existing design_no.
var DocumentUpsertColumns = []string{
	"id",
	"category_id",
	"subcategory_id",
	"description",
	"extension",
	"file_type",
	"total_area",
	"duration_min",
	"total_switches",
	"colours",
	"width",
	"height",
	"stabilizer_required",
	"design_options",
	"design_information",
	"confidential",
	"transfer",
	"updated_at",
}
