package models

import "time"

// Category is a top-level catalog grouping. Code is the two character prefix
// shared by every design number in the category.
type Category struct {
	ID        int       `gorm:"column:id;primaryKey"`
	Code      string    `gorm:"column:code;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Subcategory groups designs inside a category.
type Subcategory struct {
	ID         int       `gorm:"column:id;primaryKey"`
	CategoryID int       `gorm:"column:category_id;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
