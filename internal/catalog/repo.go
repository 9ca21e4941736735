package catalog

import (
	"context"

	"gorm.io/gorm"

	dbpkg "github.com/loomline/designvault/pkg/db"
	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/pagination"
)

// Repository reads the catalog tables.
type Repository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	FindCategory(ctx context.Context, id int) (*models.Category, error)
	ListSubcategories(ctx context.Context, categoryID int) ([]models.Subcategory, error)
	FindSubcategory(ctx context.Context, id int) (*models.Subcategory, error)
	ListDesigns(ctx context.Context, params listDesignsParams) ([]models.Document, string, error)
	FindDesign(ctx context.Context, designNo string) (*models.Document, error)
}

type listDesignsParams struct {
	CategoryID    *int
	SubcategoryID *int
	Limit         int
	After         string
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repositoryImpl) FindCategory(ctx context.Context, id int) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *repositoryImpl) ListSubcategories(ctx context.Context, categoryID int) ([]models.Subcategory, error) {
	var subcategories []models.Subcategory
	if err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("name ASC, id ASC").
		Find(&subcategories).Error; err != nil {
		return nil, err
	}
	return subcategories, nil
}

func (r *repositoryImpl) FindSubcategory(ctx context.Context, id int) (*models.Subcategory, error) {
	var subcategory models.Subcategory
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&subcategory).Error; err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &subcategory, nil
}

// ListDesigns pages through documents ordered by design number. The returned
// key is the last design number of the page when more rows follow.
func (r *repositoryImpl) ListDesigns(ctx context.Context, params listDesignsParams) ([]models.Document, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Document{})
	if params.CategoryID != nil {
		query = query.Where("category_id = ?", *params.CategoryID)
	}
	if params.SubcategoryID != nil {
		query = query.Where("subcategory_id = ?", *params.SubcategoryID)
	}
	if params.After != "" {
		query = query.Where("design_no > ?", params.After)
	}

	var docs []models.Document
	if err := query.Order("design_no ASC").Limit(pagination.LimitWithBuffer(limit)).Find(&docs).Error; err != nil {
		return nil, "", err
	}
	if len(docs) > limit {
		docs = docs[:limit]
		return docs, docs[limit-1].DesignNo, nil
	}
	return docs, "", nil
}

func (r *repositoryImpl) FindDesign(ctx context.Context, designNo string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).Where("design_no = ?", designNo).First(&doc).Error; err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}
