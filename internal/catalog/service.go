package catalog

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/pagination"
)

// Service exposes catalog browsing.
type Service interface {
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	ListSubcategories(ctx context.Context, categoryID int) ([]SubcategoryDTO, error)
	ListDesigns(ctx context.Context, params ListDesignsParams) (*DesignPage, error)
	GetDesign(ctx context.Context, designNo string) (*DesignDTO, error)
	DesignLocation(ctx context.Context, designNo string) (*Location, error)
}

// CategoryDTO is a category as returned to clients.
type CategoryDTO struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// SubcategoryDTO is a subcategory as returned to clients.
type SubcategoryDTO struct {
	ID         int    `json:"id"`
	CategoryID int    `json:"category_id"`
	Name       string `json:"name"`
}

// DesignDTO is one catalog document.
type DesignDTO struct {
	DesignNo           string    `json:"design_no"`
	ID                 int       `json:"id"`
	CategoryID         int       `json:"category_id"`
	SubcategoryID      int       `json:"subcategory_id"`
	Description        string    `json:"description"`
	Extension          string    `json:"extension"`
	FileType           string    `json:"file_type"`
	TotalArea          float64   `json:"total_area"`
	DurationMin        float64   `json:"duration_min"`
	TotalSwitches      int       `json:"total_switches"`
	Colours            int       `json:"colours"`
	Width              float64   `json:"width"`
	Height             float64   `json:"height"`
	StabilizerRequired string    `json:"stabilizer_required"`
	DesignOptions      string    `json:"design_options"`
	DesignInformation  string    `json:"design_information"`
	Confidential       string    `json:"confidential"`
	Transfer           string    `json:"transfer"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ListDesignsParams filters and pages design listings.
type ListDesignsParams struct {
	CategoryID    *int
	SubcategoryID *int
	Limit         int
	Cursor        string
}

// DesignPage is one page of designs.
type DesignPage struct {
	Items  []DesignDTO `json:"items"`
	Cursor string      `json:"cursor"`
}

// Location names where a design's assets are filed.
type Location struct {
	Code        string
	Category    string
	Subcategory string
}

type service struct {
	repo Repository
}

// NewService builds the catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategoryDTO{ID: c.ID, Code: c.Code, Name: c.Name})
	}
	return out, nil
}

func (s *service) ListSubcategories(ctx context.Context, categoryID int) ([]SubcategoryDTO, error) {
	if categoryID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
	}
	category, err := s.repo.FindCategory(ctx, categoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if category == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	subcategories, err := s.repo.ListSubcategories(ctx, categoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subcategories")
	}
	out := make([]SubcategoryDTO, 0, len(subcategories))
	for _, sc := range subcategories {
		out = append(out, SubcategoryDTO{ID: sc.ID, CategoryID: sc.CategoryID, Name: sc.Name})
	}
	return out, nil
}

func (s *service) ListDesigns(ctx context.Context, params ListDesignsParams) (*DesignPage, error) {
	after, err := pagination.ParseKeyCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	docs, next, err := s.repo.ListDesigns(ctx, listDesignsParams{
		CategoryID:    params.CategoryID,
		SubcategoryID: params.SubcategoryID,
		Limit:         params.Limit,
		After:         after,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list designs")
	}
	page := &DesignPage{Items: make([]DesignDTO, 0, len(docs)), Cursor: pagination.EncodeKeyCursor(next)}
	for i := range docs {
		page.Items = append(page.Items, toDesignDTO(&docs[i]))
	}
	return page, nil
}

func (s *service) GetDesign(ctx context.Context, designNo string) (*DesignDTO, error) {
	doc, err := s.findDesign(ctx, designNo)
	if err != nil {
		return nil, err
	}
	dto := toDesignDTO(doc)
	return &dto, nil
}

// DesignLocation resolves the category and subcategory names a design's
// assets are filed under. The code is the design number's two-character prefix.
func (s *service) DesignLocation(ctx context.Context, designNo string) (*Location, error) {
	doc, err := s.findDesign(ctx, designNo)
	if err != nil {
		return nil, err
	}
	category, err := s.repo.FindCategory(ctx, doc.CategoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if category == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found for design")
	}
	subcategory, err := s.repo.FindSubcategory(ctx, doc.SubcategoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subcategory")
	}
	if subcategory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subcategory not found for design")
	}
	return &Location{
		Code:        designCode(doc.DesignNo),
		Category:    category.Name,
		Subcategory: subcategory.Name,
	}, nil
}

func (s *service) findDesign(ctx context.Context, designNo string) (*models.Document, error) {
	designNo = strings.TrimSpace(designNo)
	if designNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "design number is required")
	}
	doc, err := s.repo.FindDesign(ctx, designNo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load design")
	}
	if doc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "design not found")
	}
	return doc, nil
}

func designCode(designNo string) string {
	runes := []rune(designNo)
	if len(runes) < 2 {
		return string(runes)
	}
	return string(runes[:2])
}

func toDesignDTO(doc *models.Document) DesignDTO {
	return DesignDTO{
		DesignNo:           doc.DesignNo,
		ID:                 doc.ID,
		CategoryID:         doc.CategoryID,
		SubcategoryID:      doc.SubcategoryID,
		Description:        doc.Description,
		Extension:          doc.Extension,
		FileType:           doc.FileType,
		TotalArea:          doc.TotalArea,
		DurationMin:        doc.DurationMin,
		TotalSwitches:      doc.TotalSwitches,
		Colours:            doc.Colours,
		Width:              doc.Width,
		Height:             doc.Height,
		StabilizerRequired: doc.StabilizerRequired,
		DesignOptions:      doc.DesignOptions,
		DesignInformation:  doc.DesignInformation,
		Confidential:       doc.Confidential,
		Transfer:           doc.Transfer,
		UpdatedAt:          doc.UpdatedAt,
	}
}
