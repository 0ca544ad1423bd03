package catalog

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"aurelia-commerce/pkg/db/pagination"
	"aurelia-commerce/pkg/errutil"
)

var (
	ErrProductNotFound  = errutil.NotFound("product not found", nil)
	ErrCategoryNotFound = errutil.NotFound("category not found", nil)
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, node: p.Node}
}

// ListProducts returns listings, optionally filtered by category.
func (s *Service) ListProducts(ctx context.Context, categoryID string, pg pagination.Params) ([]*Product, *pagination.Meta, error) {
	pg.Normalize()

	query := s.db.WithContext(ctx).Model(&Product{})
	if categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, errutil.Internal("failed to count products", err)
	}

	var products []*Product
	err := query.
		Order("created_at DESC").
		Offset(pg.Offset()).
		Limit(pg.Limit).
		Find(&products).Error
	if err != nil {
		return nil, nil, errutil.Internal("failed to list products", err)
	}
	return products, pagination.NewMeta(total, pg), nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := s.db.WithContext(ctx).First(&p, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, errutil.Internal("failed to load product", err)
	}
	return &p, nil
}

type CreateProductInput struct {
	ProductCode string          `json:"product_code" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Images      []string        `json:"images"`
	PriceMin    decimal.Decimal `json:"price_min"`
	PriceMax    decimal.Decimal `json:"price_max"`
	CategoryID  string          `json:"category_id"`
	Carat       *float64        `json:"carat"`
	Clarity     *string         `json:"clarity"`
	Color       *string         `json:"color"`
	Grade       *string         `json:"grade"`
	Material    *string         `json:"material"`
}

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error) {
	if in.PriceMin.IsNegative() || in.PriceMax.LessThan(in.PriceMin) {
		return nil, errutil.ValidationFailed("price range is invalid", nil)
	}

	images := datatypesJSONFromStrings(in.Images)
	p := &Product{
		ProductID:   s.node.Generate().String(),
		ProductCode: in.ProductCode,
		Name:        in.Name,
		Slug:        slug.Make(in.Name),
		Description: in.Description,
		Images:      images,
		PriceMin:    in.PriceMin,
		PriceMax:    in.PriceMax,
		CategoryID:  in.CategoryID,
		Carat:       in.Carat,
		Clarity:     in.Clarity,
		Color:       in.Color,
		Grade:       in.Grade,
		Material:    in.Material,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("product code already exists", err)
		}
		return nil, errutil.Internal("failed to create product", err)
	}
	return p, nil
}

// ListCategories returns categories in storefront display order.
func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	err := s.db.WithContext(ctx).
		Order("display_order ASC, name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, errutil.Internal("failed to list categories", err)
	}
	return categories, nil
}

type CreateCategoryInput struct {
	Name         string `json:"name" binding:"required"`
	DisplayOrder *int   `json:"display_order"`
}

func (s *Service) CreateCategory(ctx context.Context, in CreateCategoryInput) (*Category, error) {
	cat := &Category{
		CategoryID:   s.node.Generate().String(),
		Name:         in.Name,
		Slug:         slug.Make(in.Name),
		DisplayOrder: 999,
	}
	if in.DisplayOrder != nil {
		cat.DisplayOrder = *in.DisplayOrder
	}
	if err := s.db.WithContext(ctx).Create(cat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("category already exists", err)
		}
		return nil, errutil.Internal("failed to create category", err)
	}
	return cat, nil
}

// UnitPrice implements the checkout pricer contract for the order service.
func (s *Service) UnitPrice(ctx context.Context, productID string) (string, decimal.Decimal, error) {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return "", decimal.Zero, err
	}
	return p.Name, p.UnitPrice(), nil
}

func datatypesJSONFromStrings(values []string) datatypes.JSON {
	if len(values) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}
