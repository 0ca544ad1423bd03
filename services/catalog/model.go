package catalog

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product is one jewelry listing. Prices are a range; the checkout unit
// price is the midpoint of PriceMin and PriceMax.
type Product struct {
	ProductID   string          `json:"product_id" gorm:"column:product_id;primaryKey"`
	ProductCode string          `json:"product_code" gorm:"column:product_code;uniqueIndex;not null"`
	Name        string          `json:"name" gorm:"column:name;not null"`
	Slug        string          `json:"slug" gorm:"column:slug;index;not null"`
	Description string          `json:"description" gorm:"column:description;type:text"`
	Images      datatypes.JSON  `json:"images" gorm:"column:images"`
	PriceMin    decimal.Decimal `json:"price_min" gorm:"column:price_min;type:decimal(10,2);not null"`
	PriceMax    decimal.Decimal `json:"price_max" gorm:"column:price_max;type:decimal(10,2);not null"`
	CategoryID  string          `json:"category_id" gorm:"column:category_id;index"`

	Carat    *float64 `json:"carat" gorm:"column:carat"`
	Clarity  *string  `json:"clarity" gorm:"column:clarity;size:16"`
	Color    *string  `json:"color" gorm:"column:color;size:16"`
	Grade    *string  `json:"grade" gorm:"column:grade;size:16"`
	Material *string  `json:"material" gorm:"column:material;size:64"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Product) TableName() string { return "products" }

// UnitPrice is the midpoint of the listed price range.
func (p *Product) UnitPrice() decimal.Decimal {
	return p.PriceMin.Add(p.PriceMax).Div(decimal.NewFromInt(2))
}

// Category groups products for the storefront navigation.
type Category struct {
	CategoryID   string    `json:"category_id" gorm:"column:category_id;primaryKey"`
	Name         string    `json:"name" gorm:"column:name;uniqueIndex;not null"`
	Slug         string    `json:"slug" gorm:"column:slug;index;not null"`
	DisplayOrder int       `json:"display_order" gorm:"column:display_order;not null;default:999"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Category) TableName() string { return "categories" }
