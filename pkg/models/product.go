package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string          `gorm:"type:varchar(150);not null;index" json:"name"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	Category    string          `gorm:"type:varchar(100);not null;index" json:"category"`
	Barcode     *string         `gorm:"type:varchar(64);index" json:"barcode,omitempty"`
	Description *string         `gorm:"type:text" json:"description,omitempty"`
	ImageURL    *string         `gorm:"type:varchar(255)" json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// ProductFields carries the writable columns of a product. A nil field is
// left untouched on update.
type ProductFields struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Category    *string          `json:"category"`
	Barcode     *string          `json:"barcode"`
	Description *string          `json:"description"`
	ImageURL    *string          `json:"image_url"`
}

// Apply copies every non-nil field onto p.
func (f ProductFields) Apply(p *Product) {
	if f.Name != nil {
		p.Name = *f.Name
	}
	if f.Price != nil {
		p.Price = *f.Price
	}
	if f.Stock != nil {
		p.Stock = *f.Stock
	}
	if f.Category != nil {
		p.Category = *f.Category
	}
	if f.Barcode != nil {
		p.Barcode = f.Barcode
	}
	if f.Description != nil {
		p.Description = f.Description
	}
	if f.ImageURL != nil {
		p.ImageURL = f.ImageURL
	}
}

// Updates returns the column map for a partial update.
func (f ProductFields) Updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if f.Name != nil {
		updates["name"] = *f.Name
	}
	if f.Price != nil {
		updates["price"] = *f.Price
	}
	if f.Stock != nil {
		updates["stock"] = *f.Stock
	}
	if f.Category != nil {
		updates["category"] = *f.Category
	}
	if f.Barcode != nil {
		updates["barcode"] = *f.Barcode
	}
	if f.Description != nil {
		updates["description"] = *f.Description
	}
	if f.ImageURL != nil {
		updates["image_url"] = *f.ImageURL
	}
	return updates
}
