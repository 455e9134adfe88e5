package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         string    `db:"id" json:"id"`
	MerchantID string    `db:"merchant_id" json:"merchant_id"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SubProduct is the price-bearing listing of a product (a brand/packaging variant).
type SubProduct struct {
	ID         string          `db:"id" json:"id"`
	MerchantID string          `db:"merchant_id" json:"merchant_id"`
	ProductID  string          `db:"product_id" json:"product_id"`
	Name       string          `db:"name" json:"name"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Version    int64           `db:"version" json:"version"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Size is the stock-bearing unit of a sub-product (e.g. 330ml, 1L).
type Size struct {
	ID           string `db:"id" json:"id"`
	MerchantID   string `db:"merchant_id" json:"merchant_id"`
	SubProductID string `db:"sub_product_id" json:"sub_product_id"`
	Label        string `db:"label" json:"label"`
}
