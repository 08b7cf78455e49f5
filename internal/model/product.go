package model

import (
	"time"

	"github.com/google/uuid"
)

// Product is the inventory-facing view of a catalog product. Category and
// image management belong to the catalog service and are not modelled here.
type Product struct {
	ID                     uuid.UUID  `json:"id" db:"id"`
	VendorID               uuid.UUID  `json:"vendorId" db:"vendor_id"`
	Name                   string     `json:"name" db:"name"`
	Price                  float64    `json:"price" db:"price"`
	DiscountPercent        int        `json:"discountPercent" db:"discount_percent"`
	Stock                  int        `json:"stock" db:"stock"`
	InitialStock           int        `json:"initialStock" db:"initial_stock"`
	LowStockThreshold      int        `json:"lowStockThreshold" db:"low_stock_threshold"`
	LowStockAlertSent      bool       `json:"-" db:"low_stock_alert_sent"`
	CriticalStockAlertSent bool       `json:"-" db:"critical_stock_alert_sent"`
	LastActivityAt         *time.Time `json:"lastActivityAt,omitempty" db:"last_activity_at"`
	CreatedAt              time.Time  `json:"createdAt" db:"created_at"`
}

// EffectiveUnitPrice returns the price with the product discount applied.
func (p *Product) EffectiveUnitPrice() float64 {
	return p.Price * (1 - float64(p.DiscountPercent)/100)
}

// BelowThreshold reports whether the given stock level is at or under the
// low-stock threshold.
func (p *Product) BelowThreshold(stock int) bool {
	return stock <= p.LowStockThreshold
}
