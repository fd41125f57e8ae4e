// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a stocked product as described by the stock collaborator.
type Item struct {
	ID       string `json:"id" db:"item_id"`
	Name     string `json:"name" db:"item_name"`
	Category string `json:"category" db:"category"`
}

// StockSnapshot is the live on-hand state of one item for one owner.
type StockSnapshot struct {
	OwnerID          string          `json:"owner_id" db:"owner_id"`
	Item             Item            `json:"item" db:"-"`
	OnHand           int             `json:"on_hand" db:"on_hand"`
	ReorderThreshold int             `json:"reorder_threshold" db:"reorder_threshold"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
	UnitCost         decimal.Decimal `json:"unit_cost" db:"unit_cost"`
}

// SalesRecord is a single ledger row. The engine never mutates it.
type SalesRecord struct {
	OwnerID  string    `json:"owner_id" db:"owner_id"`
	ItemID   string    `json:"item_id" db:"item_id"`
	Quantity float64   `json:"quantity" db:"quantity"`
	SoldAt   time.Time `json:"sold_at" db:"sold_at"`
}
