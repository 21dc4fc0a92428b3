package models

import (
	"time"

	"github.com/google/uuid"
)

// StockBalance holds the current on-hand and reserved quantity for one
// (warehouse, product, variant) key. Rows are created lazily on the first
// movement touching the key and are never deleted; a zero balance is a valid
// terminal state. A nil VariantID means the balance tracks the base product.
//
// reserved_qty is written by an external fulfillment flow, never by this
// engine; the engine only guarantees quantity never drops below it.
//
// The uniqueIndex tag is weaker than the production schema: a composite index
// treats NULL variant ids as distinct, so under AutoMigrate it does not
// collide duplicate base-product rows. The authoritative key index is the
// coalesced expression index in the goose migration; lazy row creation does
// its own existence check so auto-migrated schemas cannot accumulate
// duplicates either.
type StockBalance struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID  `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:ux_stock_balances_key"`
	ProductID   uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_balances_key"`
	VariantID   *uuid.UUID `gorm:"column:variant_id;type:uuid;uniqueIndex:ux_stock_balances_key"`
	Quantity    int        `gorm:"column:quantity;not null;default:0"`
	ReservedQty int        `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Available returns the advisory sellable quantity for the row.
func (b StockBalance) Available() int {
	available := b.Quantity - b.ReservedQty
	if available < 0 {
		return 0
	}
	return available
}
