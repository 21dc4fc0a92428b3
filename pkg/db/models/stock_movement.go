package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stocklinehq/stockledger-backend/pkg/enums"
)

// StockMovement records one immutable stock-changing event. Rows are append
// only: corrections happen through new ADJUSTMENT movements, never by mutating
// history. A TRANSFER is stored as a single row carrying both endpoints, so
// conservation across the pair is structural.
type StockMovement struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Type            enums.MovementType `gorm:"column:type;type:movement_type_enum;not null"`
	ProductID       uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index:ix_stock_movements_item,priority:1"`
	VariantID       *uuid.UUID         `gorm:"column:variant_id;type:uuid;index:ix_stock_movements_item,priority:2"`
	Quantity        int                `gorm:"column:quantity;not null"`
	FromWarehouseID *uuid.UUID         `gorm:"column:from_warehouse_id;type:uuid"`
	ToWarehouseID   *uuid.UUID         `gorm:"column:to_warehouse_id;type:uuid"`
	Reference       string             `gorm:"column:reference"`
	Notes           string             `gorm:"column:notes"`
	IdempotencyKey  *string            `gorm:"column:idempotency_key;uniqueIndex:ux_stock_movements_idempotency_key"`
	CreatedBy       uuid.UUID          `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt       time.Time          `gorm:"column:created_at;index:ix_stock_movements_item,priority:3"`
}
