package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is owned by the catalog-management service; the movement engine
// only consults the active flag before accepting a movement.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SKU       string    `gorm:"column:sku;not null"`
	Name      string    `gorm:"column:name;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
