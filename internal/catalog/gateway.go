package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockledger-backend/pkg/db/models"
)

// Gateway answers active-flag lookups for the catalog and warehouse resources
// the movement engine references. Product, variant, and warehouse lifecycle is
// owned elsewhere; the engine only refuses to move stock for ids that are
// unknown or retired. Unknown ids report inactive rather than a distinct
// not-found state, since the caller's corrective action is the same.
type Gateway interface {
	ProductActive(ctx context.Context, productID uuid.UUID) (bool, error)
	VariantActive(ctx context.Context, variantID uuid.UUID) (bool, error)
	WarehouseActive(ctx context.Context, warehouseID uuid.UUID) (bool, error)
}

type gormGateway struct {
	db *gorm.DB
}

// NewGateway returns a Gateway backed by the provided database.
func NewGateway(db *gorm.DB) Gateway {
	return &gormGateway{db: db}
}

func (g *gormGateway) ProductActive(ctx context.Context, productID uuid.UUID) (bool, error) {
	return g.activeFlag(ctx, &models.Product{}, productID)
}

func (g *gormGateway) VariantActive(ctx context.Context, variantID uuid.UUID) (bool, error) {
	return g.activeFlag(ctx, &models.ProductVariant{}, variantID)
}

func (g *gormGateway) WarehouseActive(ctx context.Context, warehouseID uuid.UUID) (bool, error) {
	return g.activeFlag(ctx, &models.Warehouse{}, warehouseID)
}

// activeFlag scans the flag into a bool; zero matching rows leave it false,
// which is exactly the unknown-id answer.
func (g *gormGateway) activeFlag(ctx context.Context, model any, id uuid.UUID) (bool, error) {
	var active bool
	err := g.db.WithContext(ctx).
		Model(model).
		Select("is_active").
		Where("id = ?", id).
		Scan(&active).
		Error
	if err != nil {
		return false, err
	}
	return active, nil
}
