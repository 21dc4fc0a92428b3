package movements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockledger-backend/pkg/db/models"
	"github.com/stocklinehq/stockledger-backend/pkg/pagination"
)

// Repository persists movement records. The store is append-only: no update
// or delete is exposed, corrections arrive as new ADJUSTMENT movements.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a movement repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Append inserts one committed movement record.
func (r *Repository) Append(ctx context.Context, record *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByIdempotencyKey returns the committed movement carrying the token, or
// nil when no duplicate exists.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.StockMovement, error) {
	if key == "" {
		return nil, nil
	}
	var record models.StockMovement
	err := r.db.WithContext(ctx).First(&record, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListFilter scopes a movement history query. VariantID nil means all
// variants of the product; WarehouseID matches either endpoint of a movement.
type ListFilter struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	WarehouseID *uuid.UUID
}

// List returns the movement history for the filter, newest first, plus the
// cursor for the next page ("" when the history is exhausted).
func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.StockMovement, string, error) {
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("product_id = ?", filter.ProductID)
	if filter.VariantID != nil {
		q = q.Where("variant_id = ?", *filter.VariantID)
	}
	if filter.WarehouseID != nil {
		q = q.Where("(from_warehouse_id = ? OR to_warehouse_id = ?)", *filter.WarehouseID, *filter.WarehouseID)
	}
	if cursor != nil {
		q = q.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.NormalizeLimit(page.Limit)
	var rows []models.StockMovement
	err = q.Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(page.Limit)).
		Find(&rows).
		Error
	if err != nil {
		return nil, "", err
	}

	if len(rows) <= limit {
		return rows, "", nil
	}
	rows = rows[:limit]
	last := rows[len(rows)-1]
	next := pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	return rows, next.Encode(), nil
}
