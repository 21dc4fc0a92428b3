package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stocklinehq/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/stocklinehq/stockledger-backend/pkg/errors"
)

// BalanceKey identifies one stock balance row. A nil VariantID addresses the
// base product.
type BalanceKey struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
}

func (k BalanceKey) variant() uuid.UUID {
	if k.VariantID == nil {
		return uuid.Nil
	}
	return *k.VariantID
}

// Less orders keys canonically (warehouse, product, variant). Every multi-key
// operation acquires rows in this order so concurrent transfers touching the
// same pair of warehouses in reverse cannot deadlock.
func (k BalanceKey) Less(other BalanceKey) bool {
	if k.WarehouseID != other.WarehouseID {
		return k.WarehouseID.String() < other.WarehouseID.String()
	}
	if k.ProductID != other.ProductID {
		return k.ProductID.String() < other.ProductID.String()
	}
	return k.variant().String() < other.variant().String()
}

// SortKeys sorts keys into canonical acquisition order.
func SortKeys(keys []BalanceKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Repository owns all reads and writes against stock_balances. Balance rows
// are mutated only through ApplyDelta inside the applicator's transaction; no
// other code path writes them.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
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

// GetBalance loads the balance row for the key, defaulting to a zero-valued
// balance when no movement has touched the key yet. The zero value is not
// persisted.
func (r *Repository) GetBalance(ctx context.Context, key BalanceKey) (*models.StockBalance, error) {
	var row models.StockBalance
	err := r.scopeKey(ctx, key).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &models.StockBalance{
				WarehouseID: key.WarehouseID,
				ProductID:   key.ProductID,
				VariantID:   key.VariantID,
			}, nil
		}
		return nil, err
	}
	return &row, nil
}

// Available returns quantity minus reserved for the key, never negative.
func (r *Repository) Available(ctx context.Context, key BalanceKey) (int, error) {
	row, err := r.GetBalance(ctx, key)
	if err != nil {
		return 0, err
	}
	return row.Available(), nil
}

// EnsureRow creates the balance row for the key if it does not exist yet.
// The existence check matters for nil variant ids: composite unique indexes
// treat NULLs as distinct, so the insert alone would not dedupe base-product
// keys. Racing writers that both pass the check are resolved by the coalesced
// key index; the loser's insert is ignored.
func (r *Repository) EnsureRow(ctx context.Context, key BalanceKey) error {
	var count int64
	if err := r.scopeKey(ctx, key).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	row := models.StockBalance{
		ID:          uuid.New(),
		WarehouseID: key.WarehouseID,
		ProductID:   key.ProductID,
		VariantID:   key.VariantID,
		UpdatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).
		Error
}

// ApplyDelta adjusts the key's quantity by delta as one guarded statement.
// Decrements carry the reserved floor in the WHERE clause, so the row is
// updated only when the result keeps quantity >= reserved_qty; a zero
// row count after EnsureRow therefore means the guard rejected the change
// and the movement lacks sufficient unreserved stock.
func (r *Repository) ApplyDelta(ctx context.Context, key BalanceKey, delta int) error {
	q := r.db.WithContext(ctx).Model(&models.StockBalance{}).
		Where("warehouse_id = ? AND product_id = ?", key.WarehouseID, key.ProductID)
	if key.VariantID == nil {
		q = q.Where("variant_id IS NULL")
	} else {
		q = q.Where("variant_id = ?", *key.VariantID)
	}
	if delta < 0 {
		q = q.Where("quantity + ? >= reserved_qty", delta)
	}

	res := q.Updates(map[string]any{
		"quantity":   gorm.Expr("quantity + ?", delta),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient unreserved stock").
			WithDetails(map[string]any{
				"warehouse_id": key.WarehouseID,
				"product_id":   key.ProductID,
				"variant_id":   key.VariantID,
				"delta":        delta,
			})
	}
	return nil
}

func (r *Repository) scopeKey(ctx context.Context, key BalanceKey) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&models.StockBalance{}).
		Where("warehouse_id = ? AND product_id = ?", key.WarehouseID, key.ProductID)
	if key.VariantID == nil {
		return q.Where("variant_id IS NULL")
	}
	return q.Where("variant_id = ?", *key.VariantID)
}
