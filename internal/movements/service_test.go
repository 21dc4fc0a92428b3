package movements

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockledger-backend/internal/catalog"
	"github.com/stocklinehq/stockledger-backend/internal/ledger"
	"github.com/stocklinehq/stockledger-backend/pkg/config"
	"github.com/stocklinehq/stockledger-backend/pkg/db"
	"github.com/stocklinehq/stockledger-backend/pkg/db/models"
	"github.com/stocklinehq/stockledger-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockledger-backend/pkg/errors"
	"github.com/stocklinehq/stockledger-backend/pkg/logger"
	"github.com/stocklinehq/stockledger-backend/pkg/pagination"
)

type engineFixture struct {
	service     *Service
	client      *db.Client
	ledger      *ledger.Repository
	invalidator *recordingInvalidator
	productID   uuid.UUID
	variantID   uuid.UUID
	warehouseA  uuid.UUID
	warehouseB  uuid.UUID
	retiredWH   uuid.UUID
	actorID     uuid.UUID
}

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []ledger.BalanceKey
}

func (r *recordingInvalidator) Invalidate(_ context.Context, keys ...ledger.BalanceKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
}

func (r *recordingInvalidator) snapshot() []ledger.BalanceKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.BalanceKey, len(r.keys))
	copy(out, r.keys)
	return out
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client, err := db.New(context.Background(), config.DBConfig{
		DSN:          "file:engine_" + uuid.NewString() + "?mode=memory&cache=shared",
		Driver:       "sqlite",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	conn := client.DB()
	err = conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Warehouse{},
		&models.StockBalance{},
		&models.StockMovement{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fx := &engineFixture{
		client:      client,
		ledger:      ledger.NewRepository(conn),
		invalidator: &recordingInvalidator{},
		productID:   uuid.New(),
		variantID:   uuid.New(),
		warehouseA:  uuid.New(),
		warehouseB:  uuid.New(),
		retiredWH:   uuid.New(),
		actorID:     uuid.New(),
	}

	seeds := []any{
		&models.Product{ID: fx.productID, SKU: "SKU-1", Name: "Widget", IsActive: true},
		&models.ProductVariant{ID: fx.variantID, ProductID: fx.productID, SKU: "SKU-1-RED", Name: "Widget Red", IsActive: true},
		&models.Warehouse{ID: fx.warehouseA, Code: "WH-A", Name: "North", IsActive: true},
		&models.Warehouse{ID: fx.warehouseB, Code: "WH-B", Name: "South", IsActive: true},
		&models.Warehouse{ID: fx.retiredWH, Code: "WH-Z", Name: "Closed", IsActive: false},
	}
	for _, seed := range seeds {
		if err := conn.Create(seed).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	service, err := NewService(ServiceParams{
		TxRunner: client,
		Catalog:  catalog.NewGateway(conn),
		Ledger:   fx.ledger,
		Records:  NewRepository(conn),
		Logger:   logg,
		Cache:    fx.invalidator,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fx.service = service
	return fx
}

func (fx *engineFixture) balance(t *testing.T, warehouseID uuid.UUID, variantID *uuid.UUID) int {
	t.Helper()
	row, err := fx.ledger.GetBalance(context.Background(), ledger.BalanceKey{
		WarehouseID: warehouseID,
		ProductID:   fx.productID,
		VariantID:   variantID,
	})
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return row.Quantity
}

func (fx *engineFixture) movementCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := fx.client.DB().Model(&models.StockMovement{}).Count(&count).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	return count
}

func TestSubmitReceiptThenShipmentToZero(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	committed, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      10,
		Audit:         Audit{ActorID: fx.actorID, Reference: "PO-1001"},
	})
	if err != nil {
		t.Fatalf("submit receipt: %v", err)
	}
	if committed.ID == uuid.Nil || committed.CreatedAt.IsZero() {
		t.Fatalf("expected server-assigned id and timestamp, got %+v", committed)
	}
	if got := fx.balance(t, fx.warehouseA, nil); got != 10 {
		t.Fatalf("expected balance 10, got %d", got)
	}

	if _, err := fx.service.Submit(ctx, ShipmentIntent{
		ProductID:       fx.productID,
		FromWarehouseID: fx.warehouseA,
		Quantity:        10,
		Audit:           Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("submit shipment: %v", err)
	}
	if got := fx.balance(t, fx.warehouseA, nil); got != 0 {
		t.Fatalf("expected balance 0, got %d", got)
	}

	_, err = fx.service.Submit(ctx, ShipmentIntent{
		ProductID:       fx.productID,
		FromWarehouseID: fx.warehouseA,
		Quantity:        1,
		Audit:           Audit{ActorID: fx.actorID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := fx.movementCount(t); got != 2 {
		t.Fatalf("rejected movement must not be recorded, found %d rows", got)
	}
}

func TestSubmitTransferConservesTotal(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	if _, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      10,
		Audit:         Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	committed, err := fx.service.Submit(ctx, TransferIntent{
		ProductID:       fx.productID,
		FromWarehouseID: fx.warehouseA,
		ToWarehouseID:   fx.warehouseB,
		Quantity:        5,
		Audit:           Audit{ActorID: fx.actorID, Reference: "TRF-7"},
	})
	if err != nil {
		t.Fatalf("submit transfer: %v", err)
	}
	if committed.FromWarehouseID == nil || committed.ToWarehouseID == nil {
		t.Fatalf("transfer must record both endpoints in one row: %+v", committed)
	}

	balanceA := fx.balance(t, fx.warehouseA, nil)
	balanceB := fx.balance(t, fx.warehouseB, nil)
	if balanceA != 5 || balanceB != 5 {
		t.Fatalf("expected 5/5 split, got %d/%d", balanceA, balanceB)
	}
	if balanceA+balanceB != 10 {
		t.Fatalf("transfer must conserve total, got %d", balanceA+balanceB)
	}
}

func TestSubmitTransferInsufficientLeavesBothUntouched(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	if _, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      3,
		Audit:         Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	_, err := fx.service.Submit(ctx, TransferIntent{
		ProductID:       fx.productID,
		FromWarehouseID: fx.warehouseA,
		ToWarehouseID:   fx.warehouseB,
		Quantity:        5,
		Audit:           Audit{ActorID: fx.actorID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := fx.balance(t, fx.warehouseA, nil); got != 3 {
		t.Fatalf("source must be untouched, got %d", got)
	}
	if got := fx.balance(t, fx.warehouseB, nil); got != 0 {
		t.Fatalf("destination must be untouched, got %d", got)
	}
}

func TestSubmitAdjustmentWriteDown(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	if _, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      5,
		Audit:         Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	committed, err := fx.service.Submit(ctx, AdjustmentIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      -3,
		Notes:         "cycle count recount",
		Audit:         Audit{ActorID: fx.actorID},
	})
	if err != nil {
		t.Fatalf("submit adjustment: %v", err)
	}
	if committed.Quantity != -3 || committed.Notes != "cycle count recount" {
		t.Fatalf("adjustment record lost fields: %+v", committed)
	}
	if got := fx.balance(t, fx.warehouseA, nil); got != 2 {
		t.Fatalf("expected balance 2, got %d", got)
	}

	_, err = fx.service.Submit(ctx, AdjustmentIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      -1,
		Audit:         Audit{ActorID: fx.actorID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing notes, got %v", err)
	}
}

func TestSubmitAdjustmentCannotUndersellBalance(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	if _, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      2,
		Audit:         Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	_, err := fx.service.Submit(ctx, AdjustmentIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      -5,
		Notes:         "shrinkage",
		Audit:         Audit{ActorID: fx.actorID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := fx.balance(t, fx.warehouseA, nil); got != 2 {
		t.Fatalf("failed adjustment must leave balance untouched, got %d", got)
	}
}

func TestSubmitIdempotencyKeyCollapsesDuplicates(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	intent := ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      4,
		Audit:         Audit{ActorID: fx.actorID, IdempotencyKey: "tok-" + uuid.NewString()},
	}

	first, err := fx.service.Submit(ctx, intent)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := fx.service.Submit(ctx, intent)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same committed record, got %s and %s", first.ID, second.ID)
	}
	if got := fx.balance(t, fx.warehouseA, nil); got != 4 {
		t.Fatalf("duplicate must apply once, balance %d", got)
	}
	if got := fx.movementCount(t); got != 1 {
		t.Fatalf("expected 1 movement row, got %d", got)
	}
}

func TestSubmitRejectsInactiveResources(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	_, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.retiredWH,
		Quantity:      1,
		Audit:         Audit{ActorID: fx.actorID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInactiveResource) {
		t.Fatalf("expected inactive resource for retired warehouse, got %v", err)
	}

	_, err = fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     uuid.New(),
		ToWarehouseID: fx.warehouseA,
		Quantity:      1,
		Audit:         Audit{ActorID: fx.actorID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInactiveResource) {
		t.Fatalf("expected inactive resource for unknown product, got %v", err)
	}

	if got := fx.movementCount(t); got != 0 {
		t.Fatalf("rejected movements must not be recorded, found %d", got)
	}
}

func TestSubmitVariantBalancesAreIndependent(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	if _, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      5,
		Audit:         Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("receipt base: %v", err)
	}
	if _, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		VariantID:     &fx.variantID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      7,
		Audit:         Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("receipt variant: %v", err)
	}

	if _, err := fx.service.Submit(ctx, ShipmentIntent{
		ProductID:       fx.productID,
		VariantID:       &fx.variantID,
		FromWarehouseID: fx.warehouseA,
		Quantity:        7,
		Audit:           Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("ship variant: %v", err)
	}

	if got := fx.balance(t, fx.warehouseA, nil); got != 5 {
		t.Fatalf("base balance must be untouched, got %d", got)
	}
	if got := fx.balance(t, fx.warehouseA, &fx.variantID); got != 0 {
		t.Fatalf("variant balance must be 0, got %d", got)
	}
}

func TestSubmitInvalidatesAvailabilityCache(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	if _, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      10,
		Audit:         Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if _, err := fx.service.Submit(ctx, TransferIntent{
		ProductID:       fx.productID,
		FromWarehouseID: fx.warehouseA,
		ToWarehouseID:   fx.warehouseB,
		Quantity:        2,
		Audit:           Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	touched := map[uuid.UUID]bool{}
	for _, key := range fx.invalidator.snapshot() {
		touched[key.WarehouseID] = true
	}
	if !touched[fx.warehouseA] || !touched[fx.warehouseB] {
		t.Fatalf("expected both warehouses invalidated, got %v", fx.invalidator.snapshot())
	}
}

func TestConcurrentShipmentsNeverOversell(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	const seeded = 10
	const attempts = 20

	if _, err := fx.service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      seeded,
		Audit:         Audit{ActorID: fx.actorID},
	}); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.Submit(ctx, ShipmentIntent{
				ProductID:       fx.productID,
				FromWarehouseID: fx.warehouseA,
				Quantity:        1,
				Audit:           Audit{ActorID: fx.actorID},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var committed, rejected int
	for err := range results {
		switch {
		case err == nil:
			committed++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error under contention: %v", err)
		}
	}

	if committed != seeded || rejected != attempts-seeded {
		t.Fatalf("expected %d commits and %d rejections, got %d/%d", seeded, attempts-seeded, committed, rejected)
	}
	if got := fx.balance(t, fx.warehouseA, nil); got != 0 {
		t.Fatalf("expected final balance 0, got %d", got)
	}
	if got := fx.movementCount(t); got != int64(seeded)+1 {
		t.Fatalf("expected %d movement rows, got %d", seeded+1, got)
	}
}

type fakeTxRunner struct {
	mu       sync.Mutex
	attempts int
	run      func(attempt int, fn func(tx *gorm.DB) error) error
}

func (f *fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	f.mu.Lock()
	f.attempts++
	attempt := f.attempts
	f.mu.Unlock()
	return f.run(attempt, fn)
}

func (fx *engineFixture) serviceWithTxRunner(t *testing.T, runner txRunner) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		TxRunner:         runner,
		Catalog:          catalog.NewGateway(fx.client.DB()),
		Ledger:           fx.ledger,
		Records:          NewRepository(fx.client.DB()),
		Logger:           logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		MaxApplyAttempts: 3,
		RetryBaseBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestSubmitSurfacesLockTimeoutAfterRetryBudget(t *testing.T) {
	fx := newEngineFixture(t)
	runner := &fakeTxRunner{run: func(int, func(tx *gorm.DB) error) error {
		return errors.New("database is locked")
	}}
	service := fx.serviceWithTxRunner(t, runner)

	_, err := service.Submit(context.Background(), ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      1,
		Audit:         Audit{ActorID: fx.actorID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeLockTimeout) {
		t.Fatalf("expected lock timeout after exhausted retries, got %v", err)
	}
	if runner.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", runner.attempts)
	}
	if got := fx.movementCount(t); got != 0 {
		t.Fatalf("failed submission must not persist a record, found %d", got)
	}
}

func TestSubmitDoesNotRetryPermanentFailures(t *testing.T) {
	fx := newEngineFixture(t)
	runner := &fakeTxRunner{run: func(int, func(tx *gorm.DB) error) error {
		return errors.New("syntax error")
	}}
	service := fx.serviceWithTxRunner(t, runner)

	_, err := service.Submit(context.Background(), ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      1,
		Audit:         Audit{ActorID: fx.actorID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStorageFault) {
		t.Fatalf("expected storage fault, got %v", err)
	}
	if runner.attempts != 1 {
		t.Fatalf("permanent failure must not be retried, got %d attempts", runner.attempts)
	}
}

func TestSubmitResolvesRacingIdempotencyCommit(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	token := "tok-" + uuid.NewString()
	racing := &models.StockMovement{
		ID:             uuid.New(),
		Type:           enums.MovementTypeIn,
		ProductID:      fx.productID,
		Quantity:       4,
		ToWarehouseID:  &fx.warehouseA,
		IdempotencyKey: &token,
		CreatedBy:      fx.actorID,
		CreatedAt:      time.Now().UTC(),
	}
	records := NewRepository(fx.client.DB())
	runner := &fakeTxRunner{run: func(_ int, fn func(tx *gorm.DB) error) error {
		// A competing writer commits the token between the pre-check and
		// this transaction's append, so the append inside fn trips the
		// unique index.
		if err := records.Append(ctx, racing); err != nil {
			t.Fatalf("append racing record: %v", err)
		}
		return fx.client.WithTx(ctx, fn)
	}}
	service := fx.serviceWithTxRunner(t, runner)

	committed, err := service.Submit(ctx, ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      4,
		Audit:         Audit{ActorID: fx.actorID, IdempotencyKey: token},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if committed.ID != racing.ID {
		t.Fatalf("expected the racing writer's record %s, got %s", racing.ID, committed.ID)
	}
	if runner.attempts != 1 {
		t.Fatalf("unique-violation recovery must not retry, got %d attempts", runner.attempts)
	}
	if got := fx.movementCount(t); got != 1 {
		t.Fatalf("expected 1 movement row, got %d", got)
	}
	if got := fx.balance(t, fx.warehouseA, nil); got != 0 {
		t.Fatalf("losing attempt must roll back its deltas, balance %d", got)
	}
}

func TestSubmitIdempotentReplaySurvivesRetiredResources(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	intent := ReceiptIntent{
		ProductID:     fx.productID,
		ToWarehouseID: fx.warehouseA,
		Quantity:      6,
		Audit:         Audit{ActorID: fx.actorID, IdempotencyKey: "tok-" + uuid.NewString()},
	}
	first, err := fx.service.Submit(ctx, intent)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	if err := fx.client.DB().Model(&models.Warehouse{}).
		Where("id = ?", fx.warehouseA).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("retire warehouse: %v", err)
	}

	second, err := fx.service.Submit(ctx, intent)
	if err != nil {
		t.Fatalf("replay after retirement must return the committed record, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected record %s, got %s", first.ID, second.ID)
	}

	fresh := intent
	fresh.IdempotencyKey = ""
	if _, err := fx.service.Submit(ctx, fresh); !pkgerrors.HasCode(err, pkgerrors.CodeInactiveResource) {
		t.Fatalf("fresh submission against retired warehouse must be rejected, got %v", err)
	}
}

func TestListMovementsRoundTrip(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := fx.service.Submit(ctx, ReceiptIntent{
			ProductID:     fx.productID,
			ToWarehouseID: fx.warehouseA,
			Quantity:      i + 1,
			Audit:         Audit{ActorID: fx.actorID},
		}); err != nil {
			t.Fatalf("receipt %d: %v", i, err)
		}
	}

	rows, cursor, err := fx.service.ListMovements(ctx, ListFilter{ProductID: fx.productID}, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(rows) != 3 || cursor != "" {
		t.Fatalf("expected 3 rows and no cursor, got %d rows cursor=%q", len(rows), cursor)
	}
	for _, row := range rows {
		if row.Type != enums.MovementTypeIn {
			t.Fatalf("unexpected movement type %s", row.Type)
		}
	}
}
