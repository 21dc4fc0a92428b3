package movements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockledger-backend/internal/catalog"
	"github.com/stocklinehq/stockledger-backend/internal/ledger"
	"github.com/stocklinehq/stockledger-backend/pkg/db"
	"github.com/stocklinehq/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/stocklinehq/stockledger-backend/pkg/errors"
	"github.com/stocklinehq/stockledger-backend/pkg/logger"
	"github.com/stocklinehq/stockledger-backend/pkg/metrics"
	"github.com/stocklinehq/stockledger-backend/pkg/pagination"
)

const (
	defaultMaxApplyAttempts = 3
	defaultRetryBaseBackoff = 25 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type availabilityInvalidator interface {
	Invalidate(ctx context.Context, keys ...ledger.BalanceKey)
}

// errIdempotentReplay signals that the atomic unit lost an idempotency-key
// race: another writer committed the same token first. The submission then
// resolves to that writer's record.
var errIdempotentReplay = errors.New("idempotency key already committed")

// Service is the movement applicator: it validates an intent, checks the
// referenced resources are active, and applies the balance deltas plus the
// movement record as one atomic unit. All stock mutations in the system flow
// through Submit.
type Service struct {
	tx          txRunner
	catalog     catalog.Gateway
	ledger      *ledger.Repository
	records     *Repository
	validator   *Validator
	metrics     *metrics.MovementMetrics
	logg        *logger.Logger
	cache       availabilityInvalidator
	maxAttempts int
	baseBackoff time.Duration
	now         func() time.Time
}

// ServiceParams wires the applicator's collaborators. Metrics and Cache are
// optional; everything else is required.
type ServiceParams struct {
	TxRunner         txRunner
	Catalog          catalog.Gateway
	Ledger           *ledger.Repository
	Records          *Repository
	Metrics          *metrics.MovementMetrics
	Logger           *logger.Logger
	Cache            availabilityInvalidator
	MaxApplyAttempts int
	RetryBaseBackoff time.Duration
}

// NewService builds the movement applicator.
func NewService(params ServiceParams) (*Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog gateway is required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository is required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("movement repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.MaxApplyAttempts <= 0 {
		params.MaxApplyAttempts = defaultMaxApplyAttempts
	}
	if params.RetryBaseBackoff <= 0 {
		params.RetryBaseBackoff = defaultRetryBaseBackoff
	}
	return &Service{
		tx:          params.TxRunner,
		catalog:     params.Catalog,
		ledger:      params.Ledger,
		records:     params.Records,
		validator:   NewValidator(),
		metrics:     params.Metrics,
		logg:        params.Logger,
		cache:       params.Cache,
		maxAttempts: params.MaxApplyAttempts,
		baseBackoff: params.RetryBaseBackoff,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit validates and applies one movement intent. On success it returns the
// committed record with its server-assigned id and timestamp. Resubmitting an
// intent with an idempotency key that already committed returns the existing
// record instead of applying twice.
func (s *Service) Submit(ctx context.Context, intent Intent) (*models.StockMovement, error) {
	validated, err := s.validator.Validate(intent)
	if err != nil {
		s.metrics.IncFailed(movementTypeLabel(intent), failureCode(err))
		return nil, err
	}

	// The idempotency lookup runs before the active checks: a retry of an
	// already-committed movement must return that record even when the
	// referenced resources were retired after the original commit.
	if existing, err := s.records.FindByIdempotencyKey(ctx, validated.IdempotencyKey); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFault, err, "looking up idempotency key")
	} else if existing != nil {
		return existing, nil
	}

	if err := s.checkActiveResources(ctx, validated); err != nil {
		s.metrics.IncFailed(validated.Type.String(), failureCode(err))
		return nil, err
	}

	started := s.now()
	committed, err := s.applyWithRetry(ctx, validated)
	if err != nil {
		s.metrics.IncFailed(validated.Type.String(), failureCode(err))
		return nil, err
	}

	s.metrics.IncApplied(validated.Type.String())
	s.metrics.ObserveApply(validated.Type.String(), s.now().Sub(started))
	if s.cache != nil {
		s.cache.Invalidate(ctx, balanceKeys(validated)...)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"movement_id": committed.ID.String(),
		"type":        committed.Type.String(),
		"product_id":  committed.ProductID.String(),
		"quantity":    committed.Quantity,
	})
	s.logg.Info(logCtx, "movement committed")
	return committed, nil
}

// ListMovements returns the paginated movement history for an item.
func (s *Service) ListMovements(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.StockMovement, string, error) {
	return s.records.List(ctx, filter, page)
}

// checkActiveResources rejects movements referencing unknown or retired
// products, variants, or warehouses.
func (s *Service) checkActiveResources(ctx context.Context, v *Validated) error {
	active, err := s.catalog.ProductActive(ctx, v.ProductID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageFault, err, "checking product")
	}
	if !active {
		return inactiveResource("product", v.ProductID)
	}

	if v.VariantID != nil {
		active, err = s.catalog.VariantActive(ctx, *v.VariantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageFault, err, "checking variant")
		}
		if !active {
			return inactiveResource("variant", *v.VariantID)
		}
	}

	for _, warehouseID := range warehouseIDs(v) {
		active, err = s.catalog.WarehouseActive(ctx, warehouseID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageFault, err, "checking warehouse")
		}
		if !active {
			return inactiveResource("warehouse", warehouseID)
		}
	}
	return nil
}

// applyWithRetry drives the atomic unit, retrying transient storage failures
// with bounded exponential backoff. Exhausted contention surfaces as
// LOCK_TIMEOUT (still retryable by the caller); any other unexpected storage
// error surfaces as STORAGE_FAULT.
func (s *Service) applyWithRetry(ctx context.Context, v *Validated) (*models.StockMovement, error) {
	var committed *models.StockMovement

	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewExponential(s.baseBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		record, applyErr := s.applyOnce(ctx, v)
		if applyErr != nil {
			if db.IsTransient(applyErr) {
				s.metrics.IncRetry()
				return retry.RetryableError(applyErr)
			}
			return applyErr
		}
		committed = record
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		if db.IsTransient(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "stock rows contended beyond retry budget")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFault, err, "applying movement")
	}
	return committed, nil
}

// applyOnce runs one attempt of the atomic unit: ensure the touched balance
// rows exist, apply the guarded deltas in canonical key order, append the
// immutable record. Everything commits or nothing does.
func (s *Service) applyOnce(ctx context.Context, v *Validated) (*models.StockMovement, error) {
	record := s.buildRecord(v)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledger.WithTx(tx)
		recordRepo := s.records.WithTx(tx)

		keys := balanceKeys(v)
		deltas := balanceDeltas(v)
		ledger.SortKeys(keys)

		for _, key := range keys {
			if err := ledgerRepo.EnsureRow(ctx, key); err != nil {
				return err
			}
		}
		for _, key := range keys {
			if err := ledgerRepo.ApplyDelta(ctx, key, deltas[key.WarehouseID]); err != nil {
				return err
			}
		}

		if err := recordRepo.Append(ctx, record); err != nil {
			if v.IdempotencyKey != "" && db.IsUniqueViolation(err, "idempotency_key") {
				return errIdempotentReplay
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errIdempotentReplay) {
			existing, findErr := s.records.FindByIdempotencyKey(ctx, v.IdempotencyKey)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFault, findErr, "resolving idempotent replay")
			}
			if existing == nil {
				return nil, pkgerrors.New(pkgerrors.CodeStorageFault, "idempotency key committed but record missing")
			}
			return existing, nil
		}
		return nil, err
	}
	return record, nil
}

func (s *Service) buildRecord(v *Validated) *models.StockMovement {
	var key *string
	if v.IdempotencyKey != "" {
		k := v.IdempotencyKey
		key = &k
	}
	return &models.StockMovement{
		ID:              uuid.New(),
		Type:            v.Type,
		ProductID:       v.ProductID,
		VariantID:       v.VariantID,
		Quantity:        v.Quantity,
		FromWarehouseID: v.FromWarehouseID,
		ToWarehouseID:   v.ToWarehouseID,
		Reference:       v.Reference,
		Notes:           v.Notes,
		IdempotencyKey:  key,
		CreatedBy:       v.ActorID,
		CreatedAt:       s.now(),
	}
}

// balanceKeys returns the balance rows a movement touches: one for
// IN/OUT/ADJUSTMENT, two for TRANSFER.
func balanceKeys(v *Validated) []ledger.BalanceKey {
	var keys []ledger.BalanceKey
	if v.FromWarehouseID != nil {
		keys = append(keys, ledger.BalanceKey{WarehouseID: *v.FromWarehouseID, ProductID: v.ProductID, VariantID: v.VariantID})
	}
	if v.ToWarehouseID != nil {
		keys = append(keys, ledger.BalanceKey{WarehouseID: *v.ToWarehouseID, ProductID: v.ProductID, VariantID: v.VariantID})
	}
	return keys
}

// balanceDeltas maps each touched warehouse to its signed quantity change.
// For TRANSFER the pair sums to zero, which is what conservation means here.
func balanceDeltas(v *Validated) map[uuid.UUID]int {
	deltas := make(map[uuid.UUID]int, 2)
	if v.FromWarehouseID != nil {
		deltas[*v.FromWarehouseID] -= v.Quantity
	}
	if v.ToWarehouseID != nil {
		deltas[*v.ToWarehouseID] += v.Quantity
	}
	return deltas
}

func warehouseIDs(v *Validated) []uuid.UUID {
	var ids []uuid.UUID
	if v.FromWarehouseID != nil {
		ids = append(ids, *v.FromWarehouseID)
	}
	if v.ToWarehouseID != nil {
		ids = append(ids, *v.ToWarehouseID)
	}
	return ids
}

func inactiveResource(kind string, id uuid.UUID) error {
	return pkgerrors.
		New(pkgerrors.CodeInactiveResource, fmt.Sprintf("%s is inactive or unknown", kind)).
		WithDetails(map[string]string{"resource": kind, "id": id.String()})
}

func movementTypeLabel(intent Intent) string {
	if intent == nil {
		return ""
	}
	return intent.Type().String()
}

func failureCode(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}
