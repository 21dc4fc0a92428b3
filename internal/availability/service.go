package availability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/stocklinehq/stockledger-backend/internal/ledger"
	pkgerrors "github.com/stocklinehq/stockledger-backend/pkg/errors"
	"github.com/stocklinehq/stockledger-backend/pkg/logger"
	"github.com/stocklinehq/stockledger-backend/pkg/redis"
)

const defaultCacheTTL = 5 * time.Second

// cacheStore is the slice of the redis client the service needs. Availability
// numbers are advisory, so every cache failure degrades to a ledger read.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	AvailabilityKey(parts ...string) string
}

// Service answers availability reads: quantity minus reserved for one balance
// key, floored at zero. Reads are advisory snapshots; the authoritative check
// happens inside the applicator's transaction at commit time.
type Service struct {
	ledger *ledger.Repository
	cache  cacheStore
	logg   *logger.Logger
	ttl    time.Duration
}

// ServiceParams wires the availability reader. Cache is optional.
type ServiceParams struct {
	Ledger   *ledger.Repository
	Cache    cacheStore
	Logger   *logger.Logger
	CacheTTL time.Duration
}

// NewService builds the availability reader.
func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, errors.New("ledger repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = defaultCacheTTL
	}
	return &Service{
		ledger: params.Ledger,
		cache:  params.Cache,
		logg:   params.Logger,
		ttl:    params.CacheTTL,
	}, nil
}

// AvailableStock returns the units of the item currently movable out of the
// warehouse. Unknown keys read as zero.
func (s *Service) AvailableStock(ctx context.Context, warehouseID, productID uuid.UUID, variantID *uuid.UUID) (int, error) {
	key := ledger.BalanceKey{WarehouseID: warehouseID, ProductID: productID, VariantID: variantID}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, s.cacheKey(key)); err == nil {
			if value, parseErr := strconv.Atoi(cached); parseErr == nil && value >= 0 {
				return value, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logg.Warn(ctx, "availability cache read failed, falling back to ledger")
		}
	}

	available, err := s.ledger.Available(ctx, key)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorageFault, err, "reading availability")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey(key), strconv.Itoa(available), s.ttl); err != nil {
			s.logg.Warn(ctx, "availability cache write failed")
		}
	}
	return available, nil
}

// Invalidate drops the cached availability for the provided balance keys. The
// applicator calls this after every committed movement so readers converge on
// the new balance within one read instead of waiting out the TTL.
func (s *Service) Invalidate(ctx context.Context, keys ...ledger.BalanceKey) {
	if s.cache == nil || len(keys) == 0 {
		return
	}
	cacheKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		cacheKeys = append(cacheKeys, s.cacheKey(key))
	}
	if err := s.cache.Del(ctx, cacheKeys...); err != nil {
		s.logg.Warn(ctx, "availability cache invalidation failed")
	}
}

func (s *Service) cacheKey(key ledger.BalanceKey) string {
	variant := "base"
	if key.VariantID != nil {
		variant = key.VariantID.String()
	}
	return s.cache.AvailabilityKey(key.WarehouseID.String(), key.ProductID.String(), variant)
}
