package movements

import (
	"github.com/google/uuid"

	"github.com/stocklinehq/stockledger-backend/pkg/enums"
)

// Intent is a proposed stock movement. Each movement type has its own variant
// carrying only that type's mandatory fields; the type tag decides which
// structural rules apply. The interface is sealed: only the variants in this
// package can normalize themselves for the applicator.
type Intent interface {
	Type() enums.MovementType
	normalize() Validated
}

// Audit carries the fields every movement intent shares. ActorID is the
// pre-authenticated actor submitting the movement; permission checks happened
// at the boundary before the engine is called.
type Audit struct {
	ActorID        uuid.UUID `validate:"required"`
	Reference      string
	IdempotencyKey string
}

// ReceiptIntent brings quantity units into a warehouse (type IN).
type ReceiptIntent struct {
	ProductID     uuid.UUID `validate:"required"`
	VariantID     *uuid.UUID
	ToWarehouseID uuid.UUID `validate:"required"`
	Quantity      int       `validate:"gt=0"`
	Notes         string
	Audit
}

func (i ReceiptIntent) Type() enums.MovementType { return enums.MovementTypeIn }

func (i ReceiptIntent) normalize() Validated {
	to := i.ToWarehouseID
	return Validated{
		Type:           enums.MovementTypeIn,
		ProductID:      i.ProductID,
		VariantID:      i.VariantID,
		Quantity:       i.Quantity,
		ToWarehouseID:  &to,
		Reference:      i.Reference,
		Notes:          i.Notes,
		IdempotencyKey: i.IdempotencyKey,
		ActorID:        i.ActorID,
	}
}

// ShipmentIntent removes quantity units from a warehouse (type OUT).
type ShipmentIntent struct {
	ProductID       uuid.UUID `validate:"required"`
	VariantID       *uuid.UUID
	FromWarehouseID uuid.UUID `validate:"required"`
	Quantity        int       `validate:"gt=0"`
	Notes           string
	Audit
}

func (i ShipmentIntent) Type() enums.MovementType { return enums.MovementTypeOut }

func (i ShipmentIntent) normalize() Validated {
	from := i.FromWarehouseID
	return Validated{
		Type:            enums.MovementTypeOut,
		ProductID:       i.ProductID,
		VariantID:       i.VariantID,
		Quantity:        i.Quantity,
		FromWarehouseID: &from,
		Reference:       i.Reference,
		Notes:           i.Notes,
		IdempotencyKey:  i.IdempotencyKey,
		ActorID:         i.ActorID,
	}
}

// TransferIntent moves quantity units between two distinct warehouses
// (type TRANSFER), conserving the total across both endpoints.
type TransferIntent struct {
	ProductID       uuid.UUID `validate:"required"`
	VariantID       *uuid.UUID
	FromWarehouseID uuid.UUID `validate:"required"`
	ToWarehouseID   uuid.UUID `validate:"required"`
	Quantity        int       `validate:"gt=0"`
	Notes           string
	Audit
}

func (i TransferIntent) Type() enums.MovementType { return enums.MovementTypeTransfer }

func (i TransferIntent) normalize() Validated {
	from := i.FromWarehouseID
	to := i.ToWarehouseID
	return Validated{
		Type:            enums.MovementTypeTransfer,
		ProductID:       i.ProductID,
		VariantID:       i.VariantID,
		Quantity:        i.Quantity,
		FromWarehouseID: &from,
		ToWarehouseID:   &to,
		Reference:       i.Reference,
		Notes:           i.Notes,
		IdempotencyKey:  i.IdempotencyKey,
		ActorID:         i.ActorID,
	}
}

// AdjustmentIntent corrects a warehouse balance by a signed quantity
// (type ADJUSTMENT). A negative quantity is a write-down. Notes are mandatory
// so every manual correction carries an explanation in the audit trail.
type AdjustmentIntent struct {
	ProductID     uuid.UUID `validate:"required"`
	VariantID     *uuid.UUID
	ToWarehouseID uuid.UUID `validate:"required"`
	Quantity      int       `validate:"required"`
	Notes         string    `validate:"required"`
	Audit
}

func (i AdjustmentIntent) Type() enums.MovementType { return enums.MovementTypeAdjustment }

func (i AdjustmentIntent) normalize() Validated {
	to := i.ToWarehouseID
	return Validated{
		Type:           enums.MovementTypeAdjustment,
		ProductID:      i.ProductID,
		VariantID:      i.VariantID,
		Quantity:       i.Quantity,
		ToWarehouseID:  &to,
		Reference:      i.Reference,
		Notes:          i.Notes,
		IdempotencyKey: i.IdempotencyKey,
		ActorID:        i.ActorID,
	}
}

// Validated is a structurally valid movement in the normalized shape the
// applicator persists.
type Validated struct {
	Type            enums.MovementType
	ProductID       uuid.UUID
	VariantID       *uuid.UUID
	Quantity        int
	FromWarehouseID *uuid.UUID
	ToWarehouseID   *uuid.UUID
	Reference       string
	Notes           string
	IdempotencyKey  string
	ActorID         uuid.UUID
}
