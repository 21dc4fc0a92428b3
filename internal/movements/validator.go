package movements

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	pkgerrors "github.com/stocklinehq/stockledger-backend/pkg/errors"
)

// Validator checks a movement intent against its type's structural rules. It
// is pure: it never reads balances, because balance state can change between
// validation and commit. Every violated rule is reported, not just the first,
// so a caller can surface all problems at once.
type Validator struct {
	check *validator.Validate
}

// NewValidator builds the structural validator.
func NewValidator() *Validator {
	return &Validator{check: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns the normalized movement or a VALIDATION_ERROR carrying one
// detail line per violated rule.
func (v *Validator) Validate(intent Intent) (*Validated, error) {
	if intent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement intent is required")
	}

	var violations []string
	var cause error

	if err := v.check.Struct(intent); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "validating movement intent")
		}
		for _, fe := range fieldErrs {
			violations = append(violations, describeFieldError(fe))
			cause = multierr.Append(cause, fe)
		}
	}

	for _, rule := range crossFieldViolations(intent) {
		violations = append(violations, rule)
		cause = multierr.Append(cause, fmt.Errorf("%s", rule))
	}

	if len(violations) > 0 {
		return nil, pkgerrors.
			Wrap(pkgerrors.CodeValidation, cause, "movement intent failed validation").
			WithDetails(violations)
	}

	normalized := intent.normalize()
	return &normalized, nil
}

func crossFieldViolations(intent Intent) []string {
	var violations []string
	switch typed := intent.(type) {
	case TransferIntent:
		if typed.FromWarehouseID == typed.ToWarehouseID {
			violations = append(violations, "from_warehouse_id and to_warehouse_id must differ")
		}
	case AdjustmentIntent:
		if typed.Notes != "" && strings.TrimSpace(typed.Notes) == "" {
			violations = append(violations, "notes must not be blank")
		}
	}
	return violations
}

func describeFieldError(fe validator.FieldError) string {
	field := snakeCase(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed rule %q", field, fe.Tag())
	}
}

// snakeCase converts Go field names to their wire spelling, keeping initialism
// runs together (ProductID -> product_id, FromWarehouseID -> from_warehouse_id).
func snakeCase(field string) string {
	runes := []rune(field)
	var b strings.Builder
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
