package tally

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// participant: a non-blank participant identifier.
	_ = validate.RegisterValidation("participant", func(fl validator.FieldLevel) bool {
		return !types.Participant(fl.Field().String()).IsZero()
	})
}

// ValidateGroup checks a group's fields.
func ValidateGroup(g *group.Group) error {
	return structError(validate.Struct(g))
}

// ValidateEntry checks an entry against the group it is recorded in:
// struct rules, kind-specific shape, currency, membership and finally the
// balance fold itself, so malformed expenses are rejected before they reach
// the ledger.
func ValidateEntry(e *entry.Entry, g *group.Group) error {
	if err := structError(validate.Struct(e)); err != nil {
		return err
	}

	switch e.Kind {
	case entry.KindExpense:
		if len(e.Payers) == 0 {
			return ValidationError{Field: "payers", Message: "at least one payer is required"}
		}
		if len(e.Splits) == 0 {
			return ValidationError{Field: "splits", Message: "at least one split is required"}
		}
	case entry.KindSettlement:
		if e.Settler.IsZero() {
			return ValidationError{Field: "settler", Message: "is required"}
		}
		if len(e.Details) == 0 {
			return ValidationError{Field: "details", Message: "at least one detail is required"}
		}
		for _, d := range e.Details {
			if d.Participant == e.Settler {
				return ErrSelfSettlement
			}
		}
	case entry.KindSimplification:
		if len(e.Transfers) == 0 {
			return ValidationError{Field: "transfers", Message: "at least one transfer is required"}
		}
	}

	if e.Currency != g.Currency {
		return fmt.Errorf("%w: group is %s, entry is %s", ErrCurrencyMismatch, g.Currency, e.Currency)
	}
	for _, p := range e.Participants() {
		if !g.HasMember(p) {
			return fmt.Errorf("%w: %s", ErrNotMember, p)
		}
	}

	return debt.NewGraph(g.Currency).Fold(e)
}

func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return ValidationError{Field: fieldPath(fe.Namespace()), Message: describe(fe)}
}

// fieldPath turns "Entry.Payers[0].Amount" into "payers[0].amount".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	return strings.ToLower(ns)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "participant":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "len":
		return "must be " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "lowercase":
		return "must be lowercase"
	case "oneof":
		return "must be one of " + fe.Param()
	case "nefield":
		return "must differ from " + strings.ToLower(fe.Param())
	default:
		return "failed " + fe.Tag()
	}
}
