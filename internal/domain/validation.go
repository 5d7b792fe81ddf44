package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxUsernameLength = 64
	MaxMemoLength     = 280
	MaxAmount         = 1_000_000_000_000
)

// Sections accounts may belong to.
var Sections = []string{"Tenor I", "Tenor II", "Baritone", "Bass", "Conductor"}

var maxAmount = decimal.NewFromInt(MaxAmount)

// ParseAmount converts a decimal wire amount to whole units. Fractional,
// non-positive and oversized amounts are rejected.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return AmountFromDecimal(d)
}

// AmountFromDecimal converts an already parsed amount to whole units.
func AmountFromDecimal(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not a whole number", ErrInvalidAmount, d)
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return 0, ErrInvalidAmount
	}
	if d.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: maximum amount is %d", ErrInvalidAmount, int64(MaxAmount))
	}
	return d.IntPart(), nil
}

// ValidateUsername validates an account display name.
func ValidateUsername(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidAccounts)
	}
	if len(name) > MaxUsernameLength {
		return fmt.Errorf("%w: username exceeds %d characters", ErrInvalidAccounts, MaxUsernameLength)
	}
	return nil
}

// ValidateMemo rejects transfer memos longer than MaxMemoLength characters.
func ValidateMemo(memo string) error {
	if utf8.RuneCountInString(memo) > MaxMemoLength {
		return fmt.Errorf("%w: memo exceeds %d characters", ErrInvalidAmount, MaxMemoLength)
	}
	return nil
}

// ValidateAccounts checks a replacement account set: ids unique and
// non-empty, the reserved SYSTEM id unused, balances non-negative.
func ValidateAccounts(accounts []*Account) error {
	seen := make(map[string]struct{}, len(accounts))
	for i, a := range accounts {
		if a == nil {
			return fmt.Errorf("%w: entry %d is null", ErrInvalidAccounts, i)
		}
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return fmt.Errorf("%w: entry %d has an empty id", ErrInvalidAccounts, i)
		}
		if id == SystemAccountID {
			return fmt.Errorf("%w: id %s is reserved", ErrInvalidAccounts, SystemAccountID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidAccounts, id)
		}
		seen[id] = struct{}{}
		if a.Beans < 0 || a.BeanCoins < 0 {
			return fmt.Errorf("%w: account %s has a negative balance", ErrInvalidAccounts, id)
		}
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// mulDiv returns floor(a*b/c) for non-negative operands without overflow.
func mulDiv(a, b, c int64) int64 {
	q, _ := decimal.NewFromInt(a).Mul(decimal.NewFromInt(b)).QuoRem(decimal.NewFromInt(c), 0)
	return q.IntPart()
}
