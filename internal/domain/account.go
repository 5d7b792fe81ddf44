package domain

import (
	"fmt"
	"time"
)

// SystemAccountID is the wire form of the SYSTEM account. User accounts may not use it.
const SystemAccountID = "SYSTEM"

// Token identifies one of the two balances an account holds.
type Token string

const (
	// TokenBean is the primary unit of account.
	TokenBean Token = "BEAN"
	// TokenBeanCoin is the tradable secondary token.
	TokenBeanCoin Token = "BEANCOIN"
)

// Valid reports whether t is a known token.
func (t Token) Valid() bool {
	return t == TokenBean || t == TokenBeanCoin
}

// Account represents a ledger account holding Bean and BeanCoin balances.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Section   string    `json:"section,omitempty"`
	Beans     int64     `json:"balance"`
	BeanCoins int64     `json:"beanCoinBalance"`
	IsAdmin   bool      `json:"isAdmin,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Balance returns the balance held in token.
func (a *Account) Balance(token Token) int64 {
	if token == TokenBeanCoin {
		return a.BeanCoins
	}
	return a.Beans
}

// ValidateDebit checks if the account can be debited by amount of token.
func (a *Account) ValidateDebit(token Token, amount int64) error {
	if a.Balance(token) < amount {
		return fmt.Errorf("%w: account %s holds %d %s, needs %d",
			ErrInsufficientFunds, a.ID, a.Balance(token), token, amount)
	}
	return nil
}

// Apply adds delta to the token balance and returns the new balance.
func (a *Account) Apply(token Token, delta int64) int64 {
	if token == TokenBeanCoin {
		a.BeanCoins += delta
		return a.BeanCoins
	}
	a.Beans += delta
	return a.Beans
}

// Clone returns a copy safe to hand out of the core.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// AccountRef names either a user account or the SYSTEM account.
// SYSTEM is the mint authority and escrow vault: it is never debited
// against a balance and is excluded from conservation accounting.
type AccountRef struct {
	ID     string
	System bool
}

// System is the reference to the SYSTEM account.
var System = AccountRef{System: true}

// UserRef returns a reference to the user account id.
func UserRef(id string) AccountRef {
	return AccountRef{ID: id}
}

// ParseAccountRef maps the wire form back to a reference.
func ParseAccountRef(s string) AccountRef {
	if s == SystemAccountID {
		return System
	}
	return UserRef(s)
}

// String returns the wire form.
func (r AccountRef) String() string {
	if r.System {
		return SystemAccountID
	}
	return r.ID
}

// IsZero reports whether the reference names nothing.
func (r AccountRef) IsZero() bool {
	return !r.System && r.ID == ""
}

// MarshalText implements encoding.TextMarshaler.
func (r AccountRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *AccountRef) UnmarshalText(b []byte) error {
	*r = ParseAccountRef(string(b))
	return nil
}
