package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

type PaymentMethod string

const (
	PaymentSwish   PaymentMethod = "swish"
	PaymentVenmo   PaymentMethod = "venmo"
	PaymentCashApp PaymentMethod = "cashapp"
	PaymentPayPal  PaymentMethod = "paypal"
)

// Member is a family member. Ledger fields (Balance, TotalEarned) are owned
// by the store and only change through the approval transaction or an
// explicit administrative override; they are never accepted from a client
// snapshot.
type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar"`
	HasPIN bool   `json:"has_pin"`

	// PaymentHandle is method-specific: a phone number for Swish, an
	// @username for Venmo, a $cashtag for Cash App, a paypal.me handle.
	PaymentHandle string        `json:"payment_handle"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Currency      string        `json:"currency"`

	// Balance is the unpaid allowance owed, in minor currency units.
	Balance int64 `json:"balance"`
	// TotalEarned is the lifetime sum of approved rewards. Never decreases.
	TotalEarned int64 `json:"total_earned"`
	// WeeklyAllowance is a display-only weekly earnings goal.
	WeeklyAllowance *int64 `json:"weekly_allowance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
