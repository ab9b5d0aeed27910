package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order line.
// Pending transitions once to Confirmed; there is no reverse path.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusConfirmed OrderStatus = "Confirmed"
)

// Order is one line item: a cake and a quantity owned by a user
type Order struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	UserID    uuid.UUID   `json:"user_id" db:"user_id"`
	CakeID    uuid.UUID   `json:"cake_id" db:"cake_id"`
	Quantity  int         `json:"quantity" db:"quantity"`
	Status    OrderStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// OrderLine is an order joined with its cake for display and totals
type OrderLine struct {
	Order
	CakeName  string          `json:"cake_name" db:"cake_name"`
	CakePrice decimal.Decimal `json:"cake_price" db:"cake_price"`
}

// Subtotal returns price multiplied by quantity for this line
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.CakePrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
