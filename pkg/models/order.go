package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TableNumber   *string         `gorm:"type:varchar(20)" json:"table_number,omitempty"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	PaymentMethod *string         `gorm:"type:varchar(20)" json:"payment_method,omitempty"`
	Notes         *string         `gorm:"type:text" json:"notes,omitempty"`
	CashierID     *string         `gorm:"type:varchar(36);index" json:"cashier_id,omitempty"`
	UserID        *string         `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID" json:"order_items"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// NextStatuses is derived from Status whenever the order is encoded.
	NextStatuses []OrderStatus `gorm:"-" json:"next_statuses"`
}

func (Order) TableName() string {
	return "orders"
}

// MarshalJSON attaches the statuses the order may move to next, so views
// render exactly the actions the workflow allows.
func (o Order) MarshalJSON() ([]byte, error) {
	type order Order
	o.NextStatuses = o.Status.Next()
	return json.Marshal(order(o))
}

// OrderItem is one persisted line of an order. The unit price is not stored:
// Product is re-joined from the current catalog on every read.
type OrderItem struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID   string    `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID string    `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Quantity  int       `gorm:"column:qty;not null" json:"quantity"`
	Notes     *string   `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentQRIS     PaymentMethod = "qris"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentQRIS, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}
