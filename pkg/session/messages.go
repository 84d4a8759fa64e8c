package session

import (
	"github.com/example/tablepos/pkg/cart"
	"github.com/example/tablepos/pkg/models"
	"github.com/example/tablepos/pkg/repository"
	"github.com/shopspring/decimal"
)

// Messages understood by CartActor.
type (
	AddItem struct {
		ProductID string
		Quantity  int
	}

	UpdateQuantity struct {
		ProductID string
		Quantity  int
	}

	SetNote struct {
		ProductID string
		Note      string
	}

	RemoveItem struct {
		ProductID string
	}

	ClearCart struct{}

	GetCart struct{}

	// Checkout submits the cart as a new order and empties it on success.
	Checkout struct {
		TableNumber   *string
		PaymentMethod *string
		Notes         *string
		GuestName     string
		GuestPhone    string
		Staff         *repository.StaffIdentity
	}
)

// Snapshot is a point-in-time copy of a session cart.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	Lines     []cart.Line     `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// Reply is the response to every cart message. Order is set only after a
// successful checkout.
type Reply struct {
	Cart  Snapshot
	Order *models.Order
	Err   error
}
