// Package cart keeps the client-local cart of one ordering session and guards
// every mutation against the last-fetched stock of each product.
//
// Stock checks are advisory: they compare against a catalog snapshot that may
// be stale, and nothing here reserves or decrements stock.
package cart

import (
	"fmt"

	"github.com/example/tablepos/pkg/errs"
	"github.com/example/tablepos/pkg/models"
	"github.com/shopspring/decimal"
)

// Catalog resolves a product from the last-fetched product list.
type Catalog interface {
	Product(id string) (models.Product, bool)
}

type Line struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
	Notes    string         `json:"notes"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Item is a cart line flattened for order submission.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
}

// Cart is not safe for concurrent use; each session owns its own.
type Cart struct {
	catalog Catalog
	lines   []Line
}

func New(catalog Catalog) *Cart {
	return &Cart{catalog: catalog}
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func stockError(op string, p models.Product, want int) error {
	return errs.E(errs.KindStock, op,
		fmt.Errorf("%w: %s has %d, requested %d", errs.ErrInsufficientStock, p.Name, p.Stock, want))
}

// Add puts quantity units of product into the cart, merging with an existing
// line. The cart is left unchanged if the resulting quantity would exceed
// product.Stock.
func (c *Cart) Add(product models.Product, quantity int) error {
	if quantity <= 0 {
		return errs.E(errs.KindInvalid, "add to cart", errs.ErrInvalidQuantity)
	}

	if i := c.index(product.ID); i >= 0 {
		newQuantity := c.lines[i].Quantity + quantity
		if newQuantity > product.Stock {
			return stockError("add to cart", product, newQuantity)
		}
		c.lines[i].Quantity = newQuantity
		return nil
	}

	if quantity > product.Stock {
		return stockError("add to cart", product, quantity)
	}
	c.lines = append(c.lines, Line{Product: product, Quantity: quantity})
	return nil
}

// Update sets the quantity of an existing line. A quantity of zero or less
// removes the line. Stock is re-read from the catalog, falling back to the
// product captured on the line. Unknown products are ignored.
func (c *Cart) Update(productID string, quantity int) error {
	i := c.index(productID)
	if i < 0 {
		return nil
	}
	if quantity <= 0 {
		c.removeAt(i)
		return nil
	}

	product := c.lines[i].Product
	if c.catalog != nil {
		if current, ok := c.catalog.Product(productID); ok {
			product = current
		}
	}
	if quantity > product.Stock {
		return stockError("update cart", product, quantity)
	}
	c.lines[i].Quantity = quantity
	return nil
}

// SetNote replaces the free-text note of a line.
func (c *Cart) SetNote(productID, note string) {
	if i := c.index(productID); i >= 0 {
		c.lines[i].Notes = note
	}
}

func (c *Cart) Remove(productID string) {
	if i := c.index(productID); i >= 0 {
		c.removeAt(i)
	}
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Total sums unit price times quantity using the product captured on each line.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Len() int { return len(c.lines) }

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Items() []Item {
	items := make([]Item, len(c.lines))
	for i, l := range c.lines {
		items[i] = Item{ProductID: l.Product.ID, Quantity: l.Quantity, Notes: l.Notes}
	}
	return items
}
