package gateway

import (
	"net/http"
	"strings"

	"github.com/example/tablepos/pkg/errs"
	"github.com/example/tablepos/pkg/models"
	"github.com/example/tablepos/pkg/session"
	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type checkoutRequest struct {
	TableNumber   string `json:"table_number"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
	GuestName     string `json:"guest_name"`
	GuestPhone    string `json:"guest_phone"`
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// send forwards msg to the session cart and writes the resulting cart.
func (g *Gateway) send(c *gin.Context, msg interface{}) {
	reply, err := g.deps.Carts.Send(c.GetString(sessionKey), msg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply.Cart)
}

func (g *Gateway) getCart(c *gin.Context) {
	g.send(c, &session.GetCart{})
}

func (g *Gateway) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	g.send(c, &session.AddItem{ProductID: req.ProductID, Quantity: req.Quantity})
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	g.send(c, &session.UpdateQuantity{ProductID: c.Param("product_id"), Quantity: req.Quantity})
}

func (g *Gateway) setCartNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	g.send(c, &session.SetNote{ProductID: c.Param("product_id"), Note: req.Note})
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	g.send(c, &session.RemoveItem{ProductID: c.Param("product_id")})
}

func (g *Gateway) clearCart(c *gin.Context) {
	g.send(c, &session.ClearCart{})
}

func (g *Gateway) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	payment := optional(req.PaymentMethod)
	if payment != nil && !models.PaymentMethod(*payment).Valid() {
		respondError(c, errs.E(errs.KindInvalid, "checkout", errs.ErrUnknownPaymentType))
		return
	}

	reply, err := g.deps.Carts.Send(c.GetString(sessionKey), &session.Checkout{
		TableNumber:   optional(req.TableNumber),
		PaymentMethod: payment,
		Notes:         optional(req.Notes),
		GuestName:     req.GuestName,
		GuestPhone:    req.GuestPhone,
		Staff:         staffIdentity(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": reply.Order, "cart": reply.Cart})
}
