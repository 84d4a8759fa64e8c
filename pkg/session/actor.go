package session

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/tablepos/pkg/cart"
	"github.com/example/tablepos/pkg/errs"
	"github.com/example/tablepos/pkg/models"
	"github.com/example/tablepos/pkg/repository"
	"go.uber.org/zap"
)

// OrderCreator submits a checked-out cart.
type OrderCreator interface {
	Create(ctx context.Context, req repository.CreateOrderRequest, staff *repository.StaffIdentity) (models.Order, error)
}

// CartActor owns the cart of one session. Messages are handled one at a time,
// so cart mutations and checkout never interleave within a session.
type CartActor struct {
	sessionID string
	catalog   cart.Catalog
	orders    OrderCreator
	timeout   time.Duration
	idle      time.Duration
	onIdle    func(sessionID string, pid *actor.PID)
	logger    *zap.Logger

	cart *cart.Cart
}

func (a *CartActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.cart = cart.New(a.catalog)
		if a.idle > 0 {
			ctx.SetReceiveTimeout(a.idle)
		}
		a.logger.Debug("Cart actor started")

	case *actor.ReceiveTimeout:
		a.logger.Info("Cart session idle, stopping", zap.Int("lines", a.cart.Len()))
		if a.onIdle != nil {
			a.onIdle(a.sessionID, ctx.Self())
		}
		ctx.Stop(ctx.Self())

	case *actor.Stopped:
		a.logger.Debug("Cart actor stopped")

	case *AddItem:
		product, ok := a.catalog.Product(msg.ProductID)
		if !ok {
			a.respond(ctx, nil, errs.E(errs.KindNotFound, "add to cart",
				fmt.Errorf("%w: product %s", errs.ErrNotFound, msg.ProductID)))
			return
		}
		a.respond(ctx, nil, a.cart.Add(product, msg.Quantity))

	case *UpdateQuantity:
		a.respond(ctx, nil, a.cart.Update(msg.ProductID, msg.Quantity))

	case *SetNote:
		a.cart.SetNote(msg.ProductID, msg.Note)
		a.respond(ctx, nil, nil)

	case *RemoveItem:
		a.cart.Remove(msg.ProductID)
		a.respond(ctx, nil, nil)

	case *ClearCart:
		a.cart.Clear()
		a.respond(ctx, nil, nil)

	case *GetCart:
		a.respond(ctx, nil, nil)

	case *Checkout:
		a.checkout(ctx, msg)
	}
}

func (a *CartActor) checkout(ctx actor.Context, msg *Checkout) {
	req := repository.CreateOrderRequest{
		TableNumber:   msg.TableNumber,
		TotalAmount:   a.cart.Total(),
		PaymentMethod: msg.PaymentMethod,
		Notes:         msg.Notes,
		GuestName:     msg.GuestName,
		GuestPhone:    msg.GuestPhone,
		Items:         a.cart.Items(),
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	order, err := a.orders.Create(reqCtx, req, msg.Staff)
	if err != nil {
		a.logger.Warn("Checkout failed", zap.Error(err))
		a.respond(ctx, nil, err)
		return
	}

	a.cart.Clear()
	a.logger.Info("Checkout completed", zap.String("order_id", order.ID))
	a.respond(ctx, &order, nil)
}

func (a *CartActor) respond(ctx actor.Context, order *models.Order, err error) {
	ctx.Respond(&Reply{
		Cart: Snapshot{
			SessionID: a.sessionID,
			Lines:     a.cart.Lines(),
			Total:     a.cart.Total(),
			ItemCount: a.cart.ItemCount(),
		},
		Order: order,
		Err:   err,
	})
}
