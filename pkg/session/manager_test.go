package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/tablepos/pkg/config"
	"github.com/example/tablepos/pkg/errs"
	"github.com/example/tablepos/pkg/models"
	"github.com/example/tablepos/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mapCatalog map[string]models.Product

func (c mapCatalog) Product(id string) (models.Product, bool) {
	p, ok := c[id]
	return p, ok
}

type fakeOrders struct {
	mu   sync.Mutex
	err  error
	reqs []repository.CreateOrderRequest
}

func (f *fakeOrders) Create(_ context.Context, req repository.CreateOrderRequest, _ *repository.StaffIdentity) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Order{}, f.err
	}
	f.reqs = append(f.reqs, req)
	return models.Order{ID: "order-1", Status: models.StatusPending, TotalAmount: req.TotalAmount}, nil
}

func newManager(t *testing.T, orders OrderCreator) *Manager {
	t.Helper()
	catalog := mapCatalog{
		"p1": {ID: "p1", Name: "Nasi Goreng", Price: decimal.NewFromInt(10000), Stock: 2},
		"p2": {ID: "p2", Name: "Es Teh", Price: decimal.NewFromInt(3000), Stock: 10},
	}
	m := NewManager(config.SessionConfig{RequestTimeout: time.Second}, catalog, orders, zap.NewNop())
	t.Cleanup(m.Shutdown)
	return m
}

func TestCartPerSession(t *testing.T) {
	m := newManager(t, &fakeOrders{})

	if _, err := m.Send("a", &AddItem{ProductID: "p1", Quantity: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Send("b", &AddItem{ProductID: "p2", Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	ra, _ := m.Send("a", &GetCart{})
	rb, _ := m.Send("b", &GetCart{})
	if !ra.Cart.Total.Equal(decimal.NewFromInt(20000)) || ra.Cart.ItemCount != 2 {
		t.Fatalf("session a = %+v", ra.Cart)
	}
	if !rb.Cart.Total.Equal(decimal.NewFromInt(3000)) || rb.Cart.SessionID != "b" {
		t.Fatalf("session b = %+v", rb.Cart)
	}
	if m.Active() != 2 {
		t.Fatalf("active = %d", m.Active())
	}
}

func TestCartStockErrorKeepsCart(t *testing.T) {
	m := newManager(t, &fakeOrders{})

	if _, err := m.Send("s", &AddItem{ProductID: "p1", Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	reply, err := m.Send("s", &AddItem{ProductID: "p1", Quantity: 2})
	if !errs.Is(err, errs.KindStock) {
		t.Fatalf("err = %v, want stock", err)
	}
	if reply == nil || reply.Cart.ItemCount != 1 {
		t.Fatalf("cart changed after rejected add: %+v", reply)
	}

	if _, err := m.Send("s", &AddItem{ProductID: "nope", Quantity: 1}); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("unknown product err = %v", err)
	}
}

func TestCartMutations(t *testing.T) {
	m := newManager(t, &fakeOrders{})

	steps := []interface{}{
		&AddItem{ProductID: "p2", Quantity: 3},
		&SetNote{ProductID: "p2", Note: "less ice"},
		&UpdateQuantity{ProductID: "p2", Quantity: 5},
	}
	var reply *Reply
	for _, msg := range steps {
		var err error
		if reply, err = m.Send("s", msg); err != nil {
			t.Fatalf("%T: %v", msg, err)
		}
	}
	if len(reply.Cart.Lines) != 1 || reply.Cart.Lines[0].Quantity != 5 || reply.Cart.Lines[0].Notes != "less ice" {
		t.Fatalf("lines = %+v", reply.Cart.Lines)
	}

	reply, _ = m.Send("s", &RemoveItem{ProductID: "p2"})
	if reply.Cart.ItemCount != 0 || !reply.Cart.Total.IsZero() {
		t.Fatalf("after remove = %+v", reply.Cart)
	}
}

func TestCheckoutClearsCart(t *testing.T) {
	orders := &fakeOrders{}
	m := newManager(t, orders)

	m.Send("s", &AddItem{ProductID: "p1", Quantity: 1})
	m.Send("s", &AddItem{ProductID: "p2", Quantity: 2})

	reply, err := m.Send("s", &Checkout{GuestPhone: "08123456789", GuestName: "Budi"})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Order == nil || reply.Order.ID != "order-1" {
		t.Fatalf("order = %+v", reply.Order)
	}
	if reply.Cart.ItemCount != 0 {
		t.Fatal("cart not cleared after checkout")
	}
	if len(orders.reqs) != 1 || !orders.reqs[0].TotalAmount.Equal(decimal.NewFromInt(16000)) || len(orders.reqs[0].Items) != 2 {
		t.Fatalf("submitted = %+v", orders.reqs)
	}
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	boom := errs.Write("create order", errors.New("connection refused"))
	m := newManager(t, &fakeOrders{err: boom})

	m.Send("s", &AddItem{ProductID: "p2", Quantity: 2})
	reply, err := m.Send("s", &Checkout{GuestPhone: "08123456789", GuestName: "Budi"})
	if !errs.Is(err, errs.KindWrite) {
		t.Fatalf("err = %v", err)
	}
	if reply.Order != nil || reply.Cart.ItemCount != 2 {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestCloseDiscardsCart(t *testing.T) {
	m := newManager(t, &fakeOrders{})

	m.Send("s", &AddItem{ProductID: "p2", Quantity: 2})
	m.Close("s")
	if m.Active() != 0 {
		t.Fatal("session still active after close")
	}

	reply, err := m.Send("s", &GetCart{})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Cart.ItemCount != 0 {
		t.Fatal("closed session kept its cart")
	}
}

func TestIdleSessionStops(t *testing.T) {
	catalog := mapCatalog{"p2": {ID: "p2", Price: decimal.NewFromInt(3000), Stock: 10}}
	m := NewManager(config.SessionConfig{RequestTimeout: time.Second, IdleTimeout: 50 * time.Millisecond},
		catalog, &fakeOrders{}, zap.NewNop())
	t.Cleanup(m.Shutdown)

	m.Send("s", &AddItem{ProductID: "p2", Quantity: 1})

	deadline := time.Now().Add(2 * time.Second)
	for m.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("idle session was not stopped")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSendRestartsStoppedActor(t *testing.T) {
	m := newManager(t, &fakeOrders{})

	if _, err := m.Send("s", &AddItem{ProductID: "p2", Quantity: 3}); err != nil {
		t.Fatal(err)
	}

	// stop the actor behind the manager's back, as an idle stop racing a
	// lookup would
	m.mu.Lock()
	stale := m.sessions["s"]
	m.mu.Unlock()
	if err := m.system.Root.StopFuture(stale).Wait(); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	reply, err := m.Send("s", &GetCart{})
	if err != nil {
		t.Fatalf("Send after stop: %v", err)
	}
	if time.Since(start) >= m.timeout {
		t.Fatal("Send waited out the request timeout")
	}
	if reply.Cart.ItemCount != 0 {
		t.Fatalf("restarted cart = %+v", reply.Cart)
	}

	m.mu.Lock()
	current := m.sessions["s"]
	m.mu.Unlock()
	if current == nil || current.Id == stale.Id {
		t.Fatal("session still points at the stopped actor")
	}
}

func TestSendRequiresSession(t *testing.T) {
	m := newManager(t, &fakeOrders{})
	if _, err := m.Send("  ", &GetCart{}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v", err)
	}
}
