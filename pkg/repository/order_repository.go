package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/tablepos/pkg/cart"
	"github.com/example/tablepos/pkg/errs"
	"github.com/example/tablepos/pkg/models"
	"github.com/example/tablepos/pkg/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StaffIdentity is the authenticated staff member behind a request.
type StaffIdentity struct {
	AuthID string
	Email  string
}

type CreateOrderRequest struct {
	TableNumber   *string
	TotalAmount   decimal.Decimal
	PaymentMethod *string
	Notes         *string
	// Status is ignored; new orders always start pending.
	Status     models.OrderStatus
	GuestName  string
	GuestPhone string
	Items      []cart.Item
}

// OrderRepository persists orders and keeps the last fetched order list,
// newest first, joined with users, items and products.
type OrderRepository struct {
	db     *gorm.DB
	users  *UserRepository
	hooks  Hooks
	logger *zap.Logger

	mu     sync.RWMutex
	orders []models.Order
}

func NewOrderRepository(db *gorm.DB, users *UserRepository, hooks Hooks, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		users:  users,
		hooks:  hooks,
		logger: logger,
	}
}

func (r *OrderRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("User").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product")
}

// Fetch reloads every order.
func (r *OrderRepository) Fetch(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.query(ctx).Order("created_at DESC").Find(&orders).Error; err != nil {
		r.logger.Error("Failed to fetch orders", zap.Error(err))
		return nil, errs.Fetch("fetch orders", err)
	}

	r.mu.Lock()
	r.orders = orders
	r.mu.Unlock()

	return r.Orders(""), nil
}

func (r *OrderRepository) Refetch(ctx context.Context) error {
	_, err := r.Fetch(ctx)
	return err
}

// Orders returns the cached orders with the given status; "" or "all"
// returns every order.
func (r *OrderRepository) Orders(status string) []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if status == "" || status == "all" || string(o.Status) == status {
			out = append(out, o)
		}
	}
	return out
}

// Get reads a single order from the store.
func (r *OrderRepository) Get(ctx context.Context, id string) (models.Order, error) {
	var order models.Order
	err := r.query(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, errs.E(errs.KindNotFound, "get order", fmt.Errorf("%w: order %s", errs.ErrNotFound, id))
	}
	if err != nil {
		return models.Order{}, errs.Fetch("get order", err)
	}
	return order, nil
}

func (r *OrderRepository) resolveIdentity(ctx context.Context, req CreateOrderRequest, staff *StaffIdentity) (userID string, cashierID *string, err error) {
	if staff != nil && staff.AuthID != "" {
		user, err := r.users.ResolveStaff(ctx, staff.AuthID, staff.Email)
		if err != nil {
			return "", nil, err
		}
		return user.ID, &user.ID, nil
	}
	if strings.TrimSpace(req.GuestPhone) != "" {
		guest, err := r.users.UpsertGuest(ctx, req.GuestPhone, req.GuestName)
		if err != nil {
			return "", nil, err
		}
		return guest.ID, nil, nil
	}
	return "", nil, errs.E(errs.KindMissingIdentity, "create order", errs.ErrMissingIdentity)
}

// Create persists a new order and its items, then reloads the order list.
// The order and item inserts are separate writes: if the item insert fails
// the order row stays behind.
func (r *OrderRepository) Create(ctx context.Context, req CreateOrderRequest, staff *StaffIdentity) (models.Order, error) {
	const op = "create order"

	if len(req.Items) == 0 {
		return models.Order{}, errs.E(errs.KindInvalid, op, errs.ErrEmptyCart)
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return models.Order{}, errs.E(errs.KindInvalid, op,
				fmt.Errorf("%w: product %s", errs.ErrInvalidQuantity, item.ProductID))
		}
	}
	if req.TotalAmount.IsNegative() {
		return models.Order{}, errs.E(errs.KindInvalid, op, errors.New("total amount must not be negative"))
	}

	userID, cashierID, err := r.resolveIdentity(ctx, req, staff)
	if err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		ID:            uuid.NewString(),
		TableNumber:   req.TableNumber,
		Status:        models.StatusPending,
		TotalAmount:   req.TotalAmount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		CashierID:     cashierID,
		UserID:        &userID,
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&order).Error; err != nil {
		r.logger.Error("Failed to create order", zap.Error(err))
		return models.Order{}, errs.Write(op, err)
	}

	items := make([]models.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = models.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if item.Notes != "" {
			note := item.Notes
			items[i].Notes = &note
		}
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&items).Error; err != nil {
		r.logger.Error("Failed to create order items", zap.String("order_id", order.ID), zap.Error(err))
		return models.Order{}, errs.Write(op, err)
	}
	order.Items = items

	r.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Bool("staff", cashierID != nil),
		zap.Int("item_count", len(items)),
		zap.String("total_amount", order.TotalAmount.String()))

	r.hooks.publish(ctx, r.logger, notify.TableOrders, notify.Insert)
	r.hooks.publish(ctx, r.logger, notify.TableOrderItems, notify.Insert)
	recordAudit(r.hooks.Audit, r.logger, &AuditLog{
		Service:  "orders",
		Action:   "create_order",
		EntityID: order.ID,
		Data:     bson.M{"user_id": userID, "total_amount": order.TotalAmount.String(), "items": len(items)},
	})

	if err := r.Refetch(ctx); err != nil {
		r.logger.Warn("Order created but re-fetch failed", zap.String("order_id", order.ID), zap.Error(err))
	}

	return order, nil
}

// UpdateStatus moves an order to a new status. Transitions outside the
// workflow are rejected, and the write only applies if the status is still
// the one that was read. The cached list is patched only after the write
// succeeded.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, to models.OrderStatus) (models.Order, error) {
	const op = "update order status"

	if _, err := models.ParseOrderStatus(string(to)); err != nil {
		return models.Order{}, errs.E(errs.KindInvalid, op, err)
	}

	var current models.Order
	err := r.db.WithContext(ctx).Select("id", "status").First(&current, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, errs.E(errs.KindNotFound, op, fmt.Errorf("%w: order %s", errs.ErrNotFound, id))
	}
	if err != nil {
		return models.Order{}, errs.Fetch(op, err)
	}

	if current.Status.Terminal() {
		return models.Order{}, errs.E(errs.KindConflict, op,
			fmt.Errorf("%w: order is %s", errs.ErrInvalidTransition, current.Status))
	}
	if !current.Status.CanTransitionTo(to) {
		return models.Order{}, errs.E(errs.KindConflict, op,
			fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, current.Status, to))
	}

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, current.Status).
		Updates(map[string]interface{}{"status": to, "updated_at": now})
	if res.Error != nil {
		r.logger.Error("Failed to update order status", zap.String("order_id", id), zap.Error(res.Error))
		return models.Order{}, errs.Write(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.Order{}, errs.E(errs.KindConflict, op, errs.ErrStatusChanged)
	}

	var patched models.Order
	cached := false
	r.mu.Lock()
	for i := range r.orders {
		if r.orders[i].ID == id {
			r.orders[i].Status = to
			r.orders[i].UpdatedAt = now
			patched = r.orders[i]
			cached = true
			break
		}
	}
	r.mu.Unlock()
	if !cached {
		if patched, err = r.Get(ctx, id); err != nil {
			patched = models.Order{ID: id, Status: to, UpdatedAt: now}
		}
	}

	r.logger.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)))

	r.hooks.publish(ctx, r.logger, notify.TableOrders, notify.Update)
	recordAudit(r.hooks.Audit, r.logger, &AuditLog{
		Service:  "orders",
		Action:   "update_order_status",
		EntityID: id,
		Data:     bson.M{"from": string(current.Status), "to": string(to)},
	})

	return patched, nil
}
