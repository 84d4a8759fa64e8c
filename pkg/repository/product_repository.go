package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/tablepos/pkg/errs"
	"github.com/example/tablepos/pkg/models"
	"github.com/example/tablepos/pkg/notify"
	"github.com/example/tablepos/pkg/storage"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductRepository owns the catalog and a cached copy of the last fetched
// product list, sorted by name. The cache is what carts check stock against.
type ProductRepository struct {
	db     *gorm.DB
	store  storage.BlobStore
	hooks  Hooks
	logger *zap.Logger

	mu       sync.RWMutex
	products []models.Product
}

func NewProductRepository(db *gorm.DB, store storage.BlobStore, hooks Hooks, logger *zap.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		store:  store,
		hooks:  hooks,
		logger: logger,
	}
}

func sortByName(products []models.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
	})
}

// Fetch reloads the product list ordered by name, ignoring case.
func (r *ProductRepository) Fetch(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Find(&products).Error; err != nil {
		r.logger.Error("Failed to fetch products", zap.Error(err))
		return nil, errs.Fetch("fetch products", err)
	}
	sortByName(products)

	r.mu.Lock()
	r.products = products
	r.mu.Unlock()

	return r.Products(), nil
}

func (r *ProductRepository) Refetch(ctx context.Context) error {
	_, err := r.Fetch(ctx)
	return err
}

// Products returns a copy of the cached list.
func (r *ProductRepository) Products() []models.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Product, len(r.products))
	copy(out, r.products)
	return out
}

// Product looks a product up in the cached list.
func (r *ProductRepository) Product(id string) (models.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (r *ProductRepository) FindByBarcode(code string) (models.Product, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Product{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.Barcode != nil && *p.Barcode == code {
			return p, true
		}
	}
	return models.Product{}, false
}

// Search filters the cached list. The term matches the name case-insensitively
// or any part of the barcode; category "" or "all" matches every category.
func (r *ProductRepository) Search(term, category string, inStockOnly bool) []models.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	out := []models.Product{}
	for _, p := range r.Products() {
		if category != "" && category != "all" && p.Category != category {
			continue
		}
		if inStockOnly && p.Stock <= 0 {
			continue
		}
		if term != "" {
			byName := strings.Contains(strings.ToLower(p.Name), term)
			byBarcode := p.Barcode != nil && strings.Contains(strings.ToLower(*p.Barcode), term)
			if !byName && !byBarcode {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// Categories lists the distinct categories of the cached list.
func (r *ProductRepository) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range r.Products() {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out
}

func validateFields(op string, f models.ProductFields, create bool) error {
	invalid := func(msg string) error {
		return errs.E(errs.KindInvalid, op, errors.New(msg))
	}
	if create {
		if f.Name == nil || strings.TrimSpace(*f.Name) == "" {
			return invalid("name is required")
		}
		if f.Price == nil {
			return invalid("price is required")
		}
		if f.Stock == nil {
			return invalid("stock is required")
		}
		if f.Category == nil || strings.TrimSpace(*f.Category) == "" {
			return invalid("category is required")
		}
	}
	if f.Name != nil && strings.TrimSpace(*f.Name) == "" {
		return invalid("name must not be empty")
	}
	if f.Price != nil && f.Price.IsNegative() {
		return invalid("price must not be negative")
	}
	if f.Stock != nil && *f.Stock < 0 {
		return invalid("stock must not be negative")
	}
	return nil
}

// uploadImage runs before any row is written; an upload failure aborts the
// whole operation.
func (r *ProductRepository) uploadImage(ctx context.Context, op string, img *storage.Image) (*string, error) {
	if img == nil {
		return nil, nil
	}
	if r.store == nil {
		return nil, errs.Upload(op, errors.New("no image store configured"))
	}
	url, err := r.store.Upload(ctx, img)
	if err != nil {
		r.logger.Error("Failed to upload product image", zap.String("file", img.Filename), zap.Error(err))
		return nil, errs.Upload(op, err)
	}
	return &url, nil
}

func (r *ProductRepository) Create(ctx context.Context, fields models.ProductFields, img *storage.Image) (models.Product, error) {
	const op = "create product"
	if err := validateFields(op, fields, true); err != nil {
		return models.Product{}, err
	}

	url, err := r.uploadImage(ctx, op, img)
	if err != nil {
		return models.Product{}, err
	}
	if url != nil {
		fields.ImageURL = url
	}

	product := models.Product{ID: uuid.NewString()}
	fields.Apply(&product)

	if err := r.db.WithContext(ctx).Create(&product).Error; err != nil {
		r.logger.Error("Failed to create product", zap.Error(err))
		return models.Product{}, errs.Write(op, err)
	}

	r.mu.Lock()
	r.products = append(r.products, product)
	sortByName(r.products)
	r.mu.Unlock()

	r.hooks.publish(ctx, r.logger, notify.TableProducts, notify.Insert)
	recordAudit(r.hooks.Audit, r.logger, &AuditLog{
		Service:  "catalog",
		Action:   "create_product",
		EntityID: product.ID,
		Data:     bson.M{"name": product.Name, "price": product.Price.String(), "stock": product.Stock},
	})

	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, id string, fields models.ProductFields, img *storage.Image) (models.Product, error) {
	const op = "update product"
	if err := validateFields(op, fields, false); err != nil {
		return models.Product{}, err
	}

	url, err := r.uploadImage(ctx, op, img)
	if err != nil {
		return models.Product{}, err
	}
	if url != nil {
		fields.ImageURL = url
	}

	updates := fields.Updates()
	updates["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		r.logger.Error("Failed to update product", zap.String("product_id", id), zap.Error(res.Error))
		return models.Product{}, errs.Write(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.Product{}, errs.E(errs.KindNotFound, op, fmt.Errorf("%w: product %s", errs.ErrNotFound, id))
	}

	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return models.Product{}, errs.Fetch(op, err)
	}

	r.mu.Lock()
	replaced := false
	for i := range r.products {
		if r.products[i].ID == id {
			r.products[i] = product
			replaced = true
			break
		}
	}
	if !replaced {
		r.products = append(r.products, product)
		sortByName(r.products)
	}
	r.mu.Unlock()

	r.hooks.publish(ctx, r.logger, notify.TableProducts, notify.Update)
	recordAudit(r.hooks.Audit, r.logger, &AuditLog{
		Service:  "catalog",
		Action:   "update_product",
		EntityID: id,
		Data:     bson.M{"fields": fieldNames(updates)},
	})

	return product, nil
}

// Delete removes the product row. Its uploaded image is left in the store.
// TODO: reclaim the image object once the store exposes deletion by URL.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	const op = "delete product"

	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		r.logger.Error("Failed to delete product", zap.String("product_id", id), zap.Error(res.Error))
		return errs.Write(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.E(errs.KindNotFound, op, fmt.Errorf("%w: product %s", errs.ErrNotFound, id))
	}

	r.mu.Lock()
	kept := r.products[:0]
	for _, p := range r.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	r.products = kept
	r.mu.Unlock()

	r.hooks.publish(ctx, r.logger, notify.TableProducts, notify.Delete)
	recordAudit(r.hooks.Audit, r.logger, &AuditLog{
		Service:  "catalog",
		Action:   "delete_product",
		EntityID: id,
	})

	return nil
}

func fieldNames(updates map[string]interface{}) []string {
	names := make([]string, 0, len(updates))
	for k := range updates {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
