package repository

import (
	"context"
	"time"

	"github.com/example/tablepos/pkg/errs"
	"github.com/example/tablepos/pkg/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	LowStockThreshold = 10
	popularItemsLimit = 5
	popularItemsDays  = 7
)

type PopularItem struct {
	ProductName   string `json:"product_name"`
	TotalQuantity int    `json:"total_quantity"`
}

type DashboardStats struct {
	TodayRevenue  decimal.Decimal  `json:"today_revenue"`
	TodayOrders   int              `json:"today_orders"`
	PopularItems  []PopularItem    `json:"popular_items"`
	LowStockItems []models.Product `json:"low_stock_items"`
}

type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Dashboard summarises completed orders of the current UTC day, the best
// sellers of the last week and the products running low.
func (r *StatsRepository) Dashboard(ctx context.Context, now time.Time) (*DashboardStats, error) {
	stats := &DashboardStats{TodayRevenue: decimal.Zero}

	var totals []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("created_at >= ? AND status = ?", startOfDay(now), models.StatusDone).
		Pluck("total_amount", &totals).Error
	if err != nil {
		return nil, errs.Fetch("fetch today's orders", err)
	}
	for _, t := range totals {
		stats.TodayRevenue = stats.TodayRevenue.Add(t)
	}
	stats.TodayOrders = len(totals)

	popular := []PopularItem{}
	err = r.db.WithContext(ctx).Table("order_items AS oi").
		Select("COALESCE(p.name, 'Unknown') AS product_name, SUM(oi.qty) AS total_quantity").
		Joins("LEFT JOIN products p ON p.id = oi.product_id").
		Where("oi.created_at >= ?", now.UTC().AddDate(0, 0, -popularItemsDays)).
		Group("COALESCE(p.name, 'Unknown')").
		Order("total_quantity DESC, product_name ASC").
		Limit(popularItemsLimit).
		Scan(&popular).Error
	if err != nil {
		return nil, errs.Fetch("fetch popular items", err)
	}
	stats.PopularItems = popular

	lowStock := []models.Product{}
	err = r.db.WithContext(ctx).
		Where("stock <= ?", LowStockThreshold).
		Order("stock ASC").
		Find(&lowStock).Error
	if err != nil {
		return nil, errs.Fetch("fetch low stock products", err)
	}
	stats.LowStockItems = lowStock

	return stats, nil
}
