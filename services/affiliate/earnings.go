package affiliate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"aurelia-commerce/pkg/errutil"
)

// Trend periods accepted by Earnings.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

const trendBuckets = 12

// conversion is the affiliate-facing projection of an order. Reading the
// orders table directly keeps the reporting path independent of the order
// package.
type conversion struct {
	OrderID          string          `gorm:"column:order_id"`
	TotalPrice       decimal.Decimal `gorm:"column:total_price"`
	CommissionAmount decimal.Decimal `gorm:"column:commission_amount"`
	PaidAt           *time.Time      `gorm:"column:paid_at"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
}

func (conversion) TableName() string { return "orders" }

// Totals aggregates every completed attributed order for one affiliate.
type Totals struct {
	TotalCommission  decimal.Decimal `json:"total_commission" gorm:"column:total_commission"`
	TotalSales       decimal.Decimal `json:"total_sales" gorm:"column:total_sales"`
	TotalConversions int64           `json:"total_conversions" gorm:"column:total_conversions"`
}

// TrendPoint is one period bucket of the earnings trend.
type TrendPoint struct {
	Period      string          `json:"period"`
	Commission  decimal.Decimal `json:"commission"`
	Sales       decimal.Decimal `json:"sales"`
	Conversions int64           `json:"conversions"`
}

// EarningsReport is the payload of the earnings endpoint.
type EarningsReport struct {
	Totals Totals       `json:"total_earnings"`
	Trend  []TrendPoint `json:"earnings_trend"`
}

// ConversionView is one settled order in the recent-conversions list.
type ConversionView struct {
	OrderID          string          `json:"order_id"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	CompletedAt      time.Time       `json:"completed_at"`
}

// Earnings reports totals and a trend over completed orders attributed to
// the affiliate. Only orders with payment_status completed count; pending
// bank transfers appear once they are paid.
func (s *Service) Earnings(ctx context.Context, ownerUserID string, start, end *time.Time, period string) (*EarningsReport, error) {
	switch period {
	case "":
		period = PeriodMonth
	case PeriodDay, PeriodWeek, PeriodMonth:
	default:
		return nil, errutil.ValidationFailed("period must be day, week or month", nil)
	}

	report := &EarningsReport{Trend: []TrendPoint{}}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.completedOrders(gctx, ownerUserID, start, end).
			Select("COALESCE(SUM(commission_amount), 0) AS total_commission, " +
				"COALESCE(SUM(total_price), 0) AS total_sales, " +
				"COUNT(order_id) AS total_conversions").
			Scan(&report.Totals).Error
		if err != nil {
			return errutil.Internal("failed to aggregate earnings", err)
		}
		return nil
	})

	g.Go(func() error {
		var rows []conversion
		err := s.completedOrders(gctx, ownerUserID, start, end).
			Order("created_at DESC").
			Find(&rows).Error
		if err != nil {
			return errutil.Internal("failed to load earnings trend", err)
		}
		report.Trend = bucketTrend(rows, period)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// RecentConversions lists the affiliate's latest settled orders.
func (s *Service) RecentConversions(ctx context.Context, ownerUserID string, limit int) ([]ConversionView, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []conversion
	err := s.completedOrders(ctx, ownerUserID, nil, nil).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errutil.Internal("failed to list conversions", err)
	}

	views := make([]ConversionView, 0, len(rows))
	for _, row := range rows {
		completedAt := row.CreatedAt
		if row.PaidAt != nil {
			completedAt = *row.PaidAt
		}
		views = append(views, ConversionView{
			OrderID:          row.OrderID,
			TotalPrice:       row.TotalPrice,
			CommissionAmount: row.CommissionAmount,
			CompletedAt:      completedAt,
		})
	}
	return views, nil
}

func (s *Service) completedOrders(ctx context.Context, ownerUserID string, start, end *time.Time) *gorm.DB {
	query := s.db.WithContext(ctx).
		Model(&conversion{}).
		Where("referred_by_user = ? AND payment_status = ?", ownerUserID, "completed")
	if start != nil {
		query = query.Where("created_at >= ?", *start)
	}
	if end != nil {
		query = query.Where("created_at <= ?", *end)
	}
	return query
}

// bucketTrend folds conversions into period buckets in Go so the same query
// runs on every supported dialect. Rows arrive newest first, which keeps the
// buckets ordered newest first too.
func bucketTrend(rows []conversion, period string) []TrendPoint {
	byPeriod := make(map[string]*TrendPoint)
	order := make([]string, 0)
	for _, row := range rows {
		key := periodKey(row.CreatedAt.UTC(), period)
		point, ok := byPeriod[key]
		if !ok {
			if len(byPeriod) == trendBuckets {
				continue
			}
			point = &TrendPoint{Period: key}
			byPeriod[key] = point
			order = append(order, key)
		}
		point.Commission = point.Commission.Add(row.CommissionAmount)
		point.Sales = point.Sales.Add(row.TotalPrice)
		point.Conversions++
	}
	sort.Sort(sort.Reverse(sort.StringSlice(order)))
	trend := make([]TrendPoint, 0, len(order))
	for _, key := range order {
		trend = append(trend, *byPeriod[key])
	}
	return trend
}

func periodKey(t time.Time, period string) string {
	switch period {
	case PeriodDay:
		return t.Format("2006-01-02")
	case PeriodWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return t.Format("2006-01")
	}
}
