package affiliate

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOrder mirrors the columns of the orders table that the earnings
// reporter reads.
type testOrder struct {
	OrderID          string          `gorm:"column:order_id;primaryKey"`
	ReferredByUser   *string         `gorm:"column:referred_by_user;index"`
	PaymentStatus    string          `gorm:"column:payment_status"`
	TotalPrice       decimal.Decimal `gorm:"column:total_price;type:decimal(10,2)"`
	CommissionAmount decimal.Decimal `gorm:"column:commission_amount;type:decimal(10,2)"`
	PaidAt           *time.Time      `gorm:"column:paid_at"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
}

func (testOrder) TableName() string { return "orders" }

func seedOrder(t *testing.T, s *Service, owner, id, status string, total, commission float64, createdAt time.Time) {
	t.Helper()
	row := testOrder{
		OrderID:          id,
		ReferredByUser:   &owner,
		PaymentStatus:    status,
		TotalPrice:       decimal.NewFromFloat(total),
		CommissionAmount: decimal.NewFromFloat(commission),
		CreatedAt:        createdAt,
	}
	require.NoError(t, s.db.Create(&row).Error)
}

func TestEarnings(t *testing.T) {
	s := newTestService(t, &testOrder{})
	ctx := context.Background()
	now := time.Now().UTC()

	seedOrder(t, s, "aff1", "o1", "completed", 1000, 50, now)
	seedOrder(t, s, "aff1", "o2", "completed", 500, 25, now.Add(-time.Hour))
	seedOrder(t, s, "aff1", "o3", "completed", 200, 10, now.AddDate(0, -1, 0))
	// Pending and foreign orders never count.
	seedOrder(t, s, "aff1", "o4", "pending", 900, 0, now)
	seedOrder(t, s, "aff2", "o5", "completed", 700, 35, now)

	t.Run("totals cover only completed own orders", func(t *testing.T) {
		report, err := s.Earnings(ctx, "aff1", nil, nil, PeriodMonth)
		require.NoError(t, err)
		assert.True(t, report.Totals.TotalCommission.Equal(decimal.NewFromInt(85)), report.Totals.TotalCommission.String())
		assert.True(t, report.Totals.TotalSales.Equal(decimal.NewFromInt(1700)))
		assert.Equal(t, int64(3), report.Totals.TotalConversions)
	})

	t.Run("monthly trend buckets newest first", func(t *testing.T) {
		report, err := s.Earnings(ctx, "aff1", nil, nil, PeriodMonth)
		require.NoError(t, err)
		require.Len(t, report.Trend, 2)
		assert.Equal(t, now.Format("2006-01"), report.Trend[0].Period)
		assert.Equal(t, int64(2), report.Trend[0].Conversions)
		assert.True(t, report.Trend[0].Commission.Equal(decimal.NewFromInt(75)))
		assert.Equal(t, int64(1), report.Trend[1].Conversions)
	})

	t.Run("date range narrows the report", func(t *testing.T) {
		start := now.Add(-30 * time.Minute)
		report, err := s.Earnings(ctx, "aff1", &start, nil, PeriodDay)
		require.NoError(t, err)
		assert.Equal(t, int64(1), report.Totals.TotalConversions)
	})

	t.Run("unknown period rejected", func(t *testing.T) {
		_, err := s.Earnings(ctx, "aff1", nil, nil, "quarter")
		assert.Error(t, err)
	})

	t.Run("weekly keys use ISO weeks", func(t *testing.T) {
		report, err := s.Earnings(ctx, "aff1", nil, nil, PeriodWeek)
		require.NoError(t, err)
		require.NotEmpty(t, report.Trend)
		assert.Regexp(t, `^\d{4}-W\d{2}$`, report.Trend[0].Period)
	})
}

func TestParseEndDateCoversWholeDay(t *testing.T) {
	s := newTestService(t, &testOrder{})
	noon := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	seedOrder(t, s, "aff1", "midday", "completed", 100, 5, noon)

	end, err := parseEndDate("2026-08-28")
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.True(t, end.After(noon))

	report, err := s.Earnings(context.Background(), "aff1", nil, end, PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Totals.TotalConversions)

	t.Run("timestamped bound is taken verbatim", func(t *testing.T) {
		end, err := parseEndDate("2026-08-28T10:00:00Z")
		require.NoError(t, err)

		report, err := s.Earnings(context.Background(), "aff1", nil, end, PeriodDay)
		require.NoError(t, err)
		assert.Zero(t, report.Totals.TotalConversions)
	})
}

func TestEarningsTrendBucketCap(t *testing.T) {
	s := newTestService(t, &testOrder{})
	now := time.Now().UTC()

	for i := 0; i < 15; i++ {
		seedOrder(t, s, "aff1", string(rune('a'+i)), "completed", 100, 5, now.AddDate(0, 0, -i))
	}

	report, err := s.Earnings(context.Background(), "aff1", nil, nil, PeriodDay)
	require.NoError(t, err)
	assert.Len(t, report.Trend, 12)
	assert.Equal(t, now.Format("2006-01-02"), report.Trend[0].Period)
}

func TestRecentConversions(t *testing.T) {
	s := newTestService(t, &testOrder{})
	now := time.Now().UTC()

	for i := 0; i < 7; i++ {
		seedOrder(t, s, "aff1", string(rune('a'+i)), "completed", 100, 5, now.Add(-time.Duration(i)*time.Hour))
	}
	seedOrder(t, s, "aff1", "pending-one", "pending", 100, 0, now)

	views, err := s.RecentConversions(context.Background(), "aff1", 5)
	require.NoError(t, err)
	require.Len(t, views, 5)
	assert.Equal(t, "a", views[0].OrderID)
	assert.True(t, views[0].CommissionAmount.Equal(decimal.NewFromInt(5)))
}
