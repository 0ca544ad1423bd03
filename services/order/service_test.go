package order

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurelia-commerce/pkg/config"
	"aurelia-commerce/services/affiliate"
	"aurelia-commerce/services/testutil"
)

// stubPricer prices every product at a fixed unit price.
type stubPricer struct {
	price decimal.Decimal
}

func (p stubPricer) UnitPrice(_ context.Context, productID string) (string, decimal.Decimal, error) {
	return "Product " + productID, p.price, nil
}

type fixture struct {
	orders     *Service
	affiliates *affiliate.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &Order{}, &Item{}, &affiliate.Code{}, &affiliate.Click{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Site.BaseURL = "https://shop.test"
	affiliates := affiliate.NewService(affiliate.ServiceParams{DB: db, Node: node, Cfg: cfg})
	orders := NewService(ServiceParams{
		DB:         db,
		Node:       node,
		Affiliates: affiliates,
		Pricer:     stubPricer{price: decimal.NewFromInt(500)},
	})
	return &fixture{orders: orders, affiliates: affiliates}
}

func (f *fixture) createCode(t *testing.T, text string) *affiliate.CodeView {
	t.Helper()
	view, err := f.affiliates.Create(context.Background(), affiliate.CreateCodeInput{
		OwnerUserID: "aff-user",
		CodeText:    text,
	})
	require.NoError(t, err)
	return view
}

func baseInput(method PaymentMethod) CreateInput {
	return CreateInput{
		Customer: CustomerInfo{
			FullName:    "Mina Halim",
			Email:       "mina@example.com",
			PhoneNumber: "+20100000000",
			Address:     "12 Garden City, Cairo",
		},
		CartItems:     []CartItem{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: method,
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		in := baseInput(MethodCreditCard)
		in.CartItems = nil
		_, err := f.orders.Create(ctx, in)
		assert.Error(t, err)
	})

	t.Run("missing customer fields", func(t *testing.T) {
		in := baseInput(MethodCreditCard)
		in.Customer.Address = ""
		_, err := f.orders.Create(ctx, in)
		assert.Error(t, err)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		in := baseInput("barter")
		_, err := f.orders.Create(ctx, in)
		assert.Error(t, err)
	})
}

func TestCreateWithoutAttribution(t *testing.T) {
	f := newFixture(t)

	o, err := f.orders.Create(context.Background(), baseInput(MethodCreditCard))
	require.NoError(t, err)

	assert.True(t, o.Subtotal.Equal(decimal.NewFromInt(1000)))
	assert.True(t, o.TotalPrice.Equal(decimal.NewFromInt(1000)))
	assert.True(t, o.DiscountAmount.IsZero())
	assert.Equal(t, PaymentCompleted, o.PaymentStatus)
	assert.Equal(t, StatusConfirmed, o.OrderStatus)
	assert.NotNil(t, o.PaidAt)
	assert.Nil(t, o.AffiliateCodeID)
	assert.Nil(t, o.CommissionAmount)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Product p1", o.Items[0].Name)
}

func TestCreateWithDiscountCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.createCode(t, "GLITTER1")

	click, err := f.affiliates.RecordClick(ctx, "GLITTER1", "", "", "")
	require.NoError(t, err)

	in := baseInput(MethodCreditCard)
	in.DiscountCode = "glitter1"
	in.ClickID = click.ClickID

	o, err := f.orders.Create(ctx, in)
	require.NoError(t, err)

	// 10% off 1000, then 5% commission on the 900 actually paid.
	assert.True(t, o.DiscountAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, o.TotalPrice.Equal(decimal.NewFromInt(900)))
	require.NotNil(t, o.CommissionAmount)
	assert.True(t, o.CommissionAmount.Equal(decimal.NewFromInt(45)), o.CommissionAmount.String())
	require.NotNil(t, o.AffiliateCodeText)
	assert.Equal(t, "GLITTER1", *o.AffiliateCodeText)
	require.NotNil(t, o.ReferredByUser)
	assert.Equal(t, "aff-user", *o.ReferredByUser)

	reloaded, _, err := f.affiliates.Get(ctx, "aff-user", code.CodeID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.TotalOrders)
	assert.True(t, reloaded.TotalRevenue.Equal(decimal.NewFromInt(900)))
	assert.True(t, reloaded.TotalCommission.Equal(decimal.NewFromInt(45)))
}

func TestCreateWithZeroCommissionCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	discount := decimal.NewFromFloat(0.20)
	commission := decimal.Zero
	view, err := f.affiliates.Create(ctx, affiliate.CreateCodeInput{
		OwnerUserID:    "aff-user",
		CodeText:       "SALE20XX",
		DiscountRate:   &discount,
		CommissionRate: &commission,
	})
	require.NoError(t, err)

	in := baseInput(MethodCreditCard)
	in.DiscountCode = "SALE20XX"

	o, err := f.orders.Create(ctx, in)
	require.NoError(t, err)
	assert.True(t, o.DiscountAmount.Equal(decimal.NewFromInt(200)))
	assert.True(t, o.TotalPrice.Equal(decimal.NewFromInt(800)))
	require.NotNil(t, o.CommissionAmount)
	assert.True(t, o.CommissionAmount.IsZero())

	reloaded, _, err := f.affiliates.Get(ctx, "aff-user", view.CodeID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.TotalOrders)
	assert.True(t, reloaded.TotalRevenue.Equal(decimal.NewFromInt(800)))
	assert.True(t, reloaded.TotalCommission.IsZero())
}

func TestCreateWithBadDiscountCodeFails(t *testing.T) {
	f := newFixture(t)

	in := baseInput(MethodCreditCard)
	in.DiscountCode = "NOSUCH01"

	_, err := f.orders.Create(context.Background(), in)
	require.Error(t, err)
}

func TestCreateWithAffiliateRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCode(t, "REFONLY1")

	t.Run("valid ref attributes and discounts", func(t *testing.T) {
		in := baseInput(MethodCreditCard)
		in.AffiliateRef = "REFONLY1"

		o, err := f.orders.Create(ctx, in)
		require.NoError(t, err)
		require.NotNil(t, o.AffiliateCodeText)
		assert.Equal(t, "REFONLY1", *o.AffiliateCodeText)
		assert.True(t, o.DiscountAmount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("bad ref drops attribution but keeps the order", func(t *testing.T) {
		in := baseInput(MethodCreditCard)
		in.AffiliateRef = "GHOSTREF"

		o, err := f.orders.Create(ctx, in)
		require.NoError(t, err)
		assert.Nil(t, o.AffiliateCodeID)
		assert.True(t, o.DiscountAmount.IsZero())
	})

	t.Run("discount code wins over ref", func(t *testing.T) {
		f.createCode(t, "LOSERREF")
		in := baseInput(MethodCreditCard)
		in.DiscountCode = "REFONLY1"
		in.AffiliateRef = "LOSERREF"

		o, err := f.orders.Create(ctx, in)
		require.NoError(t, err)
		require.NotNil(t, o.AffiliateCodeText)
		assert.Equal(t, "REFONLY1", *o.AffiliateCodeText)
	})
}

func TestBankTransferSettlesOnPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.createCode(t, "WIREPAY1")

	click, err := f.affiliates.RecordClick(ctx, "WIREPAY1", "", "", "")
	require.NoError(t, err)

	in := baseInput(MethodBankTransfer)
	in.DiscountCode = "WIREPAY1"
	in.ClickID = click.ClickID

	o, err := f.orders.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Nil(t, o.PaidAt)
	assert.Nil(t, o.CommissionAmount)

	// Nothing settles before payment.
	pending, _, err := f.affiliates.Get(ctx, "aff-user", code.CodeID)
	require.NoError(t, err)
	assert.Zero(t, pending.TotalOrders)

	paid, err := f.orders.Pay(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, PaymentCompleted, paid.PaymentStatus)
	assert.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.CommissionAmount)
	assert.True(t, paid.CommissionAmount.Equal(decimal.NewFromInt(45)))

	settled, _, err := f.affiliates.Get(ctx, "aff-user", code.CodeID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), settled.TotalOrders)
	assert.True(t, settled.TotalCommission.Equal(decimal.NewFromInt(45)))

	t.Run("paying twice fails and settles nothing more", func(t *testing.T) {
		_, err := f.orders.Pay(ctx, o.OrderID)
		assert.ErrorIs(t, err, ErrAlreadyPaid)

		again, _, err := f.affiliates.Get(ctx, "aff-user", code.CodeID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), again.TotalOrders)
	})
}

func TestAggregatesAccumulateAcrossOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.createCode(t, "TWICE001")

	for i := 0; i < 2; i++ {
		in := baseInput(MethodCreditCard)
		in.DiscountCode = "TWICE001"
		_, err := f.orders.Create(ctx, in)
		require.NoError(t, err)
	}

	// Two settlements of 900 at 5% each: sums, not last-writer-wins.
	reloaded, _, err := f.affiliates.Get(ctx, "aff-user", code.CodeID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloaded.TotalOrders)
	assert.True(t, reloaded.TotalRevenue.Equal(decimal.NewFromInt(1800)), reloaded.TotalRevenue.String())
	assert.True(t, reloaded.TotalCommission.Equal(decimal.NewFromInt(90)), reloaded.TotalCommission.String())
}

func TestPayUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.Pay(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettleIsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.createCode(t, "ONCEONLY")

	in := baseInput(MethodCreditCard)
	in.DiscountCode = "ONCEONLY"
	o, err := f.orders.Create(ctx, in)
	require.NoError(t, err)

	// A second settle attempt for the same order is a no-op.
	require.NoError(t, f.orders.settle(f.orders.db, o, ""))

	reloaded, _, err := f.affiliates.Get(ctx, "aff-user", code.CodeID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.TotalOrders)
	assert.True(t, reloaded.TotalCommission.Equal(decimal.NewFromInt(45)))
}

func TestSettleFallsBackToNewestClick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCode(t, "FALLBACK")

	first, err := f.affiliates.RecordClick(ctx, "FALLBACK", "", "", "")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := f.affiliates.RecordClick(ctx, "FALLBACK", "", "", "")
	require.NoError(t, err)

	// No click hint: the newest click converts.
	in := baseInput(MethodCreditCard)
	in.DiscountCode = "FALLBACK"
	o, err := f.orders.Create(ctx, in)
	require.NoError(t, err)

	var clicks []affiliate.Click
	require.NoError(t, f.orders.db.Order("click_id").Find(&clicks).Error)
	converted := map[string]bool{}
	for _, c := range clicks {
		if c.Converted {
			require.NotNil(t, c.OrderID)
			converted[c.ClickID] = *c.OrderID == o.OrderID
		}
	}
	assert.False(t, converted[first.ClickID])
	assert.True(t, converted[second.ClickID])
}

func TestSettleStaleClickHintConvertsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCode(t, "STALEHIT")

	hint, err := f.affiliates.RecordClick(ctx, "STALEHIT", "", "", "")
	require.NoError(t, err)

	first := baseInput(MethodCreditCard)
	first.DiscountCode = "STALEHIT"
	first.ClickID = hint.ClickID
	_, err = f.orders.Create(ctx, first)
	require.NoError(t, err)

	fresh, err := f.affiliates.RecordClick(ctx, "STALEHIT", "", "", "")
	require.NoError(t, err)

	// Re-using the consumed hint must not convert the fresh click.
	second := baseInput(MethodCreditCard)
	second.DiscountCode = "STALEHIT"
	second.ClickID = hint.ClickID
	o, err := f.orders.Create(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, o.CommissionAmount)

	var click affiliate.Click
	require.NoError(t, f.orders.db.First(&click, "click_id = ?", fresh.ClickID).Error)
	assert.False(t, click.Converted)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.orders.Create(ctx, baseInput(MethodCreditCard))
	require.NoError(t, err)

	updated, err := f.orders.UpdateStatus(ctx, o.OrderID, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, updated.OrderStatus)
	require.NotNil(t, updated.ShippedAt)
	firstShipped := *updated.ShippedAt

	// Re-shipping keeps the original timestamp.
	updated, err = f.orders.UpdateStatus(ctx, o.OrderID, StatusShipped)
	require.NoError(t, err)
	assert.True(t, updated.ShippedAt.Equal(firstShipped))

	_, err = f.orders.UpdateStatus(ctx, o.OrderID, "teleported")
	assert.Error(t, err)
}

func TestListByUserOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := baseInput(MethodCreditCard)
	owner := "cust-1"
	in.UserID = &owner
	_, err := f.orders.Create(ctx, in)
	require.NoError(t, err)

	orders, err := f.orders.ListByUser(ctx, "cust-1", "customer", "cust-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = f.orders.ListByUser(ctx, "cust-2", "customer", "cust-1")
	assert.Error(t, err)

	orders, err = f.orders.ListByUser(ctx, "admin-1", "admin", "cust-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.orders.Create(ctx, baseInput(MethodCreditCard))
	require.NoError(t, err)

	require.NoError(t, f.orders.Delete(ctx, o.OrderID))

	_, err = f.orders.Get(ctx, o.OrderID)
	assert.ErrorIs(t, err, ErrNotFound)

	var items int64
	f.orders.db.Model(&Item{}).Where("order_id = ?", o.OrderID).Count(&items)
	assert.Zero(t, items)
}
