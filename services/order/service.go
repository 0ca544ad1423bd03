package order

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aurelia-commerce/pkg/db/pagination"
	"aurelia-commerce/pkg/errutil"
	"aurelia-commerce/pkg/money"
	"aurelia-commerce/services/affiliate"
)

// Pricer resolves a product into its checkout name and unit price. The
// catalog service implements it.
type Pricer interface {
	UnitPrice(ctx context.Context, productID string) (name string, price decimal.Decimal, err error)
}

var (
	ErrNotFound    = errutil.NotFound("order not found", nil)
	ErrAlreadyPaid = errutil.BadRequest("order is already paid", nil)
	ErrNotPayable  = errutil.BadRequest("order cannot be paid in its current state", nil)
)

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	affiliates *affiliate.Service
	pricer     Pricer
}

type ServiceParams struct {
	fx.In

	DB         *gorm.DB
	Node       *snowflake.Node
	Affiliates *affiliate.Service
	Pricer     Pricer
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, node: p.Node, affiliates: p.Affiliates, pricer: p.Pricer}
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CustomerInfo struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
}

type CreateInput struct {
	UserID        *string
	Customer      CustomerInfo
	CartItems     []CartItem
	PaymentMethod PaymentMethod
	Notes         string

	// Attribution hints, in descending precedence: an explicit discount
	// code beats a referral code.
	DiscountCode string
	AffiliateRef string
	ClickID      string
}

// Create places an order. A bad discount code fails the order; a bad
// referral code silently drops attribution, because the customer typed the
// former and a link carried the latter. Orders paid by anything other than
// bank transfer complete immediately and settle their commission in the
// same transaction that creates them.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	items, subtotal, err := s.priceItems(ctx, in.CartItems)
	if err != nil {
		return nil, err
	}

	var code *affiliate.Code
	if in.DiscountCode != "" {
		code, err = s.affiliates.LookupActive(ctx, in.DiscountCode)
		if err != nil {
			return nil, errutil.BadRequest("invalid or expired discount code", err)
		}
	} else if in.AffiliateRef != "" {
		if ref, lookupErr := s.affiliates.LookupActive(ctx, in.AffiliateRef); lookupErr == nil {
			code = ref
		} else {
			zap.L().Debug("referral code dropped at checkout",
				zap.String("ref", in.AffiliateRef),
				zap.Error(lookupErr))
		}
	}

	o := &Order{
		OrderID:         s.node.Generate().String(),
		UserID:          in.UserID,
		CustomerName:    in.Customer.FullName,
		CustomerEmail:   in.Customer.Email,
		CustomerPhone:   in.Customer.PhoneNumber,
		ShippingAddress: in.Customer.Address,
		Subtotal:        subtotal,
		TotalPrice:      subtotal,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   PaymentPending,
		OrderStatus:     StatusProcessing,
		Notes:           in.Notes,
	}
	if code != nil {
		discount := money.ApplyRate(subtotal, code.DiscountRate)
		o.DiscountAmount = discount
		o.TotalPrice = subtotal.Sub(discount)
		o.ReferredByUser = &code.OwnerUserID
		o.AffiliateCodeID = &code.CodeID
		o.AffiliateCodeText = &code.CodeText
		o.AppliedDiscountCode = &code.CodeText
		rate := code.CommissionRate
		o.CommissionRate = &rate
	}
	if in.PaymentMethod != MethodBankTransfer {
		now := time.Now().UTC()
		o.PaymentStatus = PaymentCompleted
		o.OrderStatus = StatusConfirmed
		o.PaidAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return errutil.Internal("failed to create order", err)
		}
		for i := range items {
			items[i].OrderID = o.OrderID
		}
		if err := tx.Create(&items).Error; err != nil {
			return errutil.Internal("failed to create order items", err)
		}
		if o.PaymentStatus == PaymentCompleted {
			return s.settle(tx, o, in.ClickID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.Items = items

	zap.L().Info("order created",
		zap.String("order_id", o.OrderID),
		zap.String("payment_status", string(o.PaymentStatus)),
		zap.Bool("attributed", o.AffiliateCodeID != nil))
	return o, nil
}

func validateCreate(in CreateInput) error {
	details := make([]errutil.Detail, 0)
	if in.Customer.FullName == "" {
		details = append(details, errutil.Detail{Field: "customerInfo.fullName", Message: "required"})
	}
	if in.Customer.PhoneNumber == "" {
		details = append(details, errutil.Detail{Field: "customerInfo.phoneNumber", Message: "required"})
	}
	if in.Customer.Address == "" {
		details = append(details, errutil.Detail{Field: "customerInfo.address", Message: "required"})
	}
	if len(in.CartItems) == 0 {
		details = append(details, errutil.Detail{Field: "cartItems", Message: "cart is empty"})
	}
	for _, item := range in.CartItems {
		if item.ProductID == "" || item.Quantity <= 0 {
			details = append(details, errutil.Detail{Field: "cartItems", Message: "each item needs a product and a positive quantity"})
			break
		}
	}
	if !in.PaymentMethod.Valid() {
		details = append(details, errutil.Detail{Field: "paymentMethod", Message: "must be credit_card, bank_transfer or cash_on_delivery"})
	}
	if len(details) > 0 {
		return errutil.ValidationFailed("invalid order request", nil, errutil.WithDetails(details...))
	}
	return nil
}

func (s *Service) priceItems(ctx context.Context, cart []CartItem) ([]Item, decimal.Decimal, error) {
	items := make([]Item, 0, len(cart))
	subtotal := decimal.Zero
	for _, entry := range cart {
		name, price, err := s.pricer.UnitPrice(ctx, entry.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		price = money.Round(price)
		items = append(items, Item{
			ProductID: entry.ProductID,
			Name:      name,
			Quantity:  entry.Quantity,
			Price:     price,
		})
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(entry.Quantity))))
	}
	return items, money.Round(subtotal), nil
}

// Pay settles a bank-transfer order. Only the request that flips the status
// from pending to completed credits the commission; any repeat gets an
// already-paid error.
func (s *Service) Pay(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&o, "order_id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return errutil.Internal("failed to load order", err)
		}
		if o.PaymentStatus == PaymentCompleted {
			return ErrAlreadyPaid
		}

		now := time.Now().UTC()
		res := tx.Model(&Order{}).
			Where("order_id = ? AND payment_status = ?", orderID, PaymentPending).
			Updates(map[string]interface{}{
				"payment_status": PaymentCompleted,
				"order_status":   StatusConfirmed,
				"paid_at":        now,
			})
		if res.Error != nil {
			return errutil.Internal("failed to mark order paid", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race or the order is failed/refunded.
			return ErrNotPayable
		}

		o.PaymentStatus = PaymentCompleted
		o.OrderStatus = StatusConfirmed
		o.PaidAt = &now
		return s.settle(tx, &o, "")
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("order paid", zap.String("order_id", o.OrderID))
	return s.Get(ctx, orderID)
}

// Get loads an order with its items.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		First(&o, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errutil.Internal("failed to load order", err)
	}
	return &o, nil
}

// List returns every order, newest first. Admin only, enforced at the route.
func (s *Service) List(ctx context.Context, pg pagination.Params) ([]*Order, *pagination.Meta, error) {
	pg.Normalize()

	var total int64
	if err := s.db.WithContext(ctx).Model(&Order{}).Count(&total).Error; err != nil {
		return nil, nil, errutil.Internal("failed to count orders", err)
	}

	var orders []*Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Offset(pg.Offset()).
		Limit(pg.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, nil, errutil.Internal("failed to list orders", err)
	}
	return orders, pagination.NewMeta(total, pg), nil
}

// ListByUser returns a customer's own orders. Admins may read anyone's.
func (s *Service) ListByUser(ctx context.Context, requesterID, requesterRole, targetUserID string) ([]*Order, error) {
	if requesterID != targetUserID && requesterRole != "admin" {
		return nil, errutil.Forbidden("cannot view another user's orders", nil)
	}

	var orders []*Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", targetUserID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, errutil.Internal("failed to list orders", err)
	}
	return orders, nil
}

// UpdateStatus moves an order through fulfilment. Shipping stamps
// shipped_at once.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, errutil.ValidationFailed("invalid order status", nil)
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"order_status": status}
	if status == StatusShipped && o.ShippedAt == nil {
		now := time.Now().UTC()
		updates["shipped_at"] = now
		o.ShippedAt = &now
	}
	err = s.db.WithContext(ctx).
		Model(&Order{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
	if err != nil {
		return nil, errutil.Internal("failed to update order status", err)
	}
	o.OrderStatus = status
	return o, nil
}

// Delete removes an order and its items. Converted clicks keep their
// snapshot; deleting an order does not claw back a settled commission.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	if _, err := s.Get(ctx, orderID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&Item{}).Error; err != nil {
			return err
		}
		return tx.Where("order_id = ?", orderID).Delete(&Order{}).Error
	})
	if err != nil {
		return errutil.Internal("failed to delete order", err)
	}
	return nil
}
