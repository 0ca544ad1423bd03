package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known fulfilment status.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodCreditCard     PaymentMethod = "credit_card"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCreditCard, MethodBankTransfer, MethodCashOnDelivery:
		return true
	}
	return false
}

// Order is a purchase with its attribution snapshot. The affiliate fields
// record the code text and rates as they were at attribution time, so later
// code edits never change what an order owes. A nil CommissionAmount means
// the commission has not been credited yet.
type Order struct {
	OrderID         string          `json:"order_id" gorm:"column:order_id;primaryKey"`
	UserID          *string         `json:"user_id" gorm:"column:user_id;index"`
	CustomerName    string          `json:"customer_name" gorm:"column:customer_name;not null"`
	CustomerEmail   string          `json:"customer_email" gorm:"column:customer_email"`
	CustomerPhone   string          `json:"customer_phone" gorm:"column:customer_phone;size:32"`
	ShippingAddress string          `json:"shipping_address" gorm:"column:shipping_address;type:text"`
	Subtotal        decimal.Decimal `json:"subtotal" gorm:"column:subtotal;type:decimal(10,2);not null"`
	DiscountAmount  decimal.Decimal `json:"discount_amount" gorm:"column:discount_amount;type:decimal(10,2);not null;default:0"`
	TotalPrice      decimal.Decimal `json:"total_price" gorm:"column:total_price;type:decimal(10,2);not null"`
	PaymentMethod   PaymentMethod   `json:"payment_method" gorm:"column:payment_method;size:32;not null"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"column:payment_status;size:16;index;not null;default:'pending'"`
	OrderStatus     Status          `json:"order_status" gorm:"column:order_status;size:16;not null;default:'processing'"`
	Notes           string          `json:"notes" gorm:"column:notes;type:text"`

	ReferredByUser      *string          `json:"referred_by_user" gorm:"column:referred_by_user;index"`
	AffiliateCodeID     *string          `json:"affiliate_code_id" gorm:"column:affiliate_code_id;index"`
	AffiliateCodeText   *string          `json:"affiliate_code_text" gorm:"column:affiliate_code_text;size:20"`
	AppliedDiscountCode *string          `json:"applied_discount_code" gorm:"column:applied_discount_code;size:20"`
	CommissionRate      *decimal.Decimal `json:"commission_rate" gorm:"column:commission_rate;type:decimal(5,4)"`
	CommissionAmount    *decimal.Decimal `json:"commission_amount" gorm:"column:commission_amount;type:decimal(10,2)"`

	PaidAt    *time.Time `json:"paid_at" gorm:"column:paid_at"`
	ShippedAt *time.Time `json:"shipped_at" gorm:"column:shipped_at"`
	CreatedAt time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"column:updated_at"`

	Items []Item `json:"items" gorm:"foreignKey:OrderID;references:OrderID"`
}

func (Order) TableName() string { return "orders" }

// Item is one priced line of an order. Name and Price are snapshots taken
// at checkout.
type Item struct {
	ItemID    int64           `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement"`
	OrderID   string          `json:"order_id" gorm:"column:order_id;index;not null"`
	ProductID string          `json:"product_id" gorm:"column:product_id;not null"`
	Name      string          `json:"name" gorm:"column:name;not null"`
	Quantity  int             `json:"quantity" gorm:"column:quantity;not null"`
	Price     decimal.Decimal `json:"price" gorm:"column:price;type:decimal(10,2);not null"`
}

func (Item) TableName() string { return "order_items" }
