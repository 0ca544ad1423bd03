package affiliate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CodeStatus is the lifecycle state of an affiliate code.
type CodeStatus string

const (
	StatusActive    CodeStatus = "active"
	StatusInactive  CodeStatus = "inactive"
	StatusSuspended CodeStatus = "suspended"
)

// Valid reports whether s is a known code status.
func (s CodeStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// Code is a referral code owned by an affiliate user. Rates are stored as
// fractions (0.0500 means 5%). The aggregate counters are maintained by the
// click and commission paths and are never recomputed from scratch.
type Code struct {
	CodeID          string          `json:"code_id" gorm:"column:code_id;primaryKey"`
	OwnerUserID     string          `json:"owner_user_id" gorm:"column:owner_user_id;index;not null"`
	CodeText        string          `json:"link_code" gorm:"column:code_text;size:20;uniqueIndex;not null"`
	DiscountRate    decimal.Decimal `json:"discount_rate" gorm:"column:discount_rate;type:decimal(5,4);not null"`
	CommissionRate  decimal.Decimal `json:"commission_rate" gorm:"column:commission_rate;type:decimal(5,4);not null"`
	TotalClicks     int64           `json:"total_clicks" gorm:"column:total_clicks;not null;default:0"`
	TotalOrders     int64           `json:"total_orders" gorm:"column:total_orders;not null;default:0"`
	TotalRevenue    decimal.Decimal `json:"total_revenue" gorm:"column:total_revenue;type:decimal(10,2);not null;default:0"`
	TotalCommission decimal.Decimal `json:"total_commission" gorm:"column:total_commission;type:decimal(10,2);not null;default:0"`
	Status          CodeStatus      `json:"status" gorm:"column:status;size:16;index;not null;default:'active'"`
	ExpiresAt       *time.Time      `json:"expires_at" gorm:"column:expires_at"`
	CreatedAt       time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"column:updated_at"`

	Clicks []Click `json:"-" gorm:"foreignKey:CodeID;references:CodeID"`
}

func (Code) TableName() string { return "affiliate_codes" }

// Expired reports whether the code's expiry, if set, has passed.
func (c *Code) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// ReferralURL builds the shareable landing URL for the code.
func (c *Code) ReferralURL(base string) string {
	return fmt.Sprintf("%s?ref=%s", base, c.CodeText)
}

// Click is one recorded visit through a referral link. A click binds to at
// most one order; once Converted is set it never unbinds.
type Click struct {
	ClickID          string          `json:"click_id" gorm:"column:click_id;primaryKey"`
	CodeID           string          `json:"code_id" gorm:"column:code_id;index;not null"`
	OwnerUserID      string          `json:"owner_user_id" gorm:"column:owner_user_id;index;not null"`
	OrderID          *string         `json:"order_id" gorm:"column:order_id;index"`
	ClientIP         string          `json:"client_ip" gorm:"column:client_ip;size:45"`
	UserAgent        string          `json:"user_agent" gorm:"column:user_agent;type:text"`
	Referrer         string          `json:"referrer" gorm:"column:referrer;type:text"`
	Converted        bool            `json:"converted" gorm:"column:converted;index;not null;default:false"`
	ConversionValue  decimal.Decimal `json:"conversion_value" gorm:"column:conversion_value;type:decimal(10,2);not null;default:0"`
	CommissionEarned decimal.Decimal `json:"commission_earned" gorm:"column:commission_earned;type:decimal(10,2);not null;default:0"`
	ClickedAt        time.Time       `json:"clicked_at" gorm:"column:clicked_at;index;not null"`
	ConvertedAt      *time.Time      `json:"converted_at" gorm:"column:converted_at"`
}

func (Click) TableName() string { return "affiliate_clicks" }
