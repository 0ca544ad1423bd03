package order

import (
	"gorm.io/gorm"

	"aurelia-commerce/pkg/errutil"
	"aurelia-commerce/pkg/money"
)

// settle credits the commission for an attributed order that just completed.
// It runs inside the transaction that performed the completion.
//
// The commission_amount IS NULL guard is what makes settlement exactly-once:
// whichever transaction wins the guarded update owns the click binding and
// the aggregate bumps, and every later attempt is a no-op.
func (s *Service) settle(tx *gorm.DB, o *Order, clickID string) error {
	if o.AffiliateCodeID == nil || o.CommissionRate == nil {
		return nil
	}

	commission := money.ApplyRate(o.TotalPrice, *o.CommissionRate)
	res := tx.Model(&Order{}).
		Where("order_id = ? AND commission_amount IS NULL", o.OrderID).
		Update("commission_amount", commission)
	if res.Error != nil {
		return errutil.Internal("failed to credit commission", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	o.CommissionAmount = &commission

	codeID := *o.AffiliateCodeID
	if clickID != "" {
		// A carried click hint binds that click or nothing: a stale or
		// already-bound hint never steals another visit's click.
		if _, err := s.affiliates.BindClick(tx, clickID, codeID, o.OrderID, o.TotalPrice, commission); err != nil {
			return err
		}
	} else {
		if _, err := s.affiliates.ConvertLatestClick(tx, codeID, o.OrderID, o.TotalPrice, commission); err != nil {
			return err
		}
	}

	return s.affiliates.RecordSale(tx, codeID, o.TotalPrice, commission)
}
