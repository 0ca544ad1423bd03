package affiliate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aurelia-commerce/pkg/config"
	"aurelia-commerce/pkg/db/pagination"
	"aurelia-commerce/pkg/errutil"
	"aurelia-commerce/pkg/money"
)

var (
	codeTextPattern = regexp.MustCompile(`^[a-zA-Z0-9]{6,20}$`)

	defaultDiscountRate   = decimal.NewFromFloat(0.10)
	defaultCommissionRate = decimal.NewFromFloat(0.05)
)

const (
	generatedCodeLength  = 8
	generateCodeAttempts = 10
	codeCharset          = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Service owns affiliate codes and their click log. The conversion methods
// taking a *gorm.DB run inside the caller's transaction so that an order and
// its commission commit or roll back together.
type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	baseURL string
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Cfg  *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, node: p.Node, baseURL: p.Cfg.Site.BaseURL}
}

// CodeView is a Code plus its derived referral URL.
type CodeView struct {
	*Code
	FullURL string `json:"full_url"`
}

func (s *Service) view(c *Code) *CodeView {
	return &CodeView{Code: c, FullURL: c.ReferralURL(s.baseURL)}
}

type CreateCodeInput struct {
	OwnerUserID    string
	CodeText       string
	DiscountRate   *decimal.Decimal
	CommissionRate *decimal.Decimal
	ExpiresAt      *time.Time
}

// Create registers a new code. An empty CodeText asks for a generated one.
// The code text is stored as entered; uniqueness is case-insensitive.
func (s *Service) Create(ctx context.Context, in CreateCodeInput) (*CodeView, error) {
	text := strings.TrimSpace(in.CodeText)
	if text == "" {
		generated, err := s.GenerateCode(ctx)
		if err != nil {
			return nil, err
		}
		text = generated
	} else if !codeTextPattern.MatchString(text) {
		return nil, ErrInvalidCodeFormat
	}

	discount := defaultDiscountRate
	if in.DiscountRate != nil {
		discount = *in.DiscountRate
	}
	commission := defaultCommissionRate
	if in.CommissionRate != nil {
		commission = *in.CommissionRate
	}
	if !rateValid(discount) || !rateValid(commission) {
		return nil, ErrInvalidRate
	}

	taken, err := s.codeTextTaken(ctx, s.db, text)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrCodeExists
	}

	code := &Code{
		CodeID:         s.node.Generate().String(),
		OwnerUserID:    in.OwnerUserID,
		CodeText:       text,
		DiscountRate:   discount,
		CommissionRate: commission,
		Status:         StatusActive,
		ExpiresAt:      in.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(code).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCodeExists
		}
		return nil, errutil.Internal("failed to create affiliate code", err)
	}

	zap.L().Info("affiliate code created",
		zap.String("code_id", code.CodeID),
		zap.String("owner_user_id", code.OwnerUserID))
	return s.view(code), nil
}

// GenerateCode returns a random unused code suggestion without reserving it.
func (s *Service) GenerateCode(ctx context.Context) (string, error) {
	for i := 0; i < generateCodeAttempts; i++ {
		candidate, err := randomCodeText(generatedCodeLength)
		if err != nil {
			return "", errutil.Internal("failed to generate code", err)
		}
		taken, err := s.codeTextTaken(ctx, s.db, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrGenerationExhausted
}

func randomCodeText(length int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(codeCharset)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeCharset[n.Int64()])
	}
	return b.String(), nil
}

func rateValid(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(decimal.NewFromInt(1))
}

func (s *Service) codeTextTaken(ctx context.Context, tx *gorm.DB, text string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&Code{}).
		Where("LOWER(code_text) = LOWER(?)", text).
		Count(&count).Error
	if err != nil {
		return false, errutil.Internal("failed to check code uniqueness", err)
	}
	return count > 0, nil
}

// List returns the owner's codes, newest first.
func (s *Service) List(ctx context.Context, ownerUserID, status string, pg pagination.Params) ([]*CodeView, *pagination.Meta, error) {
	pg.Normalize()

	query := s.db.WithContext(ctx).Model(&Code{}).Where("owner_user_id = ?", ownerUserID)
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, errutil.Internal("failed to count affiliate codes", err)
	}

	var codes []*Code
	err := query.
		Order("created_at DESC").
		Offset(pg.Offset()).
		Limit(pg.Limit).
		Find(&codes).Error
	if err != nil {
		return nil, nil, errutil.Internal("failed to list affiliate codes", err)
	}

	views := make([]*CodeView, 0, len(codes))
	for _, c := range codes {
		views = append(views, s.view(c))
	}
	return views, pagination.NewMeta(total, pg), nil
}

// ClickStat is one day of click activity.
type ClickStat struct {
	Date        string `json:"date"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
}

// Get returns one of the owner's codes together with its last 30 days of
// click activity, newest day first.
func (s *Service) Get(ctx context.Context, ownerUserID, codeID string) (*CodeView, []ClickStat, error) {
	code, err := s.ownedCode(ctx, ownerUserID, codeID)
	if err != nil {
		return nil, nil, err
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	var clicks []Click
	err = s.db.WithContext(ctx).
		Where("code_id = ? AND clicked_at >= ?", codeID, since).
		Order("clicked_at DESC").
		Find(&clicks).Error
	if err != nil {
		return nil, nil, errutil.Internal("failed to load click stats", err)
	}

	// Bucketing happens here rather than in SQL so the query stays
	// identical across sqlite and postgres.
	byDay := make(map[string]*ClickStat)
	order := make([]string, 0)
	for _, click := range clicks {
		day := click.ClickedAt.UTC().Format("2006-01-02")
		stat, ok := byDay[day]
		if !ok {
			stat = &ClickStat{Date: day}
			byDay[day] = stat
			order = append(order, day)
		}
		stat.Clicks++
		if click.Converted {
			stat.Conversions++
		}
	}
	stats := make([]ClickStat, 0, len(order))
	for _, day := range order {
		stats = append(stats, *byDay[day])
	}
	return s.view(code), stats, nil
}

type UpdateCodeInput struct {
	Status      *string
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// Update changes status or expiry. Code text and rates are immutable once
// created; orders snapshot the rate they were attributed under.
func (s *Service) Update(ctx context.Context, ownerUserID, codeID string, in UpdateCodeInput) (*CodeView, error) {
	code, err := s.ownedCode(ctx, ownerUserID, codeID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Status != nil {
		status := CodeStatus(*in.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		updates["status"] = status
		code.Status = status
	}
	if in.ClearExpiry {
		updates["expires_at"] = nil
		code.ExpiresAt = nil
	} else if in.ExpiresAt != nil {
		updates["expires_at"] = *in.ExpiresAt
		code.ExpiresAt = in.ExpiresAt
	}
	if len(updates) == 0 {
		return s.view(code), nil
	}

	err = s.db.WithContext(ctx).
		Model(&Code{}).
		Where("code_id = ?", codeID).
		Updates(updates).Error
	if err != nil {
		return nil, errutil.Internal("failed to update affiliate code", err)
	}
	return s.view(code), nil
}

// Delete removes a code and its clicks. Codes with converted clicks are
// kept because completed orders reference them in earnings reports.
func (s *Service) Delete(ctx context.Context, ownerUserID, codeID string) error {
	if _, err := s.ownedCode(ctx, ownerUserID, codeID); err != nil {
		return err
	}

	var converted int64
	err := s.db.WithContext(ctx).
		Model(&Click{}).
		Where("code_id = ? AND converted = ?", codeID, true).
		Count(&converted).Error
	if err != nil {
		return errutil.Internal("failed to check conversions", err)
	}
	if converted > 0 {
		return ErrHasConversions
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code_id = ?", codeID).Delete(&Click{}).Error; err != nil {
			return err
		}
		return tx.Where("code_id = ?", codeID).Delete(&Code{}).Error
	})
	if err != nil {
		return errutil.Internal("failed to delete affiliate code", err)
	}

	zap.L().Info("affiliate code deleted",
		zap.String("code_id", codeID),
		zap.String("owner_user_id", ownerUserID))
	return nil
}

func (s *Service) ownedCode(ctx context.Context, ownerUserID, codeID string) (*Code, error) {
	var code Code
	err := s.db.WithContext(ctx).
		Where("code_id = ? AND owner_user_id = ?", codeID, ownerUserID).
		First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, errutil.Internal("failed to load affiliate code", err)
	}
	return &code, nil
}

// LookupActive resolves a code text to a usable code. Lookup is
// case-insensitive. Inactive codes are reported as not found so the code
// space is not probeable; expired codes are reported as gone.
func (s *Service) LookupActive(ctx context.Context, codeText string) (*Code, error) {
	return s.lookupActive(ctx, s.db, codeText)
}

func (s *Service) lookupActive(ctx context.Context, tx *gorm.DB, codeText string) (*Code, error) {
	var code Code
	err := tx.WithContext(ctx).
		Where("LOWER(code_text) = LOWER(?)", strings.TrimSpace(codeText)).
		First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, errutil.Internal("failed to look up affiliate code", err)
	}
	if code.Status != StatusActive {
		return nil, ErrCodeInactive
	}
	if code.Expired(time.Now().UTC()) {
		return nil, ErrCodeExpired
	}
	return &code, nil
}

// ClickResult is what the tracking endpoint hands back to the storefront.
type ClickResult struct {
	ClickID     string `json:"click_id"`
	RedirectURL string `json:"redirect_url"`
}

// RecordClick logs a visit through a referral link. The click row and the
// counter bump commit together.
func (s *Service) RecordClick(ctx context.Context, codeText, clientIP, userAgent, referrer string) (*ClickResult, error) {
	code, err := s.LookupActive(ctx, codeText)
	if err != nil {
		return nil, err
	}

	click := &Click{
		ClickID:     s.node.Generate().String(),
		CodeID:      code.CodeID,
		OwnerUserID: code.OwnerUserID,
		ClientIP:    clientIP,
		UserAgent:   userAgent,
		Referrer:    referrer,
		ClickedAt:   time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(click).Error; err != nil {
			return err
		}
		return tx.Model(&Code{}).
			Where("code_id = ?", code.CodeID).
			UpdateColumn("total_clicks", gorm.Expr("total_clicks + ?", 1)).Error
	})
	if err != nil {
		return nil, errutil.Internal("failed to record click", err)
	}

	return &ClickResult{
		ClickID:     click.ClickID,
		RedirectURL: fmt.Sprintf("%s?ref=%s&click_id=%s", s.baseURL, code.CodeText, click.ClickID),
	}, nil
}

// BindClick converts a specific click for an order. The guarded update makes
// binding first-wins: a click already converted, here or concurrently, is
// left untouched. Runs inside the caller's transaction.
func (s *Service) BindClick(tx *gorm.DB, clickID, codeID, orderID string, value, commission decimal.Decimal) (bool, error) {
	var click Click
	err := tx.Where("click_id = ? AND code_id = ?", clickID, codeID).First(&click).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errutil.Internal("failed to load click", err)
	}
	if click.Converted {
		return false, nil
	}
	return s.convertClick(tx, click.ClickID, orderID, value, commission)
}

// ConvertLatestClick binds the newest unconverted click of a code to an
// order. Returns false when the code has no unconverted clicks.
func (s *Service) ConvertLatestClick(tx *gorm.DB, codeID, orderID string, value, commission decimal.Decimal) (bool, error) {
	var click Click
	err := tx.Where("code_id = ? AND converted = ?", codeID, false).
		Order("clicked_at DESC, click_id DESC").
		First(&click).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errutil.Internal("failed to find click for conversion", err)
	}
	return s.convertClick(tx, click.ClickID, orderID, value, commission)
}

func (s *Service) convertClick(tx *gorm.DB, clickID, orderID string, value, commission decimal.Decimal) (bool, error) {
	now := time.Now().UTC()
	res := tx.Model(&Click{}).
		Where("click_id = ? AND converted = ?", clickID, false).
		Updates(map[string]interface{}{
			"order_id":          orderID,
			"converted":         true,
			"conversion_value":  money.Round(value),
			"commission_earned": commission,
			"converted_at":      now,
		})
	if res.Error != nil {
		return false, errutil.Internal("failed to convert click", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RecordSale folds a completed attributed order into the code's aggregates.
// Runs inside the caller's transaction.
func (s *Service) RecordSale(tx *gorm.DB, codeID string, revenue, commission decimal.Decimal) error {
	res := tx.Model(&Code{}).
		Where("code_id = ?", codeID).
		UpdateColumns(map[string]interface{}{
			"total_orders":     gorm.Expr("total_orders + ?", 1),
			"total_revenue":    gorm.Expr("total_revenue + ?", revenue),
			"total_commission": gorm.Expr("total_commission + ?", commission),
		})
	if res.Error != nil {
		return errutil.Internal("failed to record sale", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.Internal("affiliate code vanished during sale", nil)
	}
	return nil
}
