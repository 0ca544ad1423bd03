package affiliate

import (
	"net/http"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"aurelia-commerce/internal/httpapi"
	"aurelia-commerce/internal/middleware"
	"aurelia-commerce/pkg/db/pagination"
	"aurelia-commerce/pkg/errutil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type RouteParams struct {
	fx.In

	Engine   *gin.Engine
	Handler  *Handler
	Verifier middleware.TokenVerifier
	Enforcer *casbin.Enforcer
}

func RegisterRoutes(p RouteParams) {
	grp := p.Engine.Group("/api/affiliate")

	// Storefront endpoints, no auth: code validation at checkout and
	// referral click tracking.
	grp.GET("/code/:code", p.Handler.ValidateCode)
	grp.GET("/click/:code", p.Handler.TrackClick)

	auth := grp.Group("", middleware.RequireAuth(p.Verifier), middleware.RequireAccess(p.Enforcer))
	auth.GET("/generate-code", p.Handler.GenerateCode)
	auth.POST("/links", p.Handler.CreateCode)
	auth.GET("/links", p.Handler.ListCodes)
	auth.GET("/links/:codeId", p.Handler.GetCode)
	auth.PUT("/links/:codeId", p.Handler.UpdateCode)
	auth.DELETE("/links/:codeId", p.Handler.DeleteCode)
	auth.GET("/earnings", p.Handler.Earnings)
	auth.GET("/conversions", p.Handler.RecentConversions)
}

type createCodeRequest struct {
	LinkCode       string           `json:"link_code"`
	DiscountRate   *decimal.Decimal `json:"discount_rate"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
	ExpiresAt      *time.Time       `json:"expires_at"`
}

func (h *Handler) CreateCode(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	var req createCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	view, err := h.svc.Create(c.Request.Context(), CreateCodeInput{
		OwnerUserID:    id.UserID,
		CodeText:       req.LinkCode,
		DiscountRate:   req.DiscountRate,
		CommissionRate: req.CommissionRate,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.Created(c, "affiliate code created", gin.H{"link": view})
}

func (h *Handler) GenerateCode(c *gin.Context) {
	code, err := h.svc.GenerateCode(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"link_code": code})
}

func (h *Handler) ListCodes(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	var pg pagination.Params
	if err := c.ShouldBindQuery(&pg); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid pagination parameters", err))
		return
	}

	views, meta, err := h.svc.List(c.Request.Context(), id.UserID, c.Query("status"), pg)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"links": views, "pagination": meta})
}

func (h *Handler) GetCode(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	view, stats, err := h.svc.Get(c.Request.Context(), id.UserID, c.Param("codeId"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"link": view, "click_stats": stats})
}

type updateCodeRequest struct {
	Status      *string    `json:"status"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

func (h *Handler) UpdateCode(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	var req updateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	view, err := h.svc.Update(c.Request.Context(), id.UserID, c.Param("codeId"), UpdateCodeInput{
		Status:      req.Status,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "affiliate code updated", gin.H{"link": view})
}

func (h *Handler) DeleteCode(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	if err := h.svc.Delete(c.Request.Context(), id.UserID, c.Param("codeId")); err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "affiliate code deleted", nil)
}

// ValidateCode is the checkout-time lookup. An expired code answers 404 like
// an unknown one; the storefront treats both as "code not usable".
func (h *Handler) ValidateCode(c *gin.Context) {
	code, err := h.svc.LookupActive(c.Request.Context(), c.Param("code"))
	if err != nil {
		if IsExpired(err) {
			c.JSON(http.StatusNotFound, httpapi.Envelope{
				Success: false,
				Message: "affiliate code has expired",
				Error:   string(errutil.StatusGone),
			})
			return
		}
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{
		"code":            code.CodeText,
		"discount_rate":   code.DiscountRate,
		"commission_rate": code.CommissionRate,
	})
}

func (h *Handler) TrackClick(c *gin.Context) {
	result, err := h.svc.RecordClick(
		c.Request.Context(),
		c.Param("code"),
		c.ClientIP(),
		c.GetHeader("User-Agent"),
		c.GetHeader("Referer"),
	)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "click recorded", result)
}

func (h *Handler) Earnings(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	start, err := parseDate(c.Query("start_date"))
	if err != nil {
		httpapi.Fail(c, errutil.ValidationFailed("invalid start_date", err))
		return
	}
	end, err := parseEndDate(c.Query("end_date"))
	if err != nil {
		httpapi.Fail(c, errutil.ValidationFailed("invalid end_date", err))
		return
	}

	report, err := h.svc.Earnings(c.Request.Context(), id.UserID, start, end, c.Query("period"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, report)
}

func (h *Handler) RecentConversions(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	views, err := h.svc.RecentConversions(c.Request.Context(), id.UserID, 5)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"conversions": views})
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseEndDate extends a date-only bound to the end of that day so the
// inclusive created_at filter covers the day's orders.
func parseEndDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return &t, nil
}
