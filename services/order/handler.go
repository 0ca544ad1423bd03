package order

import (
	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
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
	grp := p.Engine.Group("/api/orders")

	// Checkout works for guests; a valid token attaches the order to the
	// account.
	grp.POST("", middleware.OptionalAuth(p.Verifier), p.Handler.Create)

	grp.GET("", middleware.RequireAuth(p.Verifier), middleware.RequireAccess(p.Enforcer), p.Handler.List)
	grp.GET("/user/:userId", middleware.RequireAuth(p.Verifier), p.Handler.ListByUser)
	grp.GET("/:orderId", p.Handler.Get)
	grp.PUT("/:orderId/pay", p.Handler.Pay)
	grp.PUT("/:orderId/status", middleware.RequireAuth(p.Verifier), middleware.RequireAccess(p.Enforcer), p.Handler.UpdateStatus)
	grp.DELETE("/:orderId", middleware.RequireAuth(p.Verifier), middleware.RequireAccess(p.Enforcer), p.Handler.Delete)
}

type createRequest struct {
	CustomerInfo  CustomerInfo  `json:"customerInfo"`
	CartItems     []CartItem    `json:"cartItems"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Notes         string        `json:"notes"`
	DiscountCode  string        `json:"discountCode"`
	AffiliateRef  string        `json:"affiliateRef"`
	ClickID       string        `json:"clickId"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	in := CreateInput{
		Customer:      req.CustomerInfo,
		CartItems:     req.CartItems,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		DiscountCode:  req.DiscountCode,
		AffiliateRef:  req.AffiliateRef,
		ClickID:       req.ClickID,
	}
	if id, ok := middleware.IdentityFrom(c); ok {
		in.UserID = &id.UserID
	}

	o, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.Created(c, "order created", gin.H{"order": o})
}

func (h *Handler) Pay(c *gin.Context) {
	o, err := h.svc.Pay(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "payment confirmed", gin.H{"order": o})
}

func (h *Handler) Get(c *gin.Context) {
	o, err := h.svc.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"order": o})
}

func (h *Handler) List(c *gin.Context) {
	var pg pagination.Params
	if err := c.ShouldBindQuery(&pg); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid pagination parameters", err))
		return
	}

	orders, meta, err := h.svc.List(c.Request.Context(), pg)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"orders": orders, "pagination": meta})
}

func (h *Handler) ListByUser(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	orders, err := h.svc.ListByUser(c.Request.Context(), id.UserID, id.Role, c.Param("userId"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"orders": orders})
}

type updateStatusRequest struct {
	OrderStatus string `json:"order_status" binding:"required"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	o, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("orderId"), Status(req.OrderStatus))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "order status updated", gin.H{"order": o})
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("orderId")); err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "order deleted", nil)
}
