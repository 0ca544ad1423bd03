package catalog

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
	products := p.Engine.Group("/api/products")
	products.GET("", p.Handler.ListProducts)
	products.GET("/:productId", p.Handler.GetProduct)
	products.POST("", middleware.RequireAuth(p.Verifier), middleware.RequireAccess(p.Enforcer), p.Handler.CreateProduct)

	categories := p.Engine.Group("/api/categories")
	categories.GET("", p.Handler.ListCategories)
	categories.POST("", middleware.RequireAuth(p.Verifier), middleware.RequireAccess(p.Enforcer), p.Handler.CreateCategory)
}

func (h *Handler) ListProducts(c *gin.Context) {
	var pg pagination.Params
	if err := c.ShouldBindQuery(&pg); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid pagination parameters", err))
		return
	}

	products, meta, err := h.svc.ListProducts(c.Request.Context(), c.Query("category_id"), pg)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"products": products, "pagination": meta})
}

func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.svc.GetProduct(c.Request.Context(), c.Param("productId"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"product": p})
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var in CreateProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	p, err := h.svc.CreateProduct(c.Request.Context(), in)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.Created(c, "product created", gin.H{"product": p})
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"categories": categories})
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var in CreateCategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	cat, err := h.svc.CreateCategory(c.Request.Context(), in)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.Created(c, "category created", gin.H{"category": cat})
}
