package user

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
	auth := p.Engine.Group("/api/auth")
	auth.POST("/register", p.Handler.Register)
	auth.POST("/login", p.Handler.Login)

	users := p.Engine.Group("/api/users", middleware.RequireAuth(p.Verifier))
	users.GET("/profile", p.Handler.GetProfile)
	users.PUT("/profile", p.Handler.UpdateProfile)
	users.PUT("/password", p.Handler.ChangePassword)

	admin := p.Engine.Group("/api/users", middleware.RequireAuth(p.Verifier), middleware.RequireAccess(p.Enforcer))
	admin.GET("", p.Handler.List)
	admin.PUT("/:userId/role", p.Handler.UpdateRole)
	admin.PUT("/:userId/status", p.Handler.UpdateStatus)
	admin.DELETE("/:userId", p.Handler.Delete)
}

func (h *Handler) Register(c *gin.Context) {
	var in RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	u, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.Created(c, "account created", gin.H{"user": u})
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	token, u, err := h.svc.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "login successful", gin.H{"token": token, "user": u})
}

func (h *Handler) GetProfile(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	u, err := h.svc.Get(c.Request.Context(), id.UserID)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"user": u})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	var in UpdateProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	u, err := h.svc.UpdateProfile(c.Request.Context(), id.UserID, in)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "profile updated", gin.H{"user": u})
}

func (h *Handler) List(c *gin.Context) {
	var pg pagination.Params
	if err := c.ShouldBindQuery(&pg); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid pagination parameters", err))
		return
	}

	users, meta, err := h.svc.List(c.Request.Context(), pg)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OK(c, gin.H{"users": users, "pagination": meta})
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handler) UpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	u, err := h.svc.UpdateRole(c.Request.Context(), c.Param("userId"), Role(req.Role))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "role updated", gin.H{"user": u})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	u, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("userId"), AccountStatus(req.Status))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "status updated", gin.H{"user": u})
}

func (h *Handler) Delete(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	if id.UserID == c.Param("userId") {
		httpapi.Fail(c, errutil.BadRequest("cannot delete your own account", nil))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("userId")); err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "user deleted", nil)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		httpapi.Fail(c, err)
		return
	}
	httpapi.OKMessage(c, "password changed", nil)
}
