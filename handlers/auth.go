package handlers

import (
	"net/http"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type AuthHandler struct {
	responder
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService, logger *zap.Logger, development bool) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger, development: development},
		auth:      auth,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "Register")
	defer span.End()

	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	resp, err := h.auth.Register(ctx, req)
	if err != nil {
		h.fail(c, span, err, "Error registering user")
		return
	}

	span.SetAttributes(attribute.String("user.id", resp.User.ID.Hex()))
	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "Login")
	defer span.End()

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	resp, err := h.auth.Login(ctx, req)
	if err != nil {
		h.fail(c, span, err, "Error logging in")
		return
	}

	span.SetAttributes(attribute.String("user.id", resp.User.ID.Hex()))
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Me(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "Me")
	defer span.End()

	caller, _ := middleware.CurrentCaller(c)
	user, err := h.auth.Me(ctx, caller)
	if err != nil {
		h.fail(c, span, err, "Error fetching user")
		return
	}

	c.JSON(http.StatusOK, user)
}
