package handlers

import (
	"context"
	"net/http"
	"time"

	"shop-svc/database"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	pinger database.Pinger
	env    string
	port   string
}

// NewHealthHandler accepts a nil pinger for stores that have no remote connection.
func NewHealthHandler(pinger database.Pinger, env, port string) *HealthHandler {
	return &HealthHandler{pinger: pinger, env: env, port: port}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":      "ok",
		"environment": h.env,
		"port":        h.port,
		"database":    "memory",
	}

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.pinger.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "disconnected"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "connected"
	}

	c.JSON(http.StatusOK, body)
}
