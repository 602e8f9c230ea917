package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gnresolver/models"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "google-news-resolver"

// Health returns a handler for GET /health. It never touches the browser.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			OK:      true,
			Service: ServiceName,
			Time:    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
