package httpapi

import (
	"strconv"

	"telephone-billing/internal/observability"

	"github.com/gin-gonic/gin"
)

// Register mounts the billing API on r.
func Register(r gin.IRouter, h Handlers) {
	r.POST("/registry", h.PostRegistry)
	r.GET("/registry/:id", h.GetRegistry)

	r.GET("/task", h.ListTasks)
	r.GET("/task/:job_id", h.GetTask)

	r.GET("/calls", h.ListCalls)
	r.GET("/calls/:call_id", h.GetCall)

	r.GET("/bills", h.GetBill)
	r.GET("/bills/:subscriber", h.GetBill)
	r.GET("/bills/:subscriber/:month", h.GetBill)
	r.GET("/bills/:subscriber/:month/:year", h.GetBill)
}

// Metrics counts requests per route template and status.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		observability.APIRequests.WithLabelValues(endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
