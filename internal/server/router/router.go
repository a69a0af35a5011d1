package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/chickenstock/internal/server/handlers"
)

const requestIDHeader = "X-Request-ID"

// New wires the Gin engine with required routes and middlewares.
func New(handler *handlers.LedgerHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))
	r.SetHTMLTemplate(handlers.Templates())

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, "/ledger/sneha")
	})
	r.GET("/ledger", handler.SelectCompany)
	r.GET("/ledger/:company", handler.Page)
	r.POST("/ledger/:company/entries", handler.SubmitEntryForm)
	r.POST("/ledger/:company/delete", handler.SubmitDeleteForm)

	api := r.Group("/api")
	{
		api.GET("/companies", handler.ListCompanies)
		api.GET("/ledgers/:company", handler.GetLedger)
		api.POST("/ledgers/:company/preview", handler.PreviewEntry)
		api.POST("/ledgers/:company/entries", handler.AddEntry)
		api.POST("/ledgers/:company/entries/delete", handler.DeleteRows)
		api.GET("/reports/daily", handler.DailyReport)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")))
	}
}
