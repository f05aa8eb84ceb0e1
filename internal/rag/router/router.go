// Package router provides RAG service routing.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/pdfrag/internal/rag/handler"
)

// Register registers the RAG service routes.
// metrics 为 nil 时不暴露 /metrics。
func Register(engine *gin.Engine, ragHandler *handler.RAGHandler, healthHandler *handler.HealthHandler, metrics http.Handler) {
	logger.Info("Registering RAG routes...")

	if healthHandler != nil {
		engine.GET("/health", healthHandler.Health)
	}
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := engine.Group("/v1")
	{
		rag := v1.Group("/rag")
		{
			rag.POST("/query", ragHandler.Query)
			rag.POST("/upload", ragHandler.Upload)

			rag.GET("/collections", ragHandler.Collections)
			rag.DELETE("/collections/:name", ragHandler.DeleteCollection)
			rag.DELETE("/collections/:name/documents/:id", ragHandler.DeleteDocument)
		}
	}

	logger.Info("HTTP routes registered")
}
