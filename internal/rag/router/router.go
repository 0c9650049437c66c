// Package router provides RAG service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/internal/rag/handler"
	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/utils/response"
)

// Register registers the RAG service routes.
func Register(engine *gin.Engine, ragHandler *handler.RAGHandler) {
	engine.GET("/health", ragHandler.Health)
	engine.GET("/ready", ragHandler.Ready)
	engine.GET("/metrics", ragHandler.Metrics)

	v1 := engine.Group("/v1")
	{
		rag := v1.Group("/rag")
		{
			rag.POST("/documents", ragHandler.CreateDocument)
			rag.GET("/documents/:id", ragHandler.GetDocument)
			rag.POST("/documents/:id/ingest", ragHandler.IngestDocument)
			rag.GET("/documents/:id/subjects", ragHandler.ListSubjects)

			rag.POST("/retrieve", ragHandler.Retrieve)
			rag.GET("/stats", ragHandler.Stats)
		}
	}

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, errors.ErrRouteNotFound)
	})

	logger.Infow("HTTP routes registered", "routes", len(engine.Routes()))
}
