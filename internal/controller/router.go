package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func NewRouter(c *Controller) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(ctx *gin.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	})

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "research-assistant"})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/sessions", c.CreateSession)
		apiV1.GET("/sessions/:id", c.GetSession)
		apiV1.DELETE("/sessions/:id", c.DeleteSession)
		apiV1.POST("/sessions/:id/upload", c.Upload)
		apiV1.PUT("/sessions/:id/mode", c.SetMode)
		apiV1.POST("/sessions/:id/ask", c.Ask)
		apiV1.POST("/sessions/:id/quiz", c.GenerateQuiz)
		apiV1.POST("/sessions/:id/answers", c.SubmitAnswers)

		apiV1.GET("/index", c.IndexStats)
		apiV1.DELETE("/index", c.ClearIndex)
		apiV1.DELETE("/index/uploads/:upload_id", c.DeleteUpload)
	}
	return router
}
