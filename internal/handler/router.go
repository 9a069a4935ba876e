package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Results *ResultHandler
	Index   *IndexHandler
}

func RegisterRoutes(root *gin.RouterGroup, deps RouterDeps) {
	api := root.Group("/api")
	api.GET("/check-connection", deps.Results.CheckConnection)
	api.POST("/check", deps.Results.Check)
	api.POST("/save-result", deps.Results.Save)
	api.DELETE("/delete-directions", deps.Results.Delete)

	if deps.Index != nil {
		root.GET("/", deps.Index.Index)
		root.Static("/static", deps.Index.dir)
	}
}
