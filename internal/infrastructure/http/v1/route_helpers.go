// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// CRUDRouteHandler is implemented by the product and lot handlers.
type CRUDRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterCRUDRoutes registers the standard list/create/get/update/delete
// routes of an entity group. mutating is applied to the write routes only.
//
// Usage:
//
//	RegisterCRUDRoutes(api.Group("/products"), productHandler, idempotency)
func RegisterCRUDRoutes(group *gin.RouterGroup, handler CRUDRouteHandler, mutating ...gin.HandlerFunc) {
	write := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, mutating...), h)
	}
	group.GET("", handler.List)
	group.POST("", write(handler.Create)...)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", write(handler.Update)...)
	group.DELETE("/:id", write(handler.Delete)...)
}
