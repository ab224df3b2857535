// Package http wires feature modules into the Gin engine.
package http

import "github.com/gin-gonic/gin"

// RouterContext carries the route groups modules attach their endpoints to.
type RouterContext struct {
	// Public routes require no authentication (intake, health).
	Public *gin.RouterGroup
	// Protected routes require a valid access token.
	Protected *gin.RouterGroup
	// Admin routes additionally require the admin role.
	Admin *gin.RouterGroup
}

// Module is a feature slice that registers its own routes.
type Module interface {
	RegisterRoutes(rc RouterContext)
}
