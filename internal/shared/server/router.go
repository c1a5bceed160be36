package server

import (
	"github.com/gin-gonic/gin"

	"lambda-janitor/internal/shared/server/middleware"
)

// NewEngine constructs a Gin engine with the shared middleware chain. Requests to
// quietPaths are served but not logged.
func NewEngine(quietPaths ...string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(quietPaths...),
		middleware.Recovery(),
	)
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
