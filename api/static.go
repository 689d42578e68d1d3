package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServeStaticFiles configures routes for the subscription page assets
func (s *Server) ServeStaticFiles() {
	s.router.GET("/", func(c *gin.Context) {
		c.File("public/index.html")
	})

	s.router.StaticFile("/favicon.ico", "public/favicon.ico")
	s.router.StaticFS("/static", http.Dir("public"))
}
