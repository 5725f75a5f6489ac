package handlers

import (
	"time"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler exposes the oven services over HTTP and websocket.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler builds a handler. log may be nil.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes registers every route on a fresh gin engine.
//
//	/health, /swagger/*       open
//	/auth/sign-up, sign-in    open
//	/api/v1/...               bearer token
//	/ws                       bearer token, header or ?access_token=
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.accessLog)

	router.GET("/health", h.health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := router.Group("/auth")
	auth.POST("/sign-up", h.signUp)
	auth.POST("/sign-in", h.signIn)

	api := router.Group("/api/v1", h.userIdMiddleware)

	oven := api.Group("/oven")
	oven.GET("/state", h.getState)
	oven.GET("/series", h.getSeries)
	oven.POST("/start", h.startRun) // {"profile":"Sn63Pb37"}
	oven.POST("/stop", h.stopRun)
	oven.POST("/fault/clear", h.clearFault)

	api.GET("/profiles", h.listProfiles)
	api.GET("/profiles/:name", h.getProfile)
	api.GET("/logs/", h.getLogs)

	router.GET("/ws", h.userIdMiddleware, h.wsConnect)

	return router
}

// accessLog writes one debug line per request.
func (h *Handler) accessLog(c *gin.Context) {
	if h.log == nil {
		c.Next()
		return
	}
	start := time.Now()
	c.Next()
	h.log.Debugw("http_request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"took", time.Since(start),
	)
}
