// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial-link/internal/config"
	"serial-link/internal/handler"
	"serial-link/internal/middleware"
	"serial-link/internal/service"
	"serial-link/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config   *config.Config
	logger   *zap.Logger
	sessions *service.SessionService
	scanner  handler.PortScanner
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	sessions *service.SessionService,
	scanner handler.PortScanner,
) *Router {
	return &Router{
		config:   config,
		logger:   logger,
		sessions: sessions,
		scanner:  scanner,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	switch {
	case r.config.App.Environment == "test":
		gin.SetMode(gin.TestMode)
	case r.config.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.sessions, r.config, r.logger)
	portHandler := handler.NewPortHandler(r.scanner, r.logger)
	sessionHandler := handler.NewSessionHandler(r.sessions, r.logger)
	wsHandler := handler.NewWebSocketHandler(r.sessions, &r.config.Security, r.logger)

	r.addHealthRoutes(router, healthHandler)

	apiV1 := router.Group("/api/v1")
	r.addPortRoutes(apiV1, portHandler)
	r.addSessionRoutes(apiV1, sessionHandler, wsHandler)

	r.addWebSocketRoutes(router, wsHandler)

	r.logger.Debug("All routes configured successfully")
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine, handler *handler.HealthHandler) {
	health := router.Group("")
	{
		health.GET("/health", handler.HealthCheck)
		health.GET("/ready", handler.ReadinessCheck)
		health.GET("/live", handler.LivenessCheck)
	}
}

// addPortRoutes sets up port enumeration routes
func (r *Router) addPortRoutes(api *gin.RouterGroup, handler *handler.PortHandler) {
	api.GET("/ports", handler.ListPorts)
}

// addSessionRoutes sets up serial session routes
func (r *Router) addSessionRoutes(api *gin.RouterGroup, sessionHandler *handler.SessionHandler, wsHandler *handler.WebSocketHandler) {
	session := api.Group("/session")
	{
		session.GET("", sessionHandler.GetSession)
		session.POST("/open", sessionHandler.OpenSession)
		session.POST("/close", sessionHandler.CloseSession)
		session.POST("/exchange", sessionHandler.Exchange)
		session.GET("/clients", wsHandler.GetClients)
	}
}

// addWebSocketRoutes sets up WebSocket routes
func (r *Router) addWebSocketRoutes(router *gin.Engine, handler *handler.WebSocketHandler) {
	ws := router.Group("/ws")
	{
		ws.GET("/session", handler.HandleSession)
	}
}
