// Package api serves the service over HTTP under /api/v1 and streams
// log:event frames on /events.
package api

import (
	"net/http"
	"time"

	"github.com/getpup/pupsourcing/es"
	"github.com/getpup/sharding-orchestrator/service"
	"github.com/gin-gonic/gin"
)

// Config holds configuration for the HTTP API.
type Config struct {
	// Service handles every call (required).
	Service *service.Service

	// Events serves the websocket event stream (optional).
	Events http.Handler

	// AllowedOrigins restricts cross-origin callers. Empty allows any origin.
	AllowedOrigins []string

	// Logger is for request logging (optional).
	Logger es.Logger
}

// Server routes HTTP requests to the service.
type Server struct {
	engine  *gin.Engine
	service *service.Service
	config  Config
}

// New creates the router and registers every route.
func New(cfg Config) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(CORS(cfg.AllowedOrigins))
	engine.Use(requestLogger(cfg.Logger))

	s := &Server{
		engine:  engine,
		service: cfg.Service,
		config:  cfg,
	}
	s.setupRoutes()
	return s
}

// Engine returns the underlying gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.config.Events != nil {
		s.engine.GET("/events", gin.WrapH(s.config.Events))
	}

	v1 := s.engine.Group("/api/v1")
	s.setupProjectRoutes(v1)
	s.setupShardRoutes(v1)
	s.setupSchemaRoutes(v1)
	s.setupShardKeyRoutes(v1)
}

func (s *Server) setupProjectRoutes(group *gin.RouterGroup) {
	projects := group.Group("/projects")

	projects.POST("", s.createProject)
	projects.GET("", s.listProjects)
	projects.GET("/:projectID", s.fetchProject)
	projects.GET("/:projectID/status", s.fetchProjectStatus)
	projects.POST("/:projectID/activate", s.activateProject)
	projects.POST("/:projectID/deactivate", s.deactivateProject)
	projects.POST("/:projectID/sql", s.executeSQL)
}

func (s *Server) setupShardRoutes(group *gin.RouterGroup) {
	group.GET("/projects/:projectID/shards", s.listShards)
	group.POST("/projects/:projectID/shards", s.addShard)

	shards := group.Group("/shards")
	shards.POST("/reconnect", s.retryShardConnections)
	shards.GET("/:shardID/status", s.fetchShardStatus)
	shards.POST("/:shardID/activate", s.activateShard)
	shards.POST("/:shardID/deactivate", s.deactivateShard)
	shards.DELETE("/:shardID", s.deleteShard)

	shards.GET("/:shardID/connection", s.fetchConnection)
	shards.POST("/:shardID/connection", s.addConnection)
	shards.PUT("/:shardID/connection", s.updateConnection)
}

func (s *Server) setupSchemaRoutes(group *gin.RouterGroup) {
	schemas := group.Group("/projects/:projectID/schemas")

	schemas.GET("", s.schemaHistory)
	schemas.POST("", s.createSchemaDraft)
	schemas.GET("/current", s.currentSchema)
	schemas.GET("/capabilities", s.schemaCapabilities)
	schemas.POST("/execute", s.executeSchema)
	schemas.POST("/retry", s.retrySchema)
	schemas.PUT("/:schemaID", s.updateSchemaDraft)
	schemas.POST("/:schemaID/commit", s.commitSchemaDraft)

	group.DELETE("/schemas/:schemaID", s.deleteSchemaDraft)
	group.GET("/schemas/:schemaID/executions", s.schemaExecutions)
}

func (s *Server) setupShardKeyRoutes(group *gin.RouterGroup) {
	keys := group.Group("/projects/:projectID/shard-keys")

	keys.GET("", s.fetchShardKeys)
	keys.PUT("", s.replaceShardKeys)
	keys.POST("/recompute", s.recomputeKeys)
}

func requestLogger(logger es.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if logger == nil {
			return
		}
		logger.Debug(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start).String())
	}
}
