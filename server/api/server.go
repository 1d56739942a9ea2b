package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/counter"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/middleware"
	"github.com/andydunstall/rumor/pkg/uniqueid"
)

// Server is the client-facing HTTP server, used to broadcast and read values,
// update the topology, generate unique IDs and update the counter.
type Server struct {
	engine *broadcast.Engine

	allocator *uniqueid.Allocator

	// counter is nil if no counter backend is configured.
	counter *counter.Counter

	httpServer *http.Server

	logger log.Logger
}

func NewServer(
	engine *broadcast.Engine,
	allocator *uniqueid.Allocator,
	counter *counter.Counter,
	registry *prometheus.Registry,
	logger log.Logger,
) *Server {
	logger = logger.WithSubsystem("api")

	router := gin.New()
	server := &Server{
		engine:    engine,
		allocator: allocator,
		counter:   counter,
		httpServer: &http.Server{
			Handler:  router,
			ErrorLog: logger.StdLogger(zapcore.WarnLevel),
		},
		logger: logger,
	}

	// Recover from panics.
	router.Use(gin.CustomRecoveryWithWriter(nil, server.panicRoute))
	router.Use(middleware.NewLogger(logger))

	if registry != nil {
		metrics := middleware.NewMetrics("api")
		metrics.Register(registry)
		router.Use(metrics.Handler())
	}

	server.registerRoutes(router)

	return server
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info(
		"starting api server",
		zap.String("addr", ln.Addr().String()),
	)

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Shutdown attempts to gracefully shutdown the server by waiting for pending
// requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(router *gin.Engine) {
	v1 := router.Group("/v1")
	v1.POST("/broadcast", s.broadcastRoute)
	v1.GET("/read", s.readRoute)
	v1.POST("/topology", s.topologyRoute)
	v1.POST("/generate", s.generateRoute)

	if s.counter != nil {
		v1.POST("/counter/add", s.counterAddRoute)
		v1.GET("/counter", s.counterReadRoute)
	}
}

// broadcastRoute submits the value then waits for a round to complete before
// responding.
func (s *Server) broadcastRoute(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %s", err))
		return
	}
	if req.Message == nil {
		s.errorResponse(c, http.StatusBadRequest, "missing message")
		return
	}

	if err := s.engine.Submit(c.Request.Context(), *req.Message); err != nil {
		s.logger.Warn(
			"failed to submit value",
			zap.Int64("value", int64(*req.Message)),
			zap.Error(err),
		)
		s.submitError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct{}{})
}

func (s *Server) readRoute(c *gin.Context) {
	c.JSON(http.StatusOK, &ReadResponse{
		Messages: s.engine.Read(),
	})
}

func (s *Server) topologyRoute(c *gin.Context) {
	var req TopologyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %s", err))
		return
	}

	neighbours := s.engine.SetTopology(req.Topology)
	if neighbours == nil {
		neighbours = []string{}
	}
	c.JSON(http.StatusOK, &TopologyResponse{
		Neighbours: neighbours,
	})
}

func (s *Server) generateRoute(c *gin.Context) {
	c.JSON(http.StatusOK, &GenerateResponse{
		ID: s.allocator.Next(),
	})
}

func (s *Server) counterAddRoute(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %s", err))
		return
	}

	if err := s.counter.Add(c.Request.Context(), req.Delta); err != nil {
		s.logger.Warn("failed to add to counter", zap.Error(err))
		s.submitError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct{}{})
}

func (s *Server) counterReadRoute(c *gin.Context) {
	value, err := s.counter.Read(c.Request.Context())
	if err != nil {
		s.logger.Warn("failed to read counter", zap.Error(err))
		s.submitError(c, err)
		return
	}

	c.JSON(http.StatusOK, &CounterResponse{
		Value: value,
	})
}

func (s *Server) submitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.errorResponse(c, http.StatusGatewayTimeout, "timeout")
	case errors.Is(err, broadcast.ErrClosed):
		s.errorResponse(c, http.StatusServiceUnavailable, "shutting down")
	default:
		s.errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, &ErrorResponse{
		Error: message,
	})
}

func (s *Server) panicRoute(c *gin.Context, err any) {
	s.logger.Error(
		"handler panic",
		zap.String("path", c.FullPath()),
		zap.Any("err", err),
	)
	c.AbortWithStatus(http.StatusInternalServerError)
}

func init() {
	// Disable Gin debug logs.
	gin.SetMode(gin.ReleaseMode)
}
