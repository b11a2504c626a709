// Package statushttp 提供最小化的状态查询服务：健康检查、各影子
// 策略的实时绩效、决策历史。只读，不暴露任何改状态的入口。
package statushttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"quorum/internal/logger"
	"quorum/internal/report"
	"quorum/internal/sim"

	"github.com/gin-gonic/gin"
)

// Server 包装 gin，生命周期由 Start 的 ctx 控制。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述状态服务依赖。Reports 可为 nil，此时决策历史
// 接口返回 503。
type ServerConfig struct {
	Addr         string
	Orchestrator *sim.Orchestrator
	Reports      *report.Store
}

// NewServer 构建状态服务。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("status http server requires orchestrator")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/strategies", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"strategies": cfg.Orchestrator.Snapshots()})
	})
	api.GET("/strategies/:name/positions", func(c *gin.Context) {
		shadow, ok := cfg.Orchestrator.Shadow(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown strategy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"strategy":  shadow.Name(),
			"balance":   shadow.Balance(),
			"positions": shadow.OpenPositions(),
		})
	})
	api.GET("/decisions", func(c *gin.Context) {
		if cfg.Reports == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report store unavailable"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		epoch, _ := strconv.ParseInt(c.Query("epoch"), 10, 64)
		rows, err := cfg.Reports.Decisions(c.Request.Context(), report.DecisionQuery{
			Strategy: c.Query("strategy"),
			Symbol:   c.Query("symbol"),
			Epoch:    epoch,
			Limit:    limit,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"decisions": rows})
	})

	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestLogger 记录接口调用，便于追踪人工查询。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
