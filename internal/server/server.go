// Package server 提供 HTTP 服务：Prometheus 指标暴露、存活与就绪检查，
// 以及优雅关闭。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/config"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
)

// Readiness is the engine state exposed on /ready.
type Readiness interface {
	Ready() bool
	State() string
	Assets() int
}

// Server HTTP服务实例，封装核心依赖和配置
type Server struct {
	cfg      config.ServerConfig
	log      *zap.Logger
	gatherer prometheus.Gatherer
	ready    Readiness
	server   *http.Server
	mux      *routeMux

	mu       sync.Mutex
	listener net.Listener
}

// statusWriter 包装ResponseWriter，捕获状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// routeMux 记录已注册路由，用于启动日志和首页
type routeMux struct {
	*http.ServeMux
	routes []string
}

func (m *routeMux) Handle(pattern string, handler http.Handler) {
	m.routes = append(m.routes, pattern)
	m.ServeMux.Handle(pattern, handler)
}

func (m *routeMux) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	m.Handle(pattern, http.HandlerFunc(handler))
}

// New 创建HTTP服务实例。ready 为 nil 时 /ready 始终返回 503
func New(cfg config.ServerConfig, gatherer prometheus.Gatherer, ready Readiness) *Server {
	s := &Server{
		cfg:      cfg,
		log:      logger.Named("http"),
		gatherer: gatherer,
		ready:    ready,
		mux:      &routeMux{ServeMux: http.NewServeMux()},
	}
	s.registerEndpoints()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.logMiddleware(s.mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// logMiddleware 统一日志记录，探针请求记为 debug
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		level := zap.InfoLevel
		if r.URL.Path == "/health" || r.URL.Path == "/ready" || r.URL.Path == "/metrics" {
			level = zap.DebugLevel
		}
		if ce := s.log.Check(level, "HTTP request"); ce != nil {
			ce.Write(
				zap.String("method", r.Method),
				zap.String("url", r.URL.String()),
				zap.String("remote", r.RemoteAddr),
				zap.Int("status", sw.status),
				zap.Duration("duration", time.Since(start)),
			)
		}
	})
}

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Web Service Reader</title></head>
<body>
<h1>Web Service Reader</h1>
<p>Engine state: <code>%s</code>, assets: <code>%d</code></p>
<h2>Endpoints</h2>
<a href="/health">/health</a><br>
<a href="/ready">/ready</a><br>
<a href="/metrics">/metrics</a>
</body>
</html>
`

// registerEndpoints 注册核心路由
func (s *Server) registerEndpoints() {
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		state, assets := "unknown", 0
		if s.ready != nil {
			state, assets = s.ready.State(), s.ready.Assets()
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, indexPage, state, assets)
	})

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(s.log),
	}))

	// /health 存活检查，不依赖引擎状态
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// /ready 就绪检查，引擎初始化完成后返回 200
	s.mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"ready": false, "state": "unknown", "assets": 0}
		status := http.StatusServiceUnavailable
		if s.ready != nil {
			body["ready"], body["state"], body["assets"] = s.ready.Ready(), s.ready.State(), s.ready.Assets()
			if s.ready.Ready() {
				status = http.StatusOK
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

// Start 绑定端口并在后台提供服务，监听失败同步返回
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("starting HTTP server",
		zap.String("listen_addr", ln.Addr().String()),
		zap.Strings("handle_funcs", s.mux.routes),
		zap.Duration("read_timeout", s.cfg.ReadTimeout),
		zap.Duration("write_timeout", s.cfg.WriteTimeout),
		zap.Duration("idle_timeout", s.cfg.IdleTimeout),
	)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once Start returned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown 优雅关闭HTTP服务，超时视为关闭完成
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Warn("shutdown timeout exceeded")
			return nil
		}
		s.log.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	s.log.Info("HTTP server shutdown successfully")
	return nil
}
