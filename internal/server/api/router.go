package api

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterOptions carries everything NewRouter wires besides the handler.
type RouterOptions struct {
	Logger         logging.Logger
	Recorder       RequestRecorder
	MetricsHandler http.Handler
	Backend        string
	CORSOrigins    []string
	StaticDir      string
}

// NewRouter builds the gin engine:
//
//	POST /api      action dispatch
//	GET  /healthz  liveness with the store backend name
//	GET  /metrics  Prometheus exposition, when a handler is given
//
// With a StaticDir, other GET and HEAD requests are served from it.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(opts.Logger))
	r.Use(recovery(opts.Logger))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": opts.Backend})
	})

	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	apiHandlers := []gin.HandlerFunc{h.Dispatch}
	if opts.Recorder != nil {
		apiHandlers = append([]gin.HandlerFunc{recordRequests(opts.Recorder)}, apiHandlers...)
	}
	r.POST("/api", apiHandlers...)

	r.NoRoute(notFound(opts.StaticDir))
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func notFound(staticDir string) gin.HandlerFunc {
	var files http.FileSystem
	if staticDir != "" {
		files = http.Dir(staticDir)
	}
	return func(c *gin.Context) {
		method := c.Request.Method
		if files != nil && (method == http.MethodGet || method == http.MethodHead) &&
			!strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.FileFromFS(c.Request.URL.Path, files)
			return
		}
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	}
}
