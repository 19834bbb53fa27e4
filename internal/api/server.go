// Package api exposes the project operations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ivlev/topic2video/internal/app"
	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/queue"
)

type Server struct {
	app    *app.App
	router *gin.Engine
}

func NewServer(a *app.App) *Server {
	s := &Server{app: a, router: gin.New()}
	s.router.Use(gin.Recovery(), requestLogger(), corsMiddleware(a.Config.Server.AllowedOrigins))
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.GET("/health", s.health)

	api := r.Group("/api")
	api.GET("/script", s.getScript)
	api.PUT("/script", s.putScript)
	api.GET("/prompts", s.getPrompts)

	api.POST("/captions", s.buildCaptions)
	api.GET("/captions", s.captionInfo)
	api.PUT("/captions/:index", s.editCaption)

	api.GET("/scenes", s.listScenes)
	api.PUT("/scenes", s.saveScenes)
	api.POST("/scenes/redistribute", s.redistribute)
	api.PATCH("/scenes/:index", s.updateScene)
	api.DELETE("/scenes/:index", s.deleteScene)
	api.GET("/scenes/:index/frame", s.frame)

	api.POST("/images/request", s.requestImages)
	api.POST("/images/import", s.importImages)

	api.POST("/audio/upload", s.uploadAudio)
	api.POST("/audio/trim", s.trimAudio)
	api.GET("/audio/info", s.audioInfo)

	api.POST("/render", s.render)
	api.POST("/draft/clean", s.clean)
}

// Run serves on addr until ctx is cancelled, then drains for up to ten
// seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusFor maps the error taxonomy onto HTTP. Partial data is not a
// transport failure: it is reported as 200 with success false.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrPartialData):
		return http.StatusOK
	case errors.Is(err, errs.ErrEncoding), errors.Is(err, queue.ErrAckTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

// corsMiddleware answers cross-origin requests only for the configured
// origins. Requests without an Origin header pass through untouched.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[strings.TrimRight(o, "/")] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if !origins[origin] {
			log.Warn().Str("origin", origin).Str("path", c.Request.URL.Path).Msg("cross-origin request refused")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "origin not allowed"})
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Vary", "Origin")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
