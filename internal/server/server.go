// Package server is the HTTP front door: it accepts a topic, runs the
// research pipeline and returns the report or the raw research.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/app"
	"github.com/hyperifyio/reportbuilder/internal/research"
	"github.com/hyperifyio/reportbuilder/internal/validate"
)

// Service is satisfied by *app.App.
type Service interface {
	GenerateReport(ctx context.Context, topic string) (app.Result, error)
	Research(ctx context.Context, topic string) (research.Output, []string, error)
}

// Server serves the pipeline over HTTP.
type Server struct {
	Service Service
	// RequestTimeout bounds each pipeline run. Zero means no extra bound.
	RequestTimeout time.Duration
}

type promptRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Router builds the gin engine with request-id, logging, recovery and
// metrics middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogger(), recovery(), metrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": app.BuildVersion})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/generate-report", s.generateReport)
	r.POST("/research", s.research)
	return r
}

func (s *Server) runContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), s.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

func (s *Server) generateReport(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with a non-empty prompt"})
		return
	}
	ctx, cancel := s.runContext(c)
	defer cancel()

	res, err := s.Service.GenerateReport(ctx, req.Prompt)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report":     res.Markdown,
		"structured": res.Report,
		"sources":    res.Research.AllURLs,
	})
}

func (s *Server) research(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with a non-empty prompt"})
		return
	}
	ctx, cancel := s.runContext(c)
	defer cancel()

	out, _, err := s.Service.Research(ctx, req.Prompt)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	log.Warn().Err(err).Str("run_id", c.GetString(keyRequestID)).Int("status", status).Msg("request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusFor maps pipeline errors onto HTTP statuses. Failures of the
// pipeline or its collaborators are upstream failures.
func statusFor(err error) int {
	var re *research.RetrievalError
	var ve *validate.ValidationError
	switch {
	case errors.Is(err, app.ErrEmptyTopic):
		return http.StatusBadRequest
	case errors.As(err, &re), errors.As(err, &ve):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-errCh
	return nil
}
