// Package server exposes the segments of a pipeline over HTTP so single
// images can be processed without a batch run.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/logging"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/processing"
)

// StageInfo describes one processing stage in GET /api/stages.
type StageInfo struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// Server serves POST /api/process/:stage, GET /api/stages and
// GET /api/health.
type Server struct {
	e      *echo.Echo
	graph  *pipeline.Graph
	cfg    config.ServerConfig
	logger *slog.Logger

	// stages are not safe for concurrent use
	mu sync.Mutex
}

// New creates a server for graph. Access logs go to accessLog when it is
// not nil.
func New(graph *pipeline.Graph, cfg config.ServerConfig, logger *slog.Logger, accessLog io.Writer) *Server {
	if logger == nil {
		logger = graph.Context().Logger
	}
	s := &Server{e: echo.New(), graph: graph, cfg: cfg, logger: logger}
	s.e.HideBanner = true
	s.e.HidePort = true

	if accessLog != nil {
		s.e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{Output: accessLog}))
	}
	s.e.Use(middleware.Recover())
	if cfg.MaxUploadMB > 0 {
		s.e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadMB)))
	}

	api := s.e.Group("/api")
	api.GET("/health", s.health)
	api.GET("/stages", s.stages)
	api.POST("/process/:stage", s.process)
	return s
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "server listening", "addr", addr)
		errc <- s.e.Start(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"run_id": s.graph.Context().RunID,
		"stages": len(s.graph.Segments()),
	})
}

func (s *Server) stages(c echo.Context) error {
	names := s.graph.Segments()
	out := make([]StageInfo, 0, len(names))
	for _, n := range names {
		out = append(out, StageInfo{Name: n, Class: s.graph.Class(n)})
	}
	return c.JSON(http.StatusOK, out)
}

// cleanup removes the WIP files a request left behind. Request bases are
// fresh uuids, so every derived file name starts with one.
func (s *Server) cleanup(base string) {
	dir := s.graph.Context().WIPDir
	matches, err := filepath.Glob(filepath.Join(dir, base+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			s.logger.Warn("failed to remove request file", "path", m, "error", err)
		}
	}
}

func (s *Server) process(c echo.Context) error {
	name := c.Param("stage")
	stage, ok := s.graph.Stage(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no stage %q", name))
	}
	seg, ok := stage.(pipeline.Segment)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("stage %q (%s) does not process images", name, s.graph.Class(name)))
	}

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty request body")
	}
	p := processing.NewProcessor()
	img, err := p.DecodeImage(data)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if s.cfg.RequestLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestLimit)*time.Second)
		defer cancel()
	}
	obj := pipeline.FromImage(uuid.NewString(), img)
	defer s.cleanup(obj.Base)
	ctx = logging.AppendCtx(ctx, slog.String("stage", name), slog.String("object", obj.Base))

	start := time.Now()
	s.mu.Lock()
	outs, err := seg.Process(ctx, obj)
	s.mu.Unlock()
	if err != nil {
		s.logger.WarnContext(ctx, "processing failed", "error", err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if len(outs) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	res, err := outs[0].Load()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := p.Encode(&buf, res, "png"); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "processed", "result", outs[0].Name(), "size", res.Bounds().Size().String(),
		"duration", time.Since(start).Round(time.Millisecond))
	c.Response().Header().Set("X-Object-Name", outs[0].Name())
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}
