package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/ai/internal/stream"
)

type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/model", s.handleModel)
	e.POST("/v1/generate", s.handleGenerate)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModel(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "generation service not configured", "")
	}
	return c.JSON(http.StatusOK, s.service.Info())
}

func (s *Server) handleGenerate(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "generation service not configured", "")
	}
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return writeBadRequest(c, "request body is required")
		}
		return writeBadRequest(c, err.Error())
	}
	r, err := s.service.Resolve(req)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	id := newGenerationID()

	if req.Stream {
		w, err := NewSSEWriter(c, id)
		if err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
		}
		resp, err := s.service.Generate(ctx, id, req.Prompt, r, w)
		if err != nil {
			// headers are already out; report in-band
			_, errType := errorStatus(err)
			return w.Failed(errType, err)
		}
		return w.Complete(resp)
	}

	var buf stream.Buffer
	resp, err := s.service.Generate(ctx, id, req.Prompt, r, &buf)
	if err != nil {
		status, errType := errorStatus(err)
		return writeError(c, status, errType, err.Error(), "")
	}
	resp.Text = buf.String()
	return c.JSON(http.StatusOK, resp)
}
