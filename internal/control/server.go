// Package control exposes a small local HTTP API for driving the assistant
// from outside the terminal, for example from a hotkey daemon.
package control

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	assistant "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/store"
)

type Assistant interface {
	Activate()
	Stop()
	SubmitPrompt(text string)
	Snapshot() assistant.Snapshot
}

type NoteLister interface {
	Notes() []store.Note
}

type Server struct {
	echo      *echo.Echo
	assistant Assistant
	notes     NoteLister
}

func NewServer(a Assistant, notes NoteLister) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, assistant: a, notes: notes}
	s.Register(e)
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/v1/state", s.state)
	e.GET("/v1/notes", s.listNotes)
	e.POST("/v1/activate", s.activate)
	e.POST("/v1/stop", s.stop)
	e.POST("/v1/prompt", s.prompt)
}

// Handler is mostly useful for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutdownCtx)
	}()

	logger.InfoContext(ctx, "Control API listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type stateResponse struct {
	State   string `json:"state"`
	Final   string `json:"final"`
	Interim string `json:"interim"`
}

func (s *Server) state(c echo.Context) error {
	snapshot := s.assistant.Snapshot()
	return c.JSON(http.StatusOK, stateResponse{
		State:   snapshot.State.String(),
		Final:   snapshot.Utterance.Final,
		Interim: snapshot.Utterance.Interim,
	})
}

func (s *Server) listNotes(c echo.Context) error {
	if s.notes == nil {
		return c.JSON(http.StatusOK, []store.Note{})
	}
	notes := s.notes.Notes()
	if notes == nil {
		notes = []store.Note{}
	}
	return c.JSON(http.StatusOK, notes)
}

func (s *Server) activate(c echo.Context) error {
	s.assistant.Activate()
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) stop(c echo.Context) error {
	s.assistant.Stop()
	return c.NoContent(http.StatusAccepted)
}

type promptRequest struct {
	Text string `json:"text"`
}

func (s *Server) prompt(c echo.Context) error {
	var req promptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prompt")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	s.assistant.SubmitPrompt(req.Text)
	return c.NoContent(http.StatusAccepted)
}
