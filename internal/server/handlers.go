package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mcqsolver/internal/relay"
	"mcqsolver/internal/settings"
	"mcqsolver/mcq"
)

type selectorRequest struct {
	Selector string `json:"selector"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	c.JSON(status, errorResponse{Message: err.Error()})
}

func (s *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (s *Server) handleGetSettings(c *gin.Context) {
	if s.cfg.Settings == nil {
		c.JSON(http.StatusOK, settings.Settings{QuestionSelector: mcq.DefaultSelector})
		return
	}
	cur := s.cfg.Settings.Load()
	cur.QuestionSelector = cur.Selector()
	c.JSON(http.StatusOK, cur.Redacted())
}

func (s *Server) handlePutSettings(c *gin.Context) {
	if s.cfg.Settings == nil {
		s.fail(c, http.StatusNotImplemented, errors.New("settings store is not configured"))
		return
	}
	var in settings.Settings
	if err := c.ShouldBindJSON(&in); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Settings.Save(in); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mcq.ErrNoAPIKey) {
			status = http.StatusBadRequest
		}
		s.fail(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Settings saved"})
}

// selector falls back to the stored selector when the request has none.
func (s *Server) selector(requested string) string {
	if sel := strings.TrimSpace(requested); sel != "" {
		return sel
	}
	if s.cfg.Settings != nil {
		return s.cfg.Settings.Load().Selector()
	}
	return mcq.DefaultSelector
}

func (s *Server) handleCheck(c *gin.Context) {
	var in selectorRequest
	_ = c.ShouldBindJSON(&in)
	res, err := s.cfg.Pipeline.CheckQuestions(c.Request.Context(), s.selector(in.Selector))
	if err != nil {
		s.fail(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleTestCapture(c *gin.Context) {
	var in selectorRequest
	_ = c.ShouldBindJSON(&in)
	c.JSON(http.StatusOK, s.cfg.Pipeline.TestCapture(c.Request.Context(), s.selector(in.Selector)))
}

// resolve completes a solve request from the settings store and the
// configured fallback key.
func (s *Server) resolve(req mcq.SolveRequest) mcq.SolveRequest {
	var stored settings.Settings
	if s.cfg.Settings != nil {
		stored = s.cfg.Settings.Load()
	}
	if strings.TrimSpace(req.APIKey) == "" {
		req.APIKey = stored.APIKey
	}
	if strings.TrimSpace(req.APIKey) == "" {
		req.APIKey = s.cfg.APIKey
	}
	req.Selector = s.selector(req.Selector)
	if strings.TrimSpace(req.DomainContext) == "" {
		req.DomainContext = stored.DomainContext
	}
	return req
}

func (s *Server) handleSolve(c *gin.Context) {
	var in mcq.SolveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			s.fail(c, http.StatusBadRequest, err)
			return
		}
	}
	req := s.resolve(in)
	if strings.TrimSpace(req.APIKey) == "" {
		s.fail(c, http.StatusBadRequest, mcq.ErrNoAPIKey)
		return
	}
	// A run outlives a disconnected caller.
	ctx := context.WithoutCancel(c.Request.Context())
	sum, err := s.cfg.Pipeline.Solve(ctx, req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, mcq.ErrNoQuestions):
			status = http.StatusNotFound
		case errors.Is(err, mcq.ErrNoAPIKey):
			status = http.StatusBadRequest
		}
		sum.Success = false
		sum.Message = err.Error()
		c.JSON(status, sum)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleRelay(c *gin.Context) {
	if s.cfg.Relay == nil {
		c.JSON(http.StatusNotImplemented, relay.Response{Error: "relay is not configured"})
		return
	}
	var in relay.Request
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.URL) == "" {
		c.JSON(http.StatusBadRequest, relay.Response{Error: "url is required"})
		return
	}
	resp := s.cfg.Relay.Handle(c.Request.Context(), in)
	if resp.Error != "" {
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.hub.Last())
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents streams progress events until the client goes away.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe()
	defer cancel()
	if s.metrics != nil {
		s.metrics.ProgressClients.Inc()
		defer s.metrics.ProgressClients.Dec()
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if last := s.hub.Last(); last.Message != "" {
		if err := conn.WriteJSON(last); err != nil {
			return
		}
	}
	for {
		select {
		case <-gone:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
