// Package web exposes the REST control surface: create/join/start a session,
// submit messages and votes, and fetch a render-ready snapshot.
package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"humanornot/internal/game"
	"humanornot/internal/models"
)

type Server struct {
	manager   *game.Manager
	publicURL string
	log       zerolog.Logger
}

func New(manager *game.Manager, publicURL string, log zerolog.Logger) *Server {
	return &Server{manager: manager, publicURL: strings.TrimRight(publicURL, "/"), log: log}
}

func (s *Server) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/session", s.createSession)
	api.POST("/session/:code/join", s.join)
	api.POST("/session/:code/start", s.start)
	api.POST("/session/:code/message", s.submitMessage)
	api.POST("/session/:code/vote", s.submitVote)
	api.GET("/session/:code/state", s.state)
	api.GET("/session/:code/qr", s.joinQR)
}

func (s *Server) createSession(c *gin.Context) {
	var cfg models.SessionConfig
	if err := c.BindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_config"})
		return
	}
	code, err := s.manager.CreateSession(cfg)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionCode": code})
}

func (s *Server) join(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name_required"})
		return
	}
	playerID, err := s.manager.Join(sessionCode(c), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playerId": playerID})
}

func (s *Server) start(c *gin.Context) {
	if err := s.manager.Start(sessionCode(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) submitMessage(c *gin.Context) {
	var req struct {
		PlayerID string `json:"playerId"`
		Text     string `json:"text"`
	}
	if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text_required"})
		return
	}
	if err := s.manager.SubmitMessage(sessionCode(c), req.PlayerID, req.Text); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) submitVote(c *gin.Context) {
	var req struct {
		PlayerID string          `json:"playerId"`
		Votes    map[string]bool `json:"votes"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_votes"})
		return
	}
	if err := s.manager.SubmitVote(sessionCode(c), req.PlayerID, req.Votes); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) state(c *gin.Context) {
	snap, err := s.manager.State(sessionCode(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// joinQR renders the join link as a QR code so phones can hop into a lobby.
func (s *Server) joinQR(c *gin.Context) {
	code := sessionCode(c)
	if _, err := s.manager.State(code); err != nil {
		s.fail(c, err)
		return
	}
	base := s.publicURL
	if base == "" {
		base = "http://" + c.Request.Host
	}
	png, err := qrcode.Encode(fmt.Sprintf("%s/join/%s", base, code), qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func sessionCode(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("code")))
}

// fail maps state-machine sentinels onto HTTP statuses with a human-readable
// reason. Rejections never mutate round state, so clients can just retry.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrSessionNotFound), errors.Is(err, game.ErrUnknownPlayer):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrQuotaExceeded), errors.Is(err, game.ErrInsufficientPlayers),
		errors.Is(err, game.ErrNotPlaying), errors.Is(err, game.ErrAlreadyStarted):
		status = http.StatusConflict
	case errors.Is(err, game.ErrSessionFull):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrSelfVote):
		status = http.StatusBadRequest
	default:
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
