// Package ws pushes session change notifications over Socket.IO so clients
// refresh on events instead of polling.
package ws

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"

	"humanornot/internal/game"
	"humanornot/internal/store"
)

type Server struct {
	manager *game.Manager
	store   store.Store
	log     zerolog.Logger

	mu      sync.Mutex
	watched map[string]struct{}
}

func New(manager *game.Manager, st store.Store, log zerolog.Logger) *Server {
	return &Server{manager: manager, store: st, log: log, watched: make(map[string]struct{})}
}

// Mount attaches the Socket.IO server to the Gin engine. Clients emit
// session:watch with a session code and then receive session:update whenever
// that session's documents change.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		srv.log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "session:watch", func(s socketio.Conn, payload struct {
		SessionCode string `json:"sessionCode"`
	}) map[string]any {
		code := strings.ToUpper(strings.TrimSpace(payload.SessionCode))
		if _, err := srv.manager.State(code); err != nil {
			s.Emit("error", map[string]any{"code": "session_not_found", "message": "Session not found"})
			return map[string]any{"error": "session_not_found"}
		}
		s.Join(code)
		srv.ensureWatcher(io, code)
		srv.log.Info().Str("sid", s.ID()).Str("code", code).Msg("session:watch")
		return map[string]any{"ok": true}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		srv.log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		srv.log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go io.Serve()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

// ensureWatcher subscribes to the store once per session and fans events out
// to the session's room. The watcher lives for the process lifetime.
func (srv *Server) ensureWatcher(io *socketio.Server, code string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if _, ok := srv.watched[code]; ok {
		return
	}
	srv.watched[code] = struct{}{}
	ch, _ := srv.store.Subscribe(code)
	go func() {
		for ev := range ch {
			io.BroadcastToRoom("/", ev.SessionID, "session:update", map[string]any{"sessionCode": ev.SessionID})
		}
	}()
}
