package server

import (
	"context"
	"sync"
	"time"

	"github.com/codewords/codewords/internal/config"
	"github.com/codewords/codewords/internal/protocol"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// connection is one websocket client. It is the session's sink: game code
// hands it messages and the write pump puts them on the wire in order.
type connection struct {
	conn      *websocket.Conn
	cfg       config.TransportConfig
	send      chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

func newConnection(conn *websocket.Conn, cfg config.TransportConfig, logger zerolog.Logger) *connection {
	return &connection{
		conn:   conn,
		cfg:    cfg,
		send:   make(chan protocol.Message, cfg.SendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send queues msg without blocking. Messages for a closed or backed-up
// connection are dropped.
func (c *connection) Send(msg protocol.Message) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.logger.Warn().Str("type", msg.MessageType()).Msg("send buffer full, dropping message")
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			data, err := protocol.EncodeMessage(msg)
			if err != nil {
				c.logger.Error().Err(err).Str("type", msg.MessageType()).Msg("encode message")
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) handleWebsocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := newConnection(ws, s.cfg.Transport, s.logger)
	if !s.track(conn) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.cfg.Transport.WriteTimeout))
		_ = ws.Close()
		return
	}
	defer s.untrack(conn)

	playerID := s.universe.AddSession(conn)
	conn.logger = s.logger.With().Stringer("player_id", playerID).Logger()
	conn.logger.Info().Str("remote", c.Request.RemoteAddr).Msg("player connected")

	go conn.writePump()
	s.readLoop(conn, playerID)
}

// track registers conn until its read loop has finished. It reports false
// once Shutdown has begun.
func (s *Server) track(conn *connection) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.draining {
		return false
	}
	s.conns[conn] = struct{}{}
	s.active.Add(1)
	return true
}

func (s *Server) untrack(conn *connection) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
	s.active.Done()
}

// Shutdown closes every websocket and waits until each one has run its
// disconnect cleanup, or until ctx is done. http.Server.Shutdown does not
// wait for hijacked connections, so call this after it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.connsMu.Lock()
	s.draining = true
	conns := make([]*connection, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.connsMu.Unlock()

	deadline := time.Now().Add(s.cfg.Transport.WriteTimeout)
	for _, conn := range conns {
		_ = conn.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		conn.close()
	}

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info().Int("connections", len(conns)).Msg("websockets drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop handles frames until the connection fails, then leaves the match
// and drops the session, in that order.
func (s *Server) readLoop(conn *connection, playerID uuid.UUID) {
	defer func() {
		s.universe.RemovePlayerFromMatch(playerID)
		s.universe.RemoveSession(playerID)
		conn.close()
		conn.logger.Info().Msg("player disconnected")
	}()

	ws := conn.conn
	ws.SetReadLimit(s.cfg.Transport.MaxMessageBytes)
	extend := func() error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.Transport.ReadTimeout))
	}
	_ = extend()
	ws.SetPongHandler(func(string) error {
		return extend()
	})

	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.logger.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		_ = extend()
		if typ != websocket.TextMessage {
			s.reportError(playerID, protocol.NewError(protocol.ErrInvalidCommand, "not a valid text frame"))
			continue
		}
		s.handleFrame(playerID, data)
	}
}

func (s *Server) handleFrame(playerID uuid.UUID, data []byte) {
	cmd, err := protocol.DecodeCommand(data)
	if err == nil {
		s.logger.Debug().Stringer("player_id", playerID).Str("cmd", cmd.CommandName()).Msg("command")
		err = s.dispatch(playerID, cmd)
	}
	if err != nil {
		s.reportError(playerID, err)
	}
}

// reportError sends err back to the player who caused it.
func (s *Server) reportError(playerID uuid.UUID, err error) {
	perr := protocol.AsError(err)
	if perr.Kind == protocol.ErrInternal {
		s.logger.Error().Stringer("player_id", playerID).Str("message", perr.Message).Msg("internal error")
	}
	s.universe.Send(playerID, perr)
}
