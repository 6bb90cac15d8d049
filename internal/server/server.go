package server

import (
	"net/http"
	"sync"

	"github.com/codewords/codewords/internal/config"
	"github.com/codewords/codewords/internal/universe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Server struct {
	universe *universe.Universe
	cfg      config.Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	connsMu  sync.Mutex
	conns    map[*connection]struct{}
	draining bool
	active   sync.WaitGroup
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger.With().Str("component", "server").Logger()
	}
}

func New(u *universe.Universe, cfg config.Config, opts ...Option) *Server {
	s := &Server{
		universe: u,
		cfg:      cfg,
		logger:   zerolog.Nop(),
		conns:    make(map[*connection]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
	}
	registerValidators()
	return s
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/ws", s.handleWebsocket)
	router.GET("/healthz", s.handleHealth)
	router.GET("/api/games", s.handleListGames)
	router.GET("/api/games/:code/qr.png", s.handleJoinCodeQR)
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Str("ip", c.ClientIP()).
			Msg("http request")
	}
}

// originChecker allows any origin when allowed is empty.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return true
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
