package server

import (
	"net/http"

	"github.com/codewords/codewords/internal/universe"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

const qrCodeSize = 256

type gameSummaryResponse struct {
	GameID   uuid.UUID `json:"game_id"`
	JoinCode string    `json:"join_code"`
	Display  string    `json:"display_code"`
	Players  int       `json:"players"`
}

type joinCodeURI struct {
	Code string `uri:"code" binding:"required,joincode"`
}

func (s *Server) handleHealth(c *gin.Context) {
	players, games := s.universe.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"players": players,
		"games":   games,
	})
}

func (s *Server) handleListGames(c *gin.Context) {
	summaries := s.universe.JoinableGames()
	resp := make([]gameSummaryResponse, 0, len(summaries))
	for _, game := range summaries {
		resp = append(resp, gameSummaryResponse{
			GameID:   game.GameID,
			JoinCode: game.JoinCode,
			Display:  universe.FormatJoinCode(game.JoinCode),
			Players:  game.Players,
		})
	}
	c.JSON(http.StatusOK, gin.H{"games": resp})
}

func (s *Server) handleJoinCodeQR(c *gin.Context) {
	var req joinCodeURI
	if !bindURI(c, &req) {
		return
	}
	game, ok := s.universe.GameByJoinCode(req.Code)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	png, err := qrcode.Encode(game.JoinCode(), qrcode.Medium, qrCodeSize)
	if err != nil {
		s.logger.Error().Err(err).Str("join_code", game.JoinCode()).Msg("render join code qr")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
