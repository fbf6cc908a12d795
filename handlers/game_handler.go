package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"agentarena/gateway"
	"agentarena/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	gameService  *services.GameService
	guessService *services.GuessService
}

func NewGameHandler(gameService *services.GameService, guessService *services.GuessService) *GameHandler {
	return &GameHandler{
		gameService:  gameService,
		guessService: guessService,
	}
}

func (h *GameHandler) Match(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	result, err := h.gameService.FindOrCreateGame(c.Request.Context(), userID.(uint))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) GetGame(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	if err := h.gameService.CheckMembership(c.Request.Context(), gameID, userID.(uint)); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.GetGame(c.Request.Context(), gameID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) Advance(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	if err := h.gameService.CheckMembership(c.Request.Context(), gameID, userID.(uint)); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	result, err := h.gameService.AdvanceRound(c.Request.Context(), gameID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) Guess(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	result, err := h.guessService.ExecuteGuess(c.Request.Context(), gameID, userID.(uint))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) Result(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	if err := h.gameService.CheckMembership(c.Request.Context(), gameID, userID.(uint)); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	result, err := h.guessService.GameResult(c.Request.Context(), gameID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) Leaderboard(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	games, err := h.gameService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": games})
}

func gameIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game ID"})
		return 0, false
	}
	return uint(id), true
}

// statusForError maps service errors onto HTTP status codes. Upstream
// agent failures surface as 502 so callers can tell a platform outage
// apart from their own bad request.
func statusForError(err error) int {
	var statusErr *gateway.StatusError
	switch {
	case errors.Is(err, services.ErrGameNotFound), errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotInGame):
		return http.StatusForbidden
	case errors.Is(err, services.ErrGameNotMatched), errors.Is(err, services.ErrWrongPhase):
		return http.StatusBadRequest
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
