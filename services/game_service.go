package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"agentarena/models"

	"gorm.io/gorm"
)

// AIGateway is the slice of the upstream agent platform the game loop
// needs. The concrete client lives in the gateway package.
type AIGateway interface {
	Chat(ctx context.Context, accessToken, message, sessionID, systemPrompt string) (string, error)
	Act(ctx context.Context, accessToken, message, actionControl, sessionID, systemPrompt string) (string, error)
	Shades(ctx context.Context, accessToken string) ([]string, error)
}

type GameService struct {
	db     *gorm.DB
	ai     AIGateway
	locks  *GameLock
	rounds int
}

func NewGameService(db *gorm.DB, ai AIGateway, locks *GameLock, rounds int) *GameService {
	return &GameService{
		db:     db,
		ai:     ai,
		locks:  locks,
		rounds: rounds,
	}
}

type MatchResult struct {
	GameID  uint `json:"game_id"`
	Matched bool `json:"matched"`
}

type RoundResult struct {
	Round    int    `json:"round"`
	MessageA string `json:"message_a"`
	MessageB string `json:"message_b"`
	Finished bool   `json:"finished"`
}

// FindOrCreateGame seats the user. The oldest waiting game opened by
// someone else wins; if there is none, a fresh waiting game is opened.
func (s *GameService) FindOrCreateGame(ctx context.Context, userID uint) (*MatchResult, error) {
	var game models.Game
	err := s.db.WithContext(ctx).
		Where("status = ? AND player_a_id <> ?", models.StatusWaiting, userID).
		Order("created_at ASC").
		First(&game).Error
	if err == nil {
		// Claim the seat only if nobody got there first.
		res := s.db.WithContext(ctx).Model(&models.Game{}).
			Where("id = ? AND status = ? AND player_b_id IS NULL", game.ID, models.StatusWaiting).
			Updates(map[string]interface{}{
				"player_b_id": userID,
				"status":      models.StatusPlaying,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrConflict
		}
		return &MatchResult{GameID: game.ID, Matched: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	game = models.Game{
		PlayerAID: userID,
		Status:    models.StatusWaiting,
		Rounds:    s.rounds,
	}
	if err := s.db.WithContext(ctx).Create(&game).Error; err != nil {
		return nil, err
	}
	return &MatchResult{GameID: game.ID, Matched: false}, nil
}

// AdvanceRound plays one full round: player A speaks, player B replies.
// The per-game lock keeps concurrent advance requests from interleaving.
func (s *GameService) AdvanceRound(ctx context.Context, gameID uint) (*RoundResult, error) {
	var result *RoundResult
	err := s.locks.WithLock(ctx, gameID, func() error {
		var err error
		result, err = s.advanceRound(ctx, gameID)
		return err
	})
	return result, err
}

func (s *GameService) advanceRound(ctx context.Context, gameID uint) (*RoundResult, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.Matched() {
		return nil, ErrGameNotMatched
	}
	if game.Status != models.StatusPlaying {
		return nil, ErrWrongPhase
	}

	newRound := game.CurrentRound + 1

	// History stops at the last completed round so a half-played round
	// does not echo its pending message back into the prompt context.
	var completed []models.Message
	for _, m := range game.Messages {
		if m.Round <= game.CurrentRound {
			completed = append(completed, m)
		}
	}
	history := renderTranscript(completed)

	pendingA, pendingB := roundMessages(game.Messages, newRound)

	messageA := ""
	if pendingA != nil {
		messageA = pendingA.Content
	} else {
		messageA, err = s.generateA(ctx, game, newRound, history)
		if err != nil {
			return nil, err
		}
		if err := s.saveMessage(ctx, game.ID, models.RoleA, messageA, newRound); err != nil {
			return nil, err
		}
	}

	messageB := ""
	if pendingB != nil {
		messageB = pendingB.Content
	} else {
		messageB, err = s.generateB(ctx, game, newRound, history, messageA)
		if err != nil {
			return nil, err
		}
		if err := s.saveMessage(ctx, game.ID, models.RoleB, messageB, newRound); err != nil {
			return nil, err
		}
	}

	finished := newRound >= game.Rounds
	next := models.StatusPlaying
	if finished {
		next = models.StatusGuessing
	}
	if err := guardedTransition(s.db.WithContext(ctx), game, next, map[string]interface{}{
		"current_round": newRound,
	}); err != nil {
		return nil, err
	}

	log.Printf("game %d: round %d/%d complete (finished=%v)", game.ID, newRound, game.Rounds, finished)
	return &RoundResult{
		Round:    newRound,
		MessageA: messageA,
		MessageB: messageB,
		Finished: finished,
	}, nil
}

func (s *GameService) generateA(ctx context.Context, game *models.Game, round int, history string) (string, error) {
	prompt := roundSystemPrompt(models.RoleA, round, game.Rounds)
	message := openerMessage()
	if history != "" {
		message = continueMessage(history)
	}
	reply, err := s.ai.Chat(ctx, game.PlayerA.AccessToken, message, sessionID(game.ID, "a"), prompt)
	if err != nil {
		return "", fmt.Errorf("player A turn: %w", err)
	}
	return reply, nil
}

func (s *GameService) generateB(ctx context.Context, game *models.Game, round int, history, incoming string) (string, error) {
	prompt := roundSystemPrompt(models.RoleB, round, game.Rounds)
	reply, err := s.ai.Chat(ctx, game.PlayerB.AccessToken, respondMessage(history, incoming), sessionID(game.ID, "b"), prompt)
	if err != nil {
		return "", fmt.Errorf("player B turn: %w", err)
	}
	return reply, nil
}

func (s *GameService) saveMessage(ctx context.Context, gameID uint, role models.SenderRole, content string, round int) error {
	msg := models.Message{
		GameID:     gameID,
		SenderRole: role,
		Content:    content,
		Round:      round,
	}
	return s.db.WithContext(ctx).Create(&msg).Error
}

// roundMessages finds messages already persisted for a round, so a
// retried advance resumes instead of generating duplicates.
func roundMessages(messages []models.Message, round int) (a, b *models.Message) {
	for i := range messages {
		if messages[i].Round != round {
			continue
		}
		switch messages[i].SenderRole {
		case models.RoleA:
			a = &messages[i]
		case models.RoleB:
			b = &messages[i]
		}
	}
	return a, b
}

func (s *GameService) loadGame(ctx context.Context, gameID uint) (*models.Game, error) {
	var game models.Game
	err := s.db.WithContext(ctx).
		Preload("PlayerA").
		Preload("PlayerB").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&game, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// GetGame returns the game with players, transcript, and guesses.
func (s *GameService) GetGame(ctx context.Context, gameID uint) (*models.Game, error) {
	var game models.Game
	err := s.db.WithContext(ctx).
		Preload("PlayerA").
		Preload("PlayerB").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Guesses").
		First(&game, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// CheckMembership verifies userID holds a seat in the game.
func (s *GameService) CheckMembership(ctx context.Context, gameID, userID uint) error {
	var game models.Game
	err := s.db.WithContext(ctx).First(&game, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrGameNotFound
	}
	if err != nil {
		return err
	}
	if !game.HasPlayer(userID) {
		return ErrNotInGame
	}
	return nil
}

// Leaderboard returns recently finished games, newest first.
func (s *GameService) Leaderboard(ctx context.Context, limit int) ([]models.Game, error) {
	var games []models.Game
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusFinished).
		Preload("PlayerA").
		Preload("PlayerB").
		Preload("Guesses").
		Order("finished_at DESC").
		Limit(limit).
		Find(&games).Error
	return games, err
}

// guardedTransition moves a game to the next status under optimistic
// concurrency: the update only lands if the row still shows the status
// and round we loaded. A zero-row update means someone raced us.
func guardedTransition(db *gorm.DB, game *models.Game, next models.GameStatus, extra map[string]interface{}) error {
	if !game.Status.CanTransitionTo(next) {
		return ErrWrongPhase
	}

	updates := map[string]interface{}{"status": next}
	for k, v := range extra {
		updates[k] = v
	}

	res := db.Model(&models.Game{}).
		Where("id = ? AND status = ? AND current_round = ?", game.ID, game.Status, game.CurrentRound).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
