package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"agentarena/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GuessService struct {
	db    *gorm.DB
	ai    AIGateway
	locks *GameLock
}

func NewGuessService(db *gorm.DB, ai AIGateway, locks *GameLock) *GuessService {
	return &GuessService{
		db:    db,
		ai:    ai,
		locks: locks,
	}
}

// GuessResult is what an agent claims to know about the opposing owner.
type GuessResult struct {
	Personality string  `json:"personality"`
	Profession  string  `json:"profession"`
	Values      string  `json:"values"`
	Interests   string  `json:"interests"`
	Confidence  float64 `json:"confidence"`
}

// ExecuteGuess asks the guesser's agent to commit its read of the other
// owner and persists it. A second guess by the same player replaces the
// first.
func (s *GuessService) ExecuteGuess(ctx context.Context, gameID, guesserID uint) (*GuessResult, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.Matched() {
		return nil, ErrGameNotMatched
	}
	if !game.HasPlayer(guesserID) {
		return nil, ErrNotInGame
	}
	if game.Status != models.StatusGuessing {
		return nil, ErrWrongPhase
	}

	guesser, target := game.PlayerA, *game.PlayerB
	if guesserID != game.PlayerAID {
		guesser, target = *game.PlayerB, game.PlayerA
	}

	history := renderTranscript(game.Messages)
	raw, err := s.ai.Act(ctx, guesser.AccessToken, guessPrompt(history), guessActionControl, sessionID(game.ID, "guess"), "")
	if err != nil {
		return nil, err
	}

	result := parseGuess(raw)

	guess := models.Guess{
		GameID:      game.ID,
		GuesserID:   guesser.ID,
		TargetID:    target.ID,
		Personality: result.Personality,
		Profession:  result.Profession,
		Values:      result.Values,
		Interests:   result.Interests,
		Confidence:  result.Confidence,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "game_id"}, {Name: "guesser_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"target_id", "personality", "profession", "values", "interests", "confidence",
		}),
	}).Create(&guess).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseGuess turns the agent's reply into a GuessResult. Agents wrap the
// JSON in prose more often than not, so the embedded object is tried
// first, then the reply as-is, then a marker result that scoring still
// accepts.
func parseGuess(raw string) *GuessResult {
	if obj := extractJSONObject(raw); obj != "" {
		if result, ok := decodeGuessObject(obj); ok {
			return result
		}
	}
	if result, ok := decodeGuessObject(raw); ok {
		return result
	}
	return &GuessResult{
		Personality: "unparseable",
		Profession:  "unparseable",
		Values:      "unparseable",
		Interests:   "unparseable",
		Confidence:  0.3,
	}
}

func decodeGuessObject(s string) (*GuessResult, bool) {
	var raw struct {
		Personality string           `json:"personality"`
		Profession  string           `json:"profession"`
		Values      string           `json:"values"`
		Interests   string           `json:"interests"`
		Confidence  *json.RawMessage `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}

	result := &GuessResult{
		Personality: orUnknown(raw.Personality),
		Profession:  orUnknown(raw.Profession),
		Values:      orUnknown(raw.Values),
		Interests:   orUnknown(raw.Interests),
		Confidence:  0.5,
	}
	if raw.Confidence != nil {
		var conf float64
		if err := json.Unmarshal(*raw.Confidence, &conf); err == nil {
			result.Confidence = clamp(conf, 0, 1)
		}
	}
	return result, true
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// extractJSONObject cuts the first-brace-to-last-brace span out of a
// reply, which is where agents put the object when they add commentary.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func (s *GuessService) loadGame(ctx context.Context, gameID uint) (*models.Game, error) {
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

// ScoreResult carries both players' final scores.
type ScoreResult struct {
	ScoreA int `json:"score_a"`
	ScoreB int `json:"score_b"`
}

// ResultView is the finished-game payload: scores plus the guesses that
// produced them.
type ResultView struct {
	ScoreA  int            `json:"score_a"`
	ScoreB  int            `json:"score_b"`
	Guesses []models.Guess `json:"guesses"`
}

// CalculateScore grades both guesses against each owner's trait tags and
// closes the game. Runs under the per-game lock so a double submit can't
// finish the game twice.
func (s *GuessService) CalculateScore(ctx context.Context, gameID uint) (*ScoreResult, error) {
	var result *ScoreResult
	err := s.locks.WithLock(ctx, gameID, func() error {
		var err error
		result, err = s.calculateScore(ctx, gameID)
		return err
	})
	return result, err
}

func (s *GuessService) calculateScore(ctx context.Context, gameID uint) (*ScoreResult, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.Matched() {
		return nil, ErrGameNotMatched
	}
	if game.Status != models.StatusGuessing {
		return nil, ErrWrongPhase
	}

	// Tag fetch failures downgrade that side to the confidence-only
	// formula instead of failing the whole scoring pass.
	tagsA := s.fetchShades(ctx, game.PlayerA.AccessToken, game.ID, "A")
	tagsB := s.fetchShades(ctx, game.PlayerB.AccessToken, game.ID, "B")

	var guesses []models.Guess
	if err := s.db.WithContext(ctx).Where("game_id = ?", game.ID).Find(&guesses).Error; err != nil {
		return nil, err
	}

	result := &ScoreResult{}
	for i := range guesses {
		guess := &guesses[i]
		targetTags := tagsB
		if guess.GuesserID != game.PlayerAID {
			targetTags = tagsA
		}
		score := computeMatchScore(guess, targetTags)
		if err := s.db.WithContext(ctx).Model(guess).Update("score", score).Error; err != nil {
			return nil, err
		}
		if guess.GuesserID == game.PlayerAID {
			result.ScoreA = score
		} else {
			result.ScoreB = score
		}
	}

	now := s.db.NowFunc()
	if err := guardedTransition(s.db.WithContext(ctx), game, models.StatusFinished, map[string]interface{}{
		"finished_at": now,
	}); err != nil {
		return nil, err
	}

	log.Printf("game %d: scored A=%d B=%d", game.ID, result.ScoreA, result.ScoreB)
	return result, nil
}

func (s *GuessService) fetchShades(ctx context.Context, accessToken string, gameID uint, side string) []string {
	tags, err := s.ai.Shades(ctx, accessToken)
	if err != nil {
		log.Printf("game %d: fetching player %s shades failed: %v", gameID, side, err)
		return nil
	}
	return tags
}

// GameResult returns the final scores and guesses. A game still in its
// guessing phase gets scored on the way out.
func (s *GuessService) GameResult(ctx context.Context, gameID uint) (*ResultView, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	switch game.Status {
	case models.StatusGuessing:
		if _, err := s.CalculateScore(ctx, gameID); err != nil {
			if !errors.Is(err, ErrWrongPhase) {
				return nil, err
			}
			// Another request finished the game between our read and
			// the scoring pass. Serve the persisted result if so.
			refreshed, rerr := s.loadGame(ctx, gameID)
			if rerr != nil {
				return nil, rerr
			}
			if refreshed.Status != models.StatusFinished {
				return nil, err
			}
		}
	case models.StatusFinished:
		// Already scored, read persisted results below.
	default:
		return nil, ErrWrongPhase
	}

	var guesses []models.Guess
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Find(&guesses).Error; err != nil {
		return nil, err
	}

	view := &ResultView{Guesses: guesses}
	for _, guess := range guesses {
		if guess.Score == nil {
			continue
		}
		if guess.GuesserID == game.PlayerAID {
			view.ScoreA = *guess.Score
		} else {
			view.ScoreB = *guess.Score
		}
	}
	return view, nil
}
