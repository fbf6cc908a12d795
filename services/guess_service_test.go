package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"agentarena/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// guessingGame sets up a matched game that has finished its rounds and
// is waiting on guesses.
func guessingGame(t *testing.T, db *gorm.DB) (*models.Game, *models.User, *models.User) {
	t.Helper()
	userA := createTestUser(t, db, "ext-a")
	userB := createTestUser(t, db, "ext-b")

	bID := userB.ID
	game := &models.Game{
		PlayerAID:    userA.ID,
		PlayerBID:    &bID,
		Status:       models.StatusGuessing,
		CurrentRound: 5,
		Rounds:       5,
	}
	require.NoError(t, db.Create(game).Error)
	require.NoError(t, db.Create(&models.Message{
		GameID: game.ID, SenderRole: models.RoleA, Content: "hello there", Round: 1,
	}).Error)
	require.NoError(t, db.Create(&models.Message{
		GameID: game.ID, SenderRole: models.RoleB, Content: "hi yourself", Round: 1,
	}).Error)
	return game, userA, userB
}

func TestExecuteGuess_ParsesWrappedJSON(t *testing.T) {
	db := newTestDB(t)
	ai := &stubAI{actReply: `Here is my guess: {"personality": "analytical", "profession": "software engineer", "values": "honesty", "interests": "hiking", "confidence": 0.8} hope I got it.`}
	svc := NewGuessService(db, ai, newTestLock(t))
	game, userA, userB := guessingGame(t, db)

	result, err := svc.ExecuteGuess(context.Background(), game.ID, userA.ID)
	require.NoError(t, err)
	assert.Equal(t, "analytical", result.Personality)
	assert.Equal(t, "software engineer", result.Profession)
	assert.Equal(t, "honesty", result.Values)
	assert.Equal(t, "hiking", result.Interests)
	assert.Equal(t, 0.8, result.Confidence)

	var guess models.Guess
	require.NoError(t, db.Where("game_id = ? AND guesser_id = ?", game.ID, userA.ID).First(&guess).Error)
	assert.Equal(t, userB.ID, guess.TargetID)
	assert.Equal(t, "software engineer", guess.Profession)
}

func TestExecuteGuess_MalformedReplyFallsBack(t *testing.T) {
	db := newTestDB(t)
	ai := &stubAI{actReply: `I really could not tell anything about them.`}
	svc := NewGuessService(db, ai, newTestLock(t))
	game, userA, _ := guessingGame(t, db)

	result, err := svc.ExecuteGuess(context.Background(), game.ID, userA.ID)
	require.NoError(t, err)
	assert.Equal(t, "unparseable", result.Personality)
	assert.Equal(t, "unparseable", result.Profession)
	assert.Equal(t, "unparseable", result.Values)
	assert.Equal(t, "unparseable", result.Interests)
	assert.Equal(t, 0.3, result.Confidence)
}

func TestExecuteGuess_MissingFieldsDefault(t *testing.T) {
	db := newTestDB(t)
	ai := &stubAI{actReply: `{"profession": "teacher"}`}
	svc := NewGuessService(db, ai, newTestLock(t))
	game, userA, _ := guessingGame(t, db)

	result, err := svc.ExecuteGuess(context.Background(), game.ID, userA.ID)
	require.NoError(t, err)
	assert.Equal(t, "unknown", result.Personality)
	assert.Equal(t, "teacher", result.Profession)
	assert.Equal(t, "unknown", result.Values)
	assert.Equal(t, "unknown", result.Interests)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestExecuteGuess_SecondGuessReplacesFirst(t *testing.T) {
	db := newTestDB(t)
	ai := &stubAI{actReply: `{"personality": "quiet", "confidence": 0.4}`}
	svc := NewGuessService(db, ai, newTestLock(t))
	game, userA, _ := guessingGame(t, db)

	_, err := svc.ExecuteGuess(context.Background(), game.ID, userA.ID)
	require.NoError(t, err)

	ai.actReply = `{"personality": "outgoing", "confidence": 0.9}`
	_, err = svc.ExecuteGuess(context.Background(), game.ID, userA.ID)
	require.NoError(t, err)

	var guesses []models.Guess
	require.NoError(t, db.Where("game_id = ? AND guesser_id = ?", game.ID, userA.ID).Find(&guesses).Error)
	require.Len(t, guesses, 1)
	assert.Equal(t, "outgoing", guesses[0].Personality)
	assert.Equal(t, 0.9, guesses[0].Confidence)
}

func TestExecuteGuess_RejectsWrongPhaseAndOutsiders(t *testing.T) {
	db := newTestDB(t)
	svc := NewGuessService(db, &stubAI{actReply: `{}`}, newTestLock(t))
	game, userA, _ := guessingGame(t, db)
	outsider := createTestUser(t, db, "ext-c")

	_, err := svc.ExecuteGuess(context.Background(), game.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrNotInGame)

	require.NoError(t, db.Model(&models.Game{}).Where("id = ?", game.ID).
		Update("status", models.StatusPlaying).Error)
	_, err = svc.ExecuteGuess(context.Background(), game.ID, userA.ID)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestExecuteGuess_UpstreamErrorPropagates(t *testing.T) {
	db := newTestDB(t)
	upstream := errors.New("agent timed out")
	svc := NewGuessService(db, &stubAI{actErr: upstream}, newTestLock(t))
	game, userA, _ := guessingGame(t, db)

	_, err := svc.ExecuteGuess(context.Background(), game.ID, userA.ID)
	assert.ErrorIs(t, err, upstream)
}

func TestCalculateScore_GradesBothPlayersAndFinishes(t *testing.T) {
	db := newTestDB(t)
	ai := &stubAI{
		shadesFn: func(accessToken string) ([]string, error) {
			if accessToken == "token-ext-b" {
				return []string{"engineer", "hiking"}, nil
			}
			return []string{"painter"}, nil
		},
	}
	svc := NewGuessService(db, ai, newTestLock(t))
	game, userA, userB := guessingGame(t, db)

	require.NoError(t, db.Create(&models.Guess{
		GameID: game.ID, GuesserID: userA.ID, TargetID: userB.ID,
		Profession: "software engineer", Interests: "hiking, photography",
		Confidence: 0.8,
	}).Error)
	require.NoError(t, db.Create(&models.Guess{
		GameID: game.ID, GuesserID: userB.ID, TargetID: userA.ID,
		Profession: "accountant", Confidence: 0.6,
	}).Error)

	result, err := svc.CalculateScore(context.Background(), game.ID)
	require.NoError(t, err)
	// 2 of A's 4 guess tokens matched B's tags: round(0.5*70 + 0.8*30) = 59
	assert.Equal(t, 59, result.ScoreA)
	// None of B's guess tokens matched A's tags: round(0*70 + 0.6*30) = 18
	assert.Equal(t, 18, result.ScoreB)

	var updated models.Game
	require.NoError(t, db.First(&updated, game.ID).Error)
	assert.Equal(t, models.StatusFinished, updated.Status)
	assert.NotNil(t, updated.FinishedAt)

	// Scoring a finished game is rejected
	_, err = svc.CalculateScore(context.Background(), game.ID)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestCalculateScore_ShadesFailureFallsBackToConfidence(t *testing.T) {
	db := newTestDB(t)
	ai := &stubAI{
		shadesFn: func(accessToken string) ([]string, error) {
			return nil, errors.New("shades unavailable")
		},
	}
	svc := NewGuessService(db, ai, newTestLock(t))
	game, userA, userB := guessingGame(t, db)

	require.NoError(t, db.Create(&models.Guess{
		GameID: game.ID, GuesserID: userA.ID, TargetID: userB.ID,
		Profession: "engineer", Confidence: 0.8,
	}).Error)

	result, err := svc.CalculateScore(context.Background(), game.ID)
	require.NoError(t, err)
	// No tags to match against: round(0.8*50) = 40
	assert.Equal(t, 40, result.ScoreA)
}

func TestGameResult_ScoresGuessingGameOnce(t *testing.T) {
	db := newTestDB(t)
	ai := &stubAI{
		shadesFn: func(accessToken string) ([]string, error) {
			return []string{"engineer"}, nil
		},
	}
	svc := NewGuessService(db, ai, newTestLock(t))
	game, userA, userB := guessingGame(t, db)

	require.NoError(t, db.Create(&models.Guess{
		GameID: game.ID, GuesserID: userA.ID, TargetID: userB.ID,
		Profession: "engineer", Confidence: 1,
	}).Error)

	view, err := svc.GameResult(context.Background(), game.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, view.ScoreA)
	require.Len(t, view.Guesses, 1)

	// A second read returns the persisted result
	again, err := svc.GameResult(context.Background(), game.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ScoreA, again.ScoreA)
}

func TestGameResult_LostScoringRaceServesPersistedResult(t *testing.T) {
	db := newTestDB(t)
	svc := NewGuessService(db, &stubAI{}, newTestLock(t))
	game, userA, userB := guessingGame(t, db)

	score := 77
	require.NoError(t, db.Create(&models.Guess{
		GameID: game.ID, GuesserID: userA.ID, TargetID: userB.ID,
		Confidence: 0.8, Score: &score,
	}).Error)

	// Emulate a concurrent request finishing the game right after this
	// one reads it as GUESSING: the first game load triggers the
	// transition, so the scoring pass inside GameResult loses the race.
	var once sync.Once
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("finish_behind_reader", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*models.Game); !ok {
			return
		}
		once.Do(func() {
			now := db.NowFunc()
			require.NoError(t, db.Model(&models.Game{}).Where("id = ?", game.ID).
				Updates(map[string]interface{}{
					"status":      models.StatusFinished,
					"finished_at": now,
				}).Error)
		})
	}))

	view, err := svc.GameResult(context.Background(), game.ID)
	require.NoError(t, err)
	assert.Equal(t, 77, view.ScoreA)
	require.Len(t, view.Guesses, 1)
}

func TestGameResult_RejectsUnfinishedGame(t *testing.T) {
	db := newTestDB(t)
	svc := NewGuessService(db, &stubAI{}, newTestLock(t))
	game, _, _ := guessingGame(t, db)

	require.NoError(t, db.Model(&models.Game{}).Where("id = ?", game.ID).
		Update("status", models.StatusPlaying).Error)

	_, err := svc.GameResult(context.Background(), game.ID)
	assert.ErrorIs(t, err, ErrWrongPhase)
}
