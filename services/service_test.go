package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"agentarena/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.Message{},
		&models.Guess{},
	))
	return db
}

func newTestLock(t *testing.T) *GameLock {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewGameLock(client)
}

func createTestUser(t *testing.T, db *gorm.DB, externalID string) *models.User {
	t.Helper()
	user := &models.User{
		ExternalID:  externalID,
		Name:        "user-" + externalID,
		AccessToken: "token-" + externalID,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// stubAI satisfies AIGateway with canned responses. Chat counts calls
// and records each incoming message so tests can verify how many turns
// were generated and what context each agent was handed.
type stubAI struct {
	mu        sync.Mutex
	chatCalls int
	chatMsgs  []string
	chatFn    func(n int) string
	actReply  string
	actErr    error
	shadesFn  func(accessToken string) ([]string, error)
}

func (s *stubAI) Chat(ctx context.Context, accessToken, message, sessionID, systemPrompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatCalls++
	s.chatMsgs = append(s.chatMsgs, message)
	if s.chatFn != nil {
		return s.chatFn(s.chatCalls), nil
	}
	return fmt.Sprintf("msg-%d", s.chatCalls), nil
}

func (s *stubAI) Act(ctx context.Context, accessToken, message, actionControl, sessionID, systemPrompt string) (string, error) {
	if s.actErr != nil {
		return "", s.actErr
	}
	return s.actReply, nil
}

func (s *stubAI) Shades(ctx context.Context, accessToken string) ([]string, error) {
	if s.shadesFn != nil {
		return s.shadesFn(accessToken)
	}
	return nil, nil
}
