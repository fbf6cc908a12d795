package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"agentarena/gateway"
	"agentarena/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// identityProvider is the identity slice of the platform client, split
// out so tests can stub the exchange.
type identityProvider interface {
	AuthURL(state string) string
	ExchangeToken(ctx context.Context, code string) (*gateway.Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*gateway.Token, error)
	UserInfo(ctx context.Context, accessToken string) (*gateway.UserInfo, error)
	Shades(ctx context.Context, accessToken string) ([]string, error)
	SoftMemory(ctx context.Context, accessToken string) (string, error)
}

type AuthService struct {
	db        *gorm.DB
	provider  identityProvider
	jwtSecret string
}

func NewAuthService(db *gorm.DB, provider identityProvider, jwtSecret string) *AuthService {
	return &AuthService{
		db:        db,
		provider:  provider,
		jwtSecret: jwtSecret,
	}
}

// LoginURL returns the provider URL the frontend redirects the browser to.
func (s *AuthService) LoginURL(state string) string {
	return s.provider.AuthURL(state)
}

// HandleCallback finishes the OAuth flow: code for tokens, tokens for a
// profile, profile upserted into our users table, and a session JWT out.
func (s *AuthService) HandleCallback(ctx context.Context, code string) (string, *models.User, error) {
	tok, err := s.provider.ExchangeToken(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("exchange code: %w", err)
	}

	info, err := s.provider.UserInfo(ctx, tok.AccessToken)
	if err != nil {
		return "", nil, fmt.Errorf("fetch user info: %w", err)
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("external_id = ?", info.ID).First(&user).Error
	switch {
	case err == nil:
		user.Name = info.Name
		user.Avatar = info.Avatar
		user.AccessToken = tok.AccessToken
		user.RefreshToken = tok.RefreshToken
		if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
			return "", nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			ExternalID:   info.ID,
			Name:         info.Name,
			Avatar:       info.Avatar,
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return "", nil, err
		}
	default:
		return "", nil, err
	}

	token, err := s.issueJWT(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// ProfileView is the session user plus what the platform knows about
// their owner.
type ProfileView struct {
	User       *models.User `json:"user"`
	Shades     []string     `json:"shades"`
	SoftMemory string       `json:"soft_memory"`
}

// Profile returns the user's record enriched with their platform trait
// tags and memory text. An expired access token is refreshed once; tag
// and memory failures degrade to empty values rather than failing the
// whole profile.
func (s *AuthService) Profile(ctx context.Context, userID uint) (*ProfileView, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	shades, err := s.provider.Shades(ctx, user.AccessToken)
	if isUnauthorized(err) && user.RefreshToken != "" {
		if rerr := s.refreshTokens(ctx, &user); rerr == nil {
			shades, err = s.provider.Shades(ctx, user.AccessToken)
		}
	}
	if err != nil {
		log.Printf("user %d: fetching shades failed: %v", user.ID, err)
		shades = nil
	}

	memory, err := s.provider.SoftMemory(ctx, user.AccessToken)
	if err != nil {
		log.Printf("user %d: fetching soft memory failed: %v", user.ID, err)
		memory = ""
	}

	return &ProfileView{User: &user, Shades: shades, SoftMemory: memory}, nil
}

func (s *AuthService) refreshTokens(ctx context.Context, user *models.User) error {
	tok, err := s.provider.RefreshToken(ctx, user.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	user.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		user.RefreshToken = tok.RefreshToken
	}
	return s.db.WithContext(ctx).Save(user).Error
}

func isUnauthorized(err error) bool {
	var statusErr *gateway.StatusError
	return errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized
}

func (s *AuthService) issueJWT(userID uint) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(7 * 24 * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
