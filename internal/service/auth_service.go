package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"craftboost/api/internal/config"
	"craftboost/api/internal/ids"
	"craftboost/api/internal/models"
	"craftboost/api/internal/repository"
	"craftboost/api/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
)

// AuthService issues JWT access tokens backed by redis sessions. A
// session maps an opaque refresh token (stored hashed) to a user; the
// redis TTL doubles as the refresh token lifetime.
type AuthService struct {
	users    *repository.UserRepository
	sessions *redis.Client
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAuthService(users *repository.UserRepository, sessions *redis.Client, cfg *config.AppConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type AuthResult struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	User         models.User
}

func sessionKey(sessionID string) string {
	return "auth:session:" + sessionID
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("email and password required")
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, fmt.Errorf("email already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return s.openSession(ctx, user)
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.openSession(ctx, user)
}

// Refresh rotates the refresh token and issues a fresh access token.
func (s *AuthService) Refresh(ctx context.Context, sessionID, refreshToken string) (AuthResult, error) {
	fields, err := s.sessions.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return AuthResult{}, err
	}
	if len(fields) == 0 {
		return AuthResult{}, ErrSessionNotFound
	}

	storedHash, err := base64.StdEncoding.DecodeString(fields["refresh_hash"])
	if err != nil || string(storedHash) != string(security.HashRefreshToken(refreshToken)) {
		// A mismatched token may mean the refresh token leaked; drop
		// the session entirely.
		_ = s.sessions.Del(ctx, sessionKey(sessionID)).Err()
		return AuthResult{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, fields["user_id"])
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.sessions.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return AuthResult{}, err
	}
	return s.openSession(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Del(ctx, sessionKey(sessionID)).Err()
}

// SessionUserID resolves a live session to its user id.
func (s *AuthService) SessionUserID(ctx context.Context, sessionID string) (string, error) {
	userID, err := s.sessions.HGet(ctx, sessionKey(sessionID), "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *AuthService) openSession(ctx context.Context, user models.User) (AuthResult, error) {
	sessionID := ids.New()

	refreshToken, refreshHash, err := security.GenerateRefreshToken()
	if err != nil {
		return AuthResult{}, err
	}

	key := sessionKey(sessionID)
	if err := s.sessions.HSet(ctx, key, map[string]any{
		"user_id":      user.ID,
		"refresh_hash": base64.StdEncoding.EncodeToString(refreshHash),
	}).Err(); err != nil {
		return AuthResult{}, fmt.Errorf("store session: %w", err)
	}
	if err := s.sessions.Expire(ctx, key, s.cfg.Security.RefreshTokenTTL).Err(); err != nil {
		return AuthResult{}, fmt.Errorf("expire session: %w", err)
	}

	accessToken, err := security.GenerateAccessToken(s.cfg.Security.JWTAccessSecret, user.ID, sessionID, s.cfg.Security.JWTAccessTTL)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}
