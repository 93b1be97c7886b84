package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"lending-fund-api/config"
	"lending-fund-api/internal/database"
)

// UserStore is the repository surface the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *database.User) error
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
	GetUserByID(ctx context.Context, id int64) (*database.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

// Service implements registration, login, and password rotation.
type Service struct {
	store     UserStore
	jwt       *JWTManager
	passwords *PasswordManager
	logger    zerolog.Logger
}

func NewService(store UserStore, cfg config.AuthConfig, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		jwt:       NewJWTManager(cfg.JWTSecret, cfg.AccessTokenDuration),
		passwords: NewPasswordManager(cfg.BcryptCost, cfg.MinPasswordLength),
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

// JWTManager exposes the token manager for middleware wiring.
func (s *Service) JWTManager() *JWTManager {
	return s.jwt
}

// Register creates a new account with a hashed password.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*database.User, error) {
	if err := s.passwords.ValidateStrength(req.Password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &database.User{
		Username:     strings.ToLower(strings.TrimSpace(req.Username)),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		State:        "ACTIVE",
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.ToLower(strings.TrimSpace(req.Username)))
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.passwords.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		// Login still succeeds; the timestamp is informational.
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to record last login")
	}

	return &LoginResponse{
		Token:     token,
		ExpiresIn: s.jwt.AccessTokenSeconds(),
		User:      user,
	}, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, userID int64, req ChangePasswordRequest) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.passwords.VerifyPassword(req.CurrentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := s.passwords.ValidateStrength(req.NewPassword); err != nil {
		return err
	}

	hash, err := s.passwords.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info().Int64("user_id", userID).Msg("password changed")
	return nil
}

// RecoverPassword resets a forgotten password by username. Unknown users
// report the same error as bad credentials so the public endpoint does not
// reveal which usernames exist.
func (s *Service) RecoverPassword(ctx context.Context, req RecoverPasswordRequest) error {
	if err := s.passwords.ValidateStrength(req.NewPassword); err != nil {
		return err
	}

	user, err := s.store.GetUserByUsername(ctx, strings.ToLower(strings.TrimSpace(req.Username)))
	if err != nil {
		if database.IsNotFound(err) {
			return ErrInvalidCredentials
		}
		return err
	}

	hash, err := s.passwords.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("password recovered")
	return nil
}

// GetUser returns the account for an id.
func (s *Service) GetUser(ctx context.Context, userID int64) (*database.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
