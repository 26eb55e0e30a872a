package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"golang.org/x/crypto/bcrypt"
)

// Directory is the part of the user directory that login depends on.
type Directory interface {
	Register(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	TouchLogin(ctx context.Context, id int64) error
}

type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO) (*user.User, error)
	Login(ctx context.Context, dto LoginDTO) (AuthTokens, *user.User, error)
	Refresh(ctx context.Context, dto RefreshTokenDTO) (AuthTokens, error)
	ValidateAccessToken(token string) (*Claims, error)
	ResolveCaller(ctx context.Context, id int64) (*user.User, error)
}

// Service is the main auth service with dependencies
type Service struct {
	directory  Directory
	tokens     *JWTTokenGenerator
	bcryptCost int
	logger     *slog.Logger
}

func NewService(directory Directory, tokens *JWTTokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		directory:  directory,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates a pending account. Role and permissions from the request are never honored.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*user.User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.HashPassword(dto.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, internal.NewInternalError("failed to register user", err)
	}

	u := user.NewPending(dto.Email, dto.FirstName, dto.LastName, hash)
	u.Department = dto.Department
	u.Phone = dto.Phone
	if err := s.directory.Register(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login validates credentials and returns tokens. Only active accounts may log in.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (AuthTokens, *user.User, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	if err := dto.Validate(); err != nil {
		return AuthTokens{}, nil, err
	}

	u, err := s.directory.GetByEmail(ctx, dto.Email)
	if err != nil {
		if internal.IsType(err, internal.ErrorTypeNotFound) {
			s.logger.Info("login failed: unknown email")
			return AuthTokens{}, nil, ErrInvalidCredentials
		}
		s.logger.Error("login failed: user lookup", "error", err)
		return AuthTokens{}, nil, internal.NewInternalError("failed to log in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.Password)); err != nil {
		s.logger.Info("login failed: wrong password", "user_id", u.ID)
		return AuthTokens{}, nil, ErrInvalidCredentials
	}

	if !u.IsActive() {
		s.logger.Info("login refused: account not active", "user_id", u.ID, "status", u.Status)
		return AuthTokens{}, nil, InactiveError(u.Status)
	}

	tokens, err := s.issue(u)
	if err != nil {
		return AuthTokens{}, nil, err
	}

	if err := s.directory.TouchLogin(ctx, u.ID); err == nil {
		now := time.Now()
		u.LastLoginAt = &now
	}

	s.logger.Info("user logged in", "user_id", u.ID, "role", u.Role)
	return tokens, u, nil
}

// Refresh rotates both tokens. The account is re-read so a suspension takes effect immediately.
func (s *Service) Refresh(ctx context.Context, dto RefreshTokenDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	claims, err := s.tokens.ValidateRefreshToken(dto.RefreshToken)
	if err != nil {
		return AuthTokens{}, err
	}
	id, _ := claims.UserID()

	u, err := s.ResolveCaller(ctx, id)
	if err != nil {
		return AuthTokens{}, err
	}
	if !u.IsActive() {
		return AuthTokens{}, InactiveError(u.Status)
	}
	return s.issue(u)
}

func (s *Service) ValidateAccessToken(token string) (*Claims, error) {
	return s.tokens.ValidateAccessToken(token)
}

// ResolveCaller loads the account behind a token subject.
func (s *Service) ResolveCaller(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.directory.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) || internal.IsType(err, internal.ErrorTypeNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return u, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) issue(u *user.User) (AuthTokens, error) {
	access, err := s.tokens.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		s.logger.Error("failed to issue access token", "error", err, "user_id", u.ID)
		return AuthTokens{}, internal.NewInternalError("failed to issue token", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(u.ID, u.Email)
	if err != nil {
		s.logger.Error("failed to issue refresh token", "error", err, "user_id", u.ID)
		return AuthTokens{}, internal.NewInternalError("failed to issue token", err)
	}
	return AuthTokens{AccessToken: access, RefreshToken: refresh}, nil
}
