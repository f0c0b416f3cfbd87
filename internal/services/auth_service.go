package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bookshelf/internal/apperror"
	"bookshelf/internal/models"
	"bookshelf/internal/repositories"
	"bookshelf/internal/security"
)

const (
	msgFieldsRequired   = "All fields are required"
	msgUserExists       = "User already exist with this email"
	msgUserNotFound     = "User not found."
	msgBadCredentials   = "Username or password incorrect!"
	msgUserLookupFailed = "Error while getting user"
	msgUserCreateFailed = "Error while creating user"
	msgHashFailed       = "Error while hashing password"
	msgTokenFailed      = "Error while signing the jwt token"
)

// AuthService handles registration and login.
type AuthService struct {
	userRepo repositories.UserRepository
	hasher   security.PasswordHasher
	tokens   security.TokenIssuer
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, hasher security.PasswordHasher, tokens security.TokenIssuer) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// normalizeEmail makes email lookups case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user and returns an access token bound to it.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return "", apperror.Validation(msgFieldsRequired)
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return "", apperror.Conflict(msgUserExists)
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return "", apperror.External(msgUserLookupFailed, err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return "", apperror.Internal(msgHashFailed, err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: digest,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration for the same email.
		if errors.Is(err, repositories.ErrDuplicate) {
			return "", apperror.Conflict(msgUserExists)
		}
		return "", apperror.External(msgUserCreateFailed, err)
	}

	return s.issue(user.ID)
}

// Login checks the credentials and returns a fresh access token. An unknown
// email is NotFound; a wrong password is an authentication failure reported
// with status 400.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", apperror.Validation(msgFieldsRequired)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", apperror.NotFound(msgUserNotFound)
		}
		return "", apperror.External(msgUserLookupFailed, err)
	}

	if !s.hasher.Verify(password, user.Password) {
		return "", apperror.Authentication(msgBadCredentials).WithStatus(http.StatusBadRequest)
	}

	return s.issue(user.ID)
}

func (s *AuthService) issue(userID string) (string, error) {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		return "", apperror.Internal(msgTokenFailed, err)
	}
	return token, nil
}
