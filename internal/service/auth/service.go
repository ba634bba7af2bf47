package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/mindcare/backend/internal/model/user"
	"github.com/zhouzirui/mindcare/backend/internal/store"
)

const minPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid bearer token")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// ValidationError reports a malformed registration request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UserStore is the subset of store.Store the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UserByID(ctx context.Context, id string) (user.User, error)
	UserByUsername(ctx context.Context, username string) (user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type Config struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	BcryptCost int
	Now        func() time.Time
}

// Claims identifies the caller of an authenticated request.
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service registers users and issues and verifies their tokens.
type Service struct {
	users UserStore
	cfg   Config

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewService(users UserStore, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		users:   users,
		cfg:     cfg,
		revoked: make(map[string]time.Time),
	}
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	switch {
	case username == "":
		return user.User{}, &ValidationError{Message: "username is required"}
	case email == "" || !strings.Contains(email, "@"):
		return user.User{}, &ValidationError{Message: "a valid email is required"}
	case len(in.Password) < minPasswordLength:
		return user.User{}, &ValidationError{Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.users.CreateUser(ctx, user.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
}

// Login verifies the password and issues a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (Token, user.User, error) {
	u, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrUserNotFound) {
		return Token{}, user.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, user.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Token{}, user.User{}, ErrInvalidCredentials
	}

	token, err := s.Issue(u.ID)
	if err != nil {
		return Token{}, user.User{}, err
	}
	return token, u, nil
}

// Issue signs a token for userID.
func (s *Service) Issue(userID string) (Token, error) {
	now := s.cfg.Now().UTC()
	expires := now.Add(s.cfg.TTL)

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expires}, nil
}

// Authenticate parses and validates a bearer token. Tokens whose subject no
// longer exists are rejected with ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	registered := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, registered, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	sub := strings.TrimSpace(registered.Subject)
	if sub == "" || registered.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	s.mu.Lock()
	_, revoked := s.revoked[registered.ID]
	s.mu.Unlock()
	if revoked {
		return Claims{}, ErrTokenRevoked
	}

	// a deleted account invalidates every outstanding token
	if _, err := s.users.UserByID(ctx, sub); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return Claims{}, ErrInvalidToken
		}
		return Claims{}, fmt.Errorf("resolve token subject: %w", err)
	}

	return Claims{
		UserID:    sub,
		TokenID:   registered.ID,
		ExpiresAt: registered.ExpiresAt.Time,
	}, nil
}

// Revoke blocks the token until it would have expired anyway.
func (s *Service) Revoke(c Claims) {
	now := s.cfg.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	if c.TokenID != "" {
		s.revoked[c.TokenID] = c.ExpiresAt
	}
}

func (s *Service) CurrentUser(ctx context.Context, id string) (user.User, error) {
	return s.users.UserByID(ctx, id)
}

// DeleteAccount removes the caller with all of its records and revokes the
// token used for the request.
func (s *Service) DeleteAccount(ctx context.Context, c Claims) error {
	if err := s.users.DeleteUser(ctx, c.UserID); err != nil {
		return err
	}
	s.Revoke(c)
	return nil
}

// EnsureUser returns the user named username, creating it with a random
// password when missing. Used for transports without a login step.
func (s *Service) EnsureUser(ctx context.Context, username, email string) (user.User, error) {
	u, err := s.users.UserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return user.User{}, err
	}

	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return user.User{}, fmt.Errorf("generate password: %w", err)
	}
	u, err = s.Register(ctx, RegisterInput{Username: username, Email: email, Password: hex.EncodeToString(secret)})
	if errors.Is(err, store.ErrDuplicateUser) {
		return s.users.UserByUsername(ctx, username)
	}
	return u, err
}
