// Package auth issues and validates sign-in sessions. Identity is carried
// as an explicit session object with a sign-in/sign-out lifecycle; no
// global authenticated-user state exists anywhere in the service.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/stampd-app/stampd/internal/app/domain/session"
	"github.com/stampd-app/stampd/internal/app/storage"
	"github.com/stampd-app/stampd/pkg/logger"
)

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSessionExpired means the token parsed but its session is gone or
	// past expiry.
	ErrSessionExpired = errors.New("session expired")
)

const (
	tokenIssuer = "stampd"
	sessionTTL  = 24 * time.Hour
)

// Claims is the JWT payload for a session token.
type Claims struct {
	UserID      string `json:"uid"`
	AccountType string `json:"account_type"`
	jwt.RegisteredClaims
}

// Identity is the resolved caller attached to request contexts.
type Identity struct {
	UserID      string
	AccountType session.AccountType
	SessionID   string
}

// Service manages users and sessions.
type Service struct {
	users    storage.UserStore
	sessions storage.SessionStore
	secret   []byte
	log      *logger.Logger
	now      func() time.Time
}

// New constructs the auth service. The secret signs session JWTs.
func New(users storage.UserStore, sessions storage.SessionStore, secret []byte, log *logger.Logger) (*Service, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 bytes")
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		secret:   secret,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// SignUp registers a user and returns it without starting a session.
func (s *Service) SignUp(ctx context.Context, email, password string, accountType session.AccountType) (session.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return session.User{}, fmt.Errorf("valid email is required")
	}
	if len(password) < 8 {
		return session.User{}, fmt.Errorf("password must be at least 8 characters")
	}
	if accountType != session.AccountCustomer && accountType != session.AccountBusiness {
		return session.User{}, fmt.Errorf("unknown account type %q", accountType)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return session.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, session.User{
		Email:        email,
		PasswordHash: string(hash),
		AccountType:  accountType,
	})
	if err != nil {
		return session.User{}, err
	}
	s.log.WithField("user_id", user.ID).
		WithField("account_type", string(accountType)).
		Info("user registered")
	return user, nil
}

// SignIn verifies credentials and opens a session, returning the signed
// token the client presents on subsequent requests.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, session.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", session.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", session.User{}, ErrInvalidCredentials
	}

	now := s.now()
	expires := now.Add(sessionTTL)
	claims := &Claims{
		UserID:      user.ID,
		AccountType: string(user.AccountType),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", session.User{}, fmt.Errorf("sign token: %w", err)
	}

	if _, err := s.sessions.CreateSession(ctx, session.Session{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: expires,
	}); err != nil {
		return "", session.User{}, fmt.Errorf("create session: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("user signed in")
	return token, user, nil
}

// Authenticate resolves a presented token to an identity. It validates
// the JWT signature, then requires a live session row, and touches the
// session's last-seen timestamp.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return Identity{}, ErrSessionExpired
	}

	sess, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return Identity{}, ErrSessionExpired
	}
	if sess.Expired(s.now()) {
		_ = s.sessions.DeleteSession(ctx, sess.ID)
		return Identity{}, ErrSessionExpired
	}

	_ = s.sessions.TouchSession(ctx, sess.ID, s.now())

	return Identity{
		UserID:      claims.UserID,
		AccountType: session.AccountType(claims.AccountType),
		SessionID:   sess.ID,
	}, nil
}

// SignOut closes the session behind a token. Unknown tokens are a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	sess, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sess.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	s.log.WithField("user_id", sess.UserID).Info("user signed out")
	return nil
}

// CleanupExpired drops sessions past expiry.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	return s.sessions.DeleteExpiredSessions(ctx, s.now())
}

// GetUser returns a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (session.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
