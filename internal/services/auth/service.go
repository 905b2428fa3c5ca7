package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/missioncommand/internal/dependencies/clock"
	"github.com/mcoot/missioncommand/internal/dependencies/random"
	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/storage"
)

// tokenBytes is the entropy of session and anti-forgery tokens
const tokenBytes = 32

// Session represents an authenticated session
type Session struct {
	Token     string
	CSRFToken string
	UserID    model.UserID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// csrfToken is an anti-forgery token bound to a session
type csrfToken struct {
	sessionToken string
	expiresAt    time.Time
}

// Service handles users, credentials and session management
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	mu         sync.RWMutex
	sessions   map[string]*Session
	csrfTokens map[string]csrfToken

	// csrfKey signs anonymous anti-forgery tokens; it lives as long as the process
	csrfKey []byte

	sessionDuration time.Duration
	bcryptCost      int
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
	BcryptCost      int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
		BcryptCost:      bcrypt.DefaultCost,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = defaults.SessionDuration
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	key := make([]byte, tokenBytes)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(key)
	return &Service{
		storage:         storage,
		clock:           clock,
		random:          random,
		logger:          logger,
		sessions:        make(map[string]*Session),
		csrfTokens:      make(map[string]csrfToken),
		csrfKey:         key,
		sessionDuration: cfg.SessionDuration,
		bcryptCost:      cfg.BcryptCost,
	}
}

// EnsureAdministrator writes the Administrator with the given password,
// replacing any previous password
func (s *Service) EnsureAdministrator(ctx context.Context, password string) error {
	if password == "" {
		return model.ErrInvalidUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.storage.SaveUser(ctx, model.NewAdministrator(string(hash))); err != nil {
		return err
	}
	s.logger.Info("administrator ensured")
	return nil
}

// AddUser creates a user. The caller needs ROLE_MANAGE_USERS.
func (s *Service) AddUser(ctx context.Context, caller *model.Caller, details model.UserDetails) (*model.User, error) {
	if err := caller.Require(model.AuthorityManageUsers); err != nil {
		return nil, err
	}
	if details.Username == model.AdministratorUsername {
		return nil, model.ErrReservedUsername
	}
	if strings.TrimSpace(details.Username) == "" || details.Password == "" || !details.Authorities.Valid() {
		return nil, model.ErrInvalidUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(details.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := model.NewUser(model.UserID(s.random.UUID()), details.Username, string(hash), details.Authorities)
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user added",
		slog.String("user_id", string(user.ID)),
		slog.String("username", user.Username),
		slog.Any("authorities", user.Authorities.Strings()),
	)

	return user, nil
}

// FindByUsername returns the user with the given username
func (s *Service) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.storage.GetUserByUsername(ctx, username)
}

// FindByID returns the user with the given ID
func (s *Service) FindByID(ctx context.Context, id model.UserID) (*model.User, error) {
	return s.storage.GetUser(ctx, id)
}

// GetUser returns a user to a caller allowed to see it: a user manager,
// the user themself, or the Administrator. Authorization is checked before
// the user is looked up.
func (s *Service) GetUser(ctx context.Context, caller *model.Caller, id model.UserID) (*model.User, error) {
	if caller == nil {
		return nil, model.ErrNotAuthenticated
	}
	if !caller.Has(model.AuthorityManageUsers) && caller.UserID != id && !caller.IsAdministrator() {
		return nil, model.ErrInsufficientAuthority
	}
	return s.storage.GetUser(ctx, id)
}

// ListUsers returns every user. The caller needs ROLE_MANAGE_USERS.
func (s *Service) ListUsers(ctx context.Context, caller *model.Caller) ([]*model.User, error) {
	if err := caller.Require(model.AuthorityManageUsers); err != nil {
		return nil, err
	}
	return s.storage.ListUsers(ctx)
}

// Authenticate checks a username and password
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.CanAuthenticate() {
		return nil, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

// Login authenticates a user and creates a session
func (s *Service) Login(ctx context.Context, username, password string) (*Session, *model.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		s.logger.Info("login failed", slog.String("username", username))
		return nil, nil, err
	}

	session := s.createSession(user.ID)

	s.logger.Info("session created",
		slog.String("user_id", string(user.ID)),
		slog.Time("expires_at", session.ExpiresAt),
	)

	return session, user, nil
}

// ValidateSession checks if a session token is valid and returns the session
func (s *Service) ValidateSession(token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, model.ErrInvalidSession
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.Logout(token)
		return nil, model.ErrInvalidSession
	}

	return session, nil
}

// Caller resolves a session to the identity used for authorization.
// Authorities are read from storage so changes apply to live sessions.
func (s *Service) Caller(ctx context.Context, session *Session) (*model.Caller, *model.User, error) {
	user, err := s.storage.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, nil, model.ErrInvalidSession
		}
		return nil, nil, err
	}
	if !user.CanAuthenticate() {
		return nil, nil, model.ErrInvalidSession
	}
	return user.Caller(), user, nil
}

// IssueCSRFToken issues an anonymous anti-forgery token. Anonymous tokens
// are signed JWTs rather than stored entries.
func (s *Service) IssueCSRFToken() (string, error) {
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		ID:        s.random.Token(tokenBytes),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionDuration)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.csrfKey)
	if err != nil {
		return "", fmt.Errorf("sign anti-forgery token: %w", err)
	}
	return token, nil
}

// ValidateCSRF checks an anti-forgery token. When sessionToken is set the
// token must have been issued to that session; otherwise any live token is
// accepted.
func (s *Service) ValidateCSRF(sessionToken, token string) error {
	if token == "" {
		return model.ErrInvalidCSRFToken
	}
	if sessionToken == "" && s.validAnonymousToken(token) {
		return nil
	}

	s.mu.RLock()
	issued, ok := s.csrfTokens[token]
	s.mu.RUnlock()

	if !ok || s.clock.Now().After(issued.expiresAt) {
		return model.ErrInvalidCSRFToken
	}
	if sessionToken != "" && issued.sessionToken != sessionToken {
		return model.ErrInvalidCSRFToken
	}
	return nil
}

func (s *Service) validAnonymousToken(token string) bool {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	parsed, err := parser.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return s.csrfKey, nil
	})
	return err == nil && parsed.Valid
}

// Logout removes a session and its anti-forgery token
func (s *Service) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[token]; ok {
		delete(s.csrfTokens, session.CSRFToken)
		delete(s.sessions, token)
	}
}

// createSession creates a new session, bound to a fresh anti-forgery token
func (s *Service) createSession(userID model.UserID) *Session {
	now := s.clock.Now()

	session := &Session{
		Token:     s.random.Token(tokenBytes),
		CSRFToken: s.random.Token(tokenBytes),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[session.Token] = session
	s.csrfTokens[session.CSRFToken] = csrfToken{sessionToken: session.Token, expiresAt: session.ExpiresAt}
	s.mu.Unlock()

	return session
}

// CleanExpiredSessions removes expired sessions and tokens (call periodically)
func (s *Service) CleanExpiredSessions() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
	for token, issued := range s.csrfTokens {
		if now.After(issued.expiresAt) {
			delete(s.csrfTokens, token)
		}
	}
}

// SessionCount returns the number of live sessions
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
