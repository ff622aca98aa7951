// Package auth manages accounts and sessions. Sessions are opaque bearer
// tokens kept in a TTL cache; accounts live in a storage.UserStore.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bankroll/internal/cache"
	"bankroll/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Session is an authenticated bearer token.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SignUpResult carries a session when the account is usable immediately.
// A nil Session means the confirmation token went out through the
// ConfirmationSender and must be redeemed first.
type SignUpResult struct {
	UserID  string
	Session *Session
}

// ConfirmationSender delivers the token a new account must redeem.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, email, token string) error
}

type Options struct {
	MinPasswordLength   int
	RequireConfirmation bool
	SignupEnabled       bool
	SessionTTL          time.Duration
	// Confirmations defaults to writing the token to the log.
	Confirmations ConfirmationSender
}

// logSender hands tokens to the operator through the log, for deployments
// without a mail transport.
type logSender struct {
	logger *slog.Logger
}

func (l logSender) SendConfirmation(ctx context.Context, email, token string) error {
	l.logger.InfoContext(ctx, "Confirmation token issued", "email", email, "token", token)
	return nil
}

func DefaultOptions() Options {
	return Options{
		MinPasswordLength: 6,
		SignupEnabled:     true,
		SessionTTL:        24 * time.Hour,
	}
}

type Provider struct {
	users    storage.UserStore
	sessions cache.Cache[Session]
	broker   *Broker
	opts     Options
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
	newToken func() string
	hashCost int
}

func NewProvider(users storage.UserStore, sessions cache.Cache[Session], opts Options, logger *slog.Logger) *Provider {
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Confirmations == nil {
		opts.Confirmations = logSender{logger: logger.With("component", "auth")}
	}
	return &Provider{
		users:    users,
		sessions: sessions,
		broker:   NewBroker(16, logger),
		opts:     opts,
		validate: validator.New(),
		logger:   logger.With("component", "auth"),
		now:      time.Now,
		newToken: func() string { return uuid.NewString() },
		hashCost: bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) SignUp(ctx context.Context, email, password, confirm string) (SignUpResult, error) {
	if !p.opts.SignupEnabled {
		return SignUpResult{}, ErrSignupDisabled
	}
	email = normalizeEmail(email)
	if err := p.validate.Var(email, "required,email"); err != nil {
		return SignUpResult{}, ErrInvalidEmail
	}
	if password != confirm {
		return SignUpResult{}, ErrPasswordMismatch
	}
	if len(password) < p.opts.MinPasswordLength {
		return SignUpResult{}, &weakPasswordError{min: p.opts.MinPasswordLength}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("hash password: %w", err)
	}

	u := storage.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Confirmed:    !p.opts.RequireConfirmation,
		CreatedAt:    p.now().UTC(),
	}
	if p.opts.RequireConfirmation {
		u.ConfirmToken = p.newToken()
	}
	if err := p.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return SignUpResult{}, ErrUserAlreadyRegistered
		}
		return SignUpResult{}, fmt.Errorf("create user: %w", err)
	}

	p.logger.InfoContext(ctx, "User signed up", "user_id", u.ID, "confirmed", u.Confirmed)
	p.broker.Publish(Event{Type: SignedUp, UserID: u.ID, At: p.now()})

	res := SignUpResult{UserID: u.ID}
	if p.opts.RequireConfirmation {
		if err := p.opts.Confirmations.SendConfirmation(ctx, u.Email, u.ConfirmToken); err != nil {
			p.logger.ErrorContext(ctx, "Failed to send confirmation", "user_id", u.ID, "error", err)
			return SignUpResult{}, fmt.Errorf("send confirmation: %w", err)
		}
		return res, nil
	}
	s := p.startSession(ctx, u)
	res.Session = &s
	return res, nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	u, err := p.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !u.Confirmed {
		return Session{}, ErrEmailNotConfirmed
	}
	return p.startSession(ctx, u), nil
}

// Confirm redeems a confirmation token and signs the user in.
func (p *Provider) Confirm(ctx context.Context, token string) (Session, error) {
	u, err := p.users.ConfirmUser(ctx, strings.TrimSpace(token))
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("confirm user: %w", err)
	}
	p.logger.InfoContext(ctx, "User confirmed", "user_id", u.ID)
	return p.startSession(ctx, u), nil
}

func (p *Provider) startSession(ctx context.Context, u storage.User) Session {
	now := p.now()
	s := Session{
		Token:     p.newToken(),
		UserID:    u.ID,
		Email:     u.Email,
		ExpiresAt: now.Add(p.opts.SessionTTL),
	}
	p.sessions.Set(ctx, s.Token, s)
	p.broker.Publish(Event{Type: SignedIn, UserID: u.ID, At: now})
	return s
}

// GetSession resolves a bearer token. Missing and expired tokens both yield
// ErrNoSession.
func (p *Provider) GetSession(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	s, ok := p.sessions.Get(ctx, token)
	if !ok {
		return Session{}, ErrNoSession
	}
	if !p.now().Before(s.ExpiresAt) {
		p.sessions.Delete(ctx, token)
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	s, err := p.GetSession(ctx, token)
	if err != nil {
		return err
	}
	p.sessions.Delete(ctx, token)
	p.logger.InfoContext(ctx, "User signed out", "user_id", s.UserID)
	p.broker.Publish(Event{Type: SignedOut, UserID: s.UserID, At: p.now()})
	return nil
}

// Subscribe returns a channel of session transitions for every user.
func (p *Provider) Subscribe() <-chan Event {
	return p.broker.Subscribe()
}

func (p *Provider) Unsubscribe(ch <-chan Event) {
	p.broker.Unsubscribe(ch)
}
