// Package worker manages staff accounts: signup with admin approval, login,
// password reset and self-service profile changes.
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-salon/internal/auth"
	"github.com/ovaphlow/pitchfork/service-salon/internal/notify"
	"github.com/ovaphlow/pitchfork/service-salon/internal/worker/entity"
	workerrepo "github.com/ovaphlow/pitchfork/service-salon/internal/worker/repo"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/utilities"
)

// ResetTokenTTL bounds how long a password reset link works.
const ResetTokenTTL = time.Hour

// ResetRequestedMessage is returned for every reset request, known email or not.
const ResetRequestedMessage = "If this email exists, a reset link will be sent."

// PasswordHasher defines minimal hashing interface.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

var (
	ErrMissingFields      = apperr.New(apperr.KindValidation, "All fields are required.")
	ErrDuplicate          = apperr.New(apperr.KindConflict, "Username or email already in use.")
	ErrBadValidationToken = apperr.New(apperr.KindInvalidToken, "Invalid or expired validation token.")
	ErrBadCredentials     = apperr.New(apperr.KindInvalidCredentials, "Invalid credentials.")
	ErrNotValidated       = apperr.New(apperr.KindNotValidated, "Account not validated yet. Please wait for admin approval.")
	ErrEmailRequired      = apperr.New(apperr.KindValidation, "Email required.")
	ErrResetFields        = apperr.New(apperr.KindValidation, "Token and new password required.")
	ErrBadResetToken      = apperr.New(apperr.KindInvalidToken, "Invalid or expired token.")
	ErrProfileFields      = apperr.New(apperr.KindValidation, "Username and email required.")
	ErrUnauthorized       = apperr.New(apperr.KindUnauthorized, "Missing or invalid token")
)

// Notifier is the fire-and-forget mail channel.
type Notifier interface {
	Dispatch(msg notify.Message)
}

type Config struct {
	BaseURL    string
	AdminEmail string
}

// LoginResult is what a successful login hands back.
type LoginResult struct {
	Token  string            `json:"token"`
	Worker entity.PublicView `json:"worker"`
}

// Service orchestrates worker account flows.
type Service struct {
	repo     *workerrepo.WorkerRepo
	hasher   PasswordHasher
	tokens   *auth.Service
	notifier Notifier
	clock    clockwork.Clock
	logger   *zap.SugaredLogger
	cfg      Config
}

func NewService(r *workerrepo.WorkerRepo, hasher PasswordHasher, tokens *auth.Service, notifier Notifier, clock clockwork.Clock, logger *zap.SugaredLogger, cfg Config) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 10}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{repo: r, hasher: hasher, tokens: tokens, notifier: notifier, clock: clock, logger: logger, cfg: cfg}
}

// Signup registers an unvalidated worker and asks the admin to approve it.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*entity.PublicView, error) {
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	for _, ident := range []string{username, email} {
		_, err := s.repo.FindByIdentifier(ctx, ident)
		if err == nil {
			return nil, ErrDuplicate
		}
		if !errors.Is(err, workerrepo.ErrNotFound) {
			return nil, apperr.Internal(err)
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	token, err := utilities.NewToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	w, err := s.repo.Create(ctx, &entity.Worker{
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		IsValidated:     false,
		ValidationToken: &token,
		CreatedAt:       s.now(),
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, apperr.Internal(err)
	}

	s.logger.Infow("worker signed up", "worker_id", w.ID, "username", w.Username)
	s.notify(notify.WorkerSignupRequest(s.cfg.AdminEmail, username, email, s.cfg.BaseURL+"/api/workers/validate/"+token))
	view := w.Public()
	return &view, nil
}

// Validate approves the worker holding token. Validation tokens do not expire.
func (s *Service) Validate(ctx context.Context, token string) (*entity.PublicView, error) {
	if token == "" {
		return nil, ErrBadValidationToken
	}
	w, err := s.repo.FindByValidationToken(ctx, token)
	if err != nil {
		if errors.Is(err, workerrepo.ErrNotFound) {
			return nil, ErrBadValidationToken
		}
		return nil, apperr.Internal(err)
	}
	if err := s.repo.MarkValidated(ctx, w.ID); err != nil {
		return nil, apperr.Internal(err)
	}
	w.IsValidated = true
	w.ValidationToken = nil
	view := w.Public()
	return &view, nil
}

// Login authenticates by username or email. Unknown identifiers and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if identifier == "" || password == "" {
		return nil, ErrMissingFields
	}
	w, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		// same answer as a wrong password, no user enumeration
		if errors.Is(err, workerrepo.ErrNotFound) {
			metrics.WorkerLogins.WithLabelValues("invalid").Inc()
			return nil, ErrBadCredentials
		}
		return nil, apperr.Internal(err)
	}
	if !s.hasher.Verify(w.PasswordHash, password) {
		metrics.WorkerLogins.WithLabelValues("invalid").Inc()
		return nil, ErrBadCredentials
	}
	if !w.IsValidated {
		metrics.WorkerLogins.WithLabelValues("not_validated").Inc()
		return nil, ErrNotValidated
	}
	tok, err := s.tokens.IssueToken(w.ID, w.Username, w.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	metrics.WorkerLogins.WithLabelValues("ok").Inc()
	return &LoginResult{Token: tok, Worker: w.Public()}, nil
}

// RequestPasswordReset mints a one-hour reset token when email is known and
// returns the same message either way.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", ErrEmailRequired
	}
	w, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, workerrepo.ErrNotFound) {
			return ResetRequestedMessage, nil
		}
		return "", apperr.Internal(err)
	}
	token, err := utilities.NewToken()
	if err != nil {
		return "", apperr.Internal(err)
	}
	if err := s.repo.SetResetToken(ctx, w.ID, token, s.now().Add(ResetTokenTTL)); err != nil {
		return "", apperr.Internal(err)
	}
	s.notify(notify.PasswordReset(w.Email, s.cfg.BaseURL+"/worker-password-reset?token="+token))
	return ResetRequestedMessage, nil
}

// PerformPasswordReset stores a new password for the holder of an unexpired
// reset token and burns the token.
func (s *Service) PerformPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return ErrResetFields
	}
	w, err := s.repo.FindByResetToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, workerrepo.ErrNotFound) {
			return ErrBadResetToken
		}
		return apperr.Internal(err)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	ok, err := s.repo.ResetPassword(ctx, w.ID, token, hash, s.now())
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return ErrBadResetToken
	}
	s.logger.Infow("worker password reset", "worker_id", w.ID)
	return nil
}

// Me returns the identity carried by the caller's credential.
func (s *Service) Me(caller *auth.Identity) (*auth.Identity, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	out := *caller
	return &out, nil
}

// UpdateProfile changes the caller's own username and email.
func (s *Service) UpdateProfile(ctx context.Context, caller *auth.Identity, username, email string) (*entity.PublicView, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	if username == "" || email == "" {
		return nil, ErrProfileFields
	}
	w, err := s.repo.UpdateInfo(ctx, caller.ID, username, email)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return nil, ErrDuplicate
		case errors.Is(err, workerrepo.ErrNotFound):
			return nil, ErrUnauthorized
		}
		return nil, apperr.Internal(err)
	}
	view := w.Public()
	return &view, nil
}

// DeleteSelf removes the caller's own account.
func (s *Service) DeleteSelf(ctx context.Context, caller *auth.Identity) error {
	if caller == nil {
		return ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, caller.ID); err != nil {
		return apperr.Internal(err)
	}
	s.logger.Infow("worker deleted own account", "worker_id", caller.ID)
	return nil
}

// List returns every worker.
func (s *Service) List(ctx context.Context) ([]entity.PublicView, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]entity.PublicView, 0, len(rows))
	for _, w := range rows {
		out = append(out, w.Public())
	}
	return out, nil
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Second)
}

func (s *Service) notify(msg notify.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(msg)
}
