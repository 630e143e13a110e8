package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"accountd/pkg/logger"
	"accountd/pkg/oauth"
	"accountd/pkg/password"
	"accountd/pkg/queue"
	"accountd/pkg/token"
	"accountd/pkg/validator"
)

// Service implements the account flows: register, login, verify, password
// reset, and OAuth login. Emails are never sent inline; they are enqueued
// so a slow or failing mail provider cannot block a request.
type Service struct {
	cfg      Config
	store    Store
	hasher   *password.Hasher
	policy   password.Policy
	tokens   *token.Service
	enqueuer *queue.Enqueuer
	logger   *slog.Logger
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger. The default discards everything.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithPasswordPolicy overrides the default password strength policy.
func WithPasswordPolicy(p password.Policy) ServiceOption {
	return func(s *Service) {
		s.policy = p
	}
}

// NewService creates the account service.
func NewService(cfg Config, store Store, hasher *password.Hasher, tokens *token.Service, enqueuer *queue.Enqueuer, opts ...ServiceOption) *Service {
	s := &Service{
		cfg:      cfg,
		store:    store,
		hasher:   hasher,
		policy:   password.DefaultPolicy(),
		tokens:   tokens,
		enqueuer: enqueuer,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an unverified account and enqueues the verification
// email. When the email is already taken the call still appears to succeed
// and the existing owner is notified instead, so the endpoint cannot be
// used to probe which emails are registered.
func (s *Service) Register(ctx context.Context, emailAddr, name, plain string) (*Account, error) {
	emailAddr = normalizeEmail(emailAddr)

	rules := []validator.Rule{
		validator.Required("account.email", emailAddr),
		validator.ValidEmail("account.email", emailAddr),
		validator.Required("account.name", name),
		validator.Required("account.password", plain),
	}
	rules = append(rules, s.policy.Rules("account.password", plain, name, emailAddr)...)
	if err := validator.Apply(rules...); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acc := &Account{
		ID:           uuid.New(),
		Email:        emailAddr,
		Name:         name,
		PasswordHash: hash,
	}

	if err := s.store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return s.handleDuplicateRegistration(ctx, emailAddr)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	tokenValue, err := s.tokens.Issue(ctx, acc.ID, token.PurposeVerifyEmail, s.cfg.VerifyTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue verification token: %w", err)
	}

	if err := s.enqueuer.Enqueue(ctx, SendVerifyAccountEmail{
		Email: acc.Email,
		Name:  acc.Name,
		Token: tokenValue,
	}); err != nil {
		return nil, fmt.Errorf("failed to enqueue verification email: %w", err)
	}

	s.logger.Info("account registered",
		logger.AccountID(acc.ID.String()),
		logger.Component("account"),
	)

	return acc, nil
}

// handleDuplicateRegistration notifies the existing owner and reports
// success to the caller. The returned account is nil so handlers do not
// leak the existing record.
func (s *Service) handleDuplicateRegistration(ctx context.Context, emailAddr string) (*Account, error) {
	existing, err := s.store.GetAccountByEmail(ctx, emailAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing account: %w", err)
	}

	if err := s.enqueuer.Enqueue(ctx, SendAccountOddRegisterAttemptEmail{
		Email: existing.Email,
		Name:  existing.Name,
	}); err != nil {
		return nil, fmt.Errorf("failed to enqueue registration notice: %w", err)
	}

	s.logger.Info("registration attempt on existing email",
		logger.AccountID(existing.ID.String()),
		logger.Component("account"),
	)

	return nil, nil
}

// Login authenticates by email and password. Every failure collapses into
// ErrInvalidCredentials; only malformed stored digests are logged, since
// that signals corruption rather than a wrong guess.
func (s *Service) Login(ctx context.Context, emailAddr, plain string) (*Account, error) {
	emailAddr = normalizeEmail(emailAddr)

	acc, err := s.store.GetAccountByEmail(ctx, emailAddr)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(plain, acc.PasswordHash)
	if err != nil {
		if errors.Is(err, password.ErrMalformedDigest) {
			s.logger.Error("stored password digest is malformed",
				logger.AccountID(acc.ID.String()),
				logger.Component("account"),
			)
		}
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	// Upgrade digests hashed with outdated parameters while we still have
	// the plaintext in hand.
	if s.hasher.NeedsRehash(acc.PasswordHash) {
		if newHash, err := s.hasher.Hash(plain); err == nil {
			if err := s.store.UpdatePassword(ctx, acc.ID, newHash); err != nil {
				s.logger.Warn("failed to upgrade password digest",
					logger.AccountID(acc.ID.String()),
					logger.Error(err),
					logger.Component("account"),
				)
			} else {
				acc.PasswordHash = newHash
			}
		}
	}

	if err := s.store.TouchLastLogin(ctx, acc.ID); err != nil {
		s.logger.Warn("failed to record login time",
			logger.AccountID(acc.ID.String()),
			logger.Error(err),
			logger.Component("account"),
		)
	}

	return acc, nil
}

// Verify redeems an email verification token, marks the account verified,
// and enqueues the welcome email.
func (s *Service) Verify(ctx context.Context, tokenValue string) (*Account, error) {
	accountID, err := s.tokens.Redeem(ctx, tokenValue, token.PurposeVerifyEmail)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkVerified(ctx, accountID); err != nil {
		return nil, fmt.Errorf("failed to mark account verified: %w", err)
	}

	acc, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := s.enqueuer.Enqueue(ctx, SendWelcomeAccountEmail{
		Email: acc.Email,
		Name:  acc.Name,
	}); err != nil {
		return nil, fmt.Errorf("failed to enqueue welcome email: %w", err)
	}

	return acc, nil
}

// RequestPasswordReset issues a reset token and enqueues the reset email.
// An unknown email is silently ignored, so the endpoint cannot be used to
// probe which emails are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)

	acc, err := s.store.GetAccountByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up account: %w", err)
	}

	tokenValue, err := s.tokens.Issue(ctx, acc.ID, token.PurposeResetPassword, s.cfg.ResetTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	return s.enqueuer.Enqueue(ctx, SendResetPasswordEmail{
		Email: acc.Email,
		Name:  acc.Name,
		Token: tokenValue,
	})
}

// ResetPassword redeems a reset token and replaces the password, then
// enqueues the change notification.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, plain string) error {
	accountID, err := s.tokens.Redeem(ctx, tokenValue, token.PurposeResetPassword)
	if err != nil {
		return err
	}

	acc, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	rules := append([]validator.Rule{
		validator.Required("account.password", plain),
	}, s.policy.Rules("account.password", plain, acc.Name, acc.Email)...)
	if err := validator.Apply(rules...); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, accountID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return s.enqueuer.Enqueue(ctx, SendPasswordWasResetEmail{
		Email: acc.Email,
		Name:  acc.Name,
	})
}

// OAuthLogin resolves an external identity into a local account: existing
// identities log straight in, unknown ones create a verified account (the
// provider already vouched for the email) and link the identity.
func (s *Service) OAuthLogin(ctx context.Context, ident oauth.Identity) (*Account, error) {
	acc, err := s.store.FindByIdentity(ctx, ident.Provider, ident.Username)
	if err == nil {
		// Refresh the stored profile and token on every login.
		if err := s.store.LinkIdentity(ctx, &Identity{
			ID:           uuid.New(),
			AccountID:    acc.ID,
			Provider:     ident.Provider,
			Username:     ident.Username,
			Name:         ident.Name,
			RefreshToken: ident.RefreshToken,
		}); err != nil {
			return nil, fmt.Errorf("failed to refresh identity: %w", err)
		}
		if err := s.store.TouchLastLogin(ctx, acc.ID); err != nil {
			s.logger.Warn("failed to record login time",
				logger.AccountID(acc.ID.String()),
				logger.Error(err),
				logger.Component("account"),
			)
		}
		return acc, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	// Prefer the address the provider vouches for; some GitHub profiles
	// expose no email at all, and the login is the only handle left.
	emailAddr := ident.Email
	if emailAddr == "" {
		emailAddr = ident.Username
	}

	acc = &Account{
		ID:       uuid.New(),
		Email:    normalizeEmail(emailAddr),
		Name:     ident.Name,
		Verified: true,
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			// The email belongs to a password account; attach the identity
			// to it instead of creating a duplicate.
			existing, lookupErr := s.store.GetAccountByEmail(ctx, acc.Email)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to load existing account: %w", lookupErr)
			}
			acc = existing
		} else {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
	}

	if err := s.store.LinkIdentity(ctx, &Identity{
		ID:           uuid.New(),
		AccountID:    acc.ID,
		Provider:     ident.Provider,
		Username:     ident.Username,
		Name:         ident.Name,
		RefreshToken: ident.RefreshToken,
	}); err != nil {
		return nil, fmt.Errorf("failed to link identity: %w", err)
	}

	if err := s.store.TouchLastLogin(ctx, acc.ID); err != nil {
		s.logger.Warn("failed to record login time",
			logger.AccountID(acc.ID.String()),
			logger.Error(err),
			logger.Component("account"),
		)
	}

	s.logger.Info("oauth login",
		logger.AccountID(acc.ID.String()),
		logger.Component("account"),
		slog.String("provider", ident.Provider),
	)

	return acc, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
