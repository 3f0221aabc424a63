// Package otp verifies phone numbers with one-time codes.
//
// Codes are six digits, stored only as bcrypt hashes, expire after a TTL
// and accept a bounded number of attempts. Sends are throttled per phone
// number and go to the primary SMS gateway first, the fallback second.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/ratelimit"
	"github.com/jkaninda/soko/internal/retry"
)

// CodeLength is the number of digits in a code.
const CodeLength = 6

var (
	// ErrChallengeExpired is returned for expired or consumed challenges.
	ErrChallengeExpired = errors.New("otp: challenge expired")

	phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

// Store provides challenge persistence.
type Store interface {
	CreateChallenge(ctx context.Context, c *domain.OTPChallenge) error
	// LatestChallenge returns the most recent challenge for phone.
	LatestChallenge(ctx context.Context, phone string) (*domain.OTPChallenge, error)
	// ReserveAttempt counts an attempt; domain.ErrStale once limit were made.
	ReserveAttempt(ctx context.Context, id uuid.UUID, limit int) error
	// ConsumeChallenge marks the challenge used; domain.ErrStale when it
	// already was.
	ConsumeChallenge(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Principal, error)
	MarkPhoneVerified(ctx context.Context, principalID uuid.UUID) error
}

// Sender is an SMS gateway.
type Sender interface {
	Name() string
	Send(ctx context.Context, to, body string) (string, error)
}

// Observer records gateway calls and fallbacks between them.
type Observer interface {
	ObserveUpstream(service, provider string, d time.Duration, err error)
	ObserveFailover(service, from, to string)
}

// Config configures the service.
type Config struct {
	TTL          time.Duration
	MaxAttempts  int
	SendsPerHour int
	Template     string // contains one %s for the code
}

// Service issues and verifies codes.
type Service struct {
	store    Store
	senders  []Sender
	limiter  *ratelimit.Limiter
	sessions func(p *domain.Principal) (any, error)
	observer Observer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates an OTP service. senders are tried in order.
func NewService(store Store, senders []Sender, issue func(*domain.Principal) (any, error), observer Observer, cfg Config, logger *slog.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.SendsPerHour <= 0 {
		cfg.SendsPerHour = 5
	}
	if cfg.Template == "" {
		cfg.Template = "Your verification code is %s"
	}
	return &Service{
		store:    store,
		senders:  senders,
		limiter:  ratelimit.NewWindowLimiter(cfg.SendsPerHour, time.Hour),
		sessions: issue,
		observer: observer,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SendRequest asks for a code.
type SendRequest struct {
	Phone string `json:"phone"`
}

func (r SendRequest) Validate() error {
	if !phonePattern.MatchString(r.Phone) {
		return apierr.InvalidInput("phone must be in E.164 format", "phone")
	}
	return nil
}

// SendResult tells the client how long the code is valid.
type SendResult struct {
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Send generates a code and delivers it. When every gateway fails the
// caller gets a generic UpstreamFailure; gateway detail is only logged.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(s.senders) == 0 {
		return nil, apierr.Upstream("sms gateway", errors.New("no sms gateway configured"))
	}
	if err := s.limiter.Allow(req.Phone); err != nil {
		return nil, apierr.RateLimited()
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing code: %w", err)
	}
	body := fmt.Sprintf(s.cfg.Template, code)

	providers := make([]retry.Provider[string], len(s.senders))
	for i, snd := range s.senders {
		providers[i] = retry.Provider[string]{
			Name: snd.Name(),
			Call: func(ctx context.Context) (string, error) {
				start := time.Now()
				id, err := snd.Send(ctx, req.Phone, body)
				if s.observer != nil {
					s.observer.ObserveUpstream("sms", snd.Name(), time.Since(start), err)
				}
				return id, err
			},
		}
	}
	providerID, provider, err := retry.Fallback(ctx, s.logger, providers...)
	if err != nil {
		s.logger.ErrorContext(ctx, "all sms gateways failed", slog.Any("error", err))
		return nil, apierr.Upstream("sms gateway", err)
	}
	if preferred := s.senders[0].Name(); provider != preferred && s.observer != nil {
		s.observer.ObserveFailover("sms", preferred, provider)
	}

	now := s.now()
	ch := &domain.OTPChallenge{
		ID:        domain.NewID(),
		Phone:     req.Phone,
		CodeHash:  string(hash),
		Provider:  provider,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}
	if err := s.store.CreateChallenge(ctx, ch); err != nil {
		return nil, fmt.Errorf("storing challenge: %w", err)
	}
	s.logger.InfoContext(ctx, "otp sent",
		slog.String("provider", provider),
		slog.String("provider_id", providerID),
	)
	return &SendResult{Phone: req.Phone, ExpiresAt: ch.ExpiresAt}, nil
}

// VerifyRequest submits a code.
type VerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (r VerifyRequest) Validate() error {
	var c apierr.Check
	c.Require(phonePattern.MatchString(r.Phone), "phone")
	c.Require(codePattern.MatchString(r.Code), "code")
	return c.Err("missing or invalid verification fields")
}

// VerifyResult reports a successful verification. Session is set when the
// phone belongs to an active principal.
type VerifyResult struct {
	Verified bool `json:"verified"`
	Session  any  `json:"session,omitempty"`
}

// Verify checks a code against the latest challenge for the phone.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ch, err := s.store.LatestChallenge(ctx, req.Phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, expired()
		}
		return nil, fmt.Errorf("loading challenge: %w", err)
	}
	if ch.ConsumedAt != nil || !s.now().Before(ch.ExpiresAt) {
		return nil, expired()
	}
	if err := s.store.ReserveAttempt(ctx, ch.ID, s.cfg.MaxAttempts); err != nil {
		if errors.Is(err, domain.ErrStale) {
			return nil, apierr.InvalidInput("too many attempts, request a new code", "code")
		}
		return nil, fmt.Errorf("counting attempt: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(req.Code)); err != nil {
		return nil, apierr.InvalidInput("invalid code", "code")
	}
	if err := s.store.ConsumeChallenge(ctx, ch.ID, s.now()); err != nil {
		if errors.Is(err, domain.ErrStale) {
			return nil, expired()
		}
		return nil, fmt.Errorf("consuming challenge: %w", err)
	}

	res := &VerifyResult{Verified: true}
	p, err := s.store.GetByPhone(ctx, req.Phone)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return res, nil
	case err != nil:
		return nil, fmt.Errorf("loading principal: %w", err)
	}
	if err := s.store.MarkPhoneVerified(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("marking phone verified: %w", err)
	}
	p.PhoneVerified = true
	if p.IsActive && s.sessions != nil {
		sess, err := s.sessions(p)
		if err != nil {
			return nil, err
		}
		res.Session = sess
	}
	return res, nil
}

// Cleanup deletes challenges that expired before now.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("deleting expired challenges: %w", err)
	}
	return n, nil
}

func expired() error {
	return &apierr.Error{
		Kind:    apierr.KindInvalidInput,
		Message: "code expired or not requested",
		Fields:  []string{"code"},
		Err:     ErrChallengeExpired,
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
