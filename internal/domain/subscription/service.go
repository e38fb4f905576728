// Package subscription is the registry of customers enrolled in the lending
// service.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lending-engine/internal/clock"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/event"
	"lending-engine/internal/kyc"
	"lending-engine/internal/pkg/apperrors"
)

type Store interface {
	Add(ctx context.Context, customerNumber string) error
	Remove(ctx context.Context, customerNumber string) (bool, error)
	Contains(ctx context.Context, customerNumber string) (bool, error)
}

// IdentityFallback decides what to do when the identity lookup fails: return
// a substitute profile, or an error to refuse the subscription.
type IdentityFallback func(customerNumber string, cause error) (*kyc.Profile, error)

// SyntheticIdentityFallback substitutes a deterministic placeholder profile.
func SyntheticIdentityFallback(clk clock.Clock) IdentityFallback {
	return func(customerNumber string, _ error) (*kyc.Profile, error) {
		return kyc.SyntheticProfile(customerNumber, clk.Now()), nil
	}
}

func StrictIdentityFallback() IdentityFallback {
	return func(_ string, cause error) (*kyc.Profile, error) {
		return nil, cause
	}
}

type SubscriptionService interface {
	IsSubscribed(ctx context.Context, customerNumber string) (bool, error)
	Subscribe(ctx context.Context, customerNumber string) (bool, error)
	Enroll(ctx context.Context, customerNumber string) (*kyc.Profile, error)
	Unsubscribe(ctx context.Context, customerNumber string) (bool, error)
}

type Option func(*Service)

func WithIdentityFallback(f IdentityFallback) Option {
	return func(s *Service) {
		if f != nil {
			s.fallback = f
		}
	}
}

func WithPublisher(p event.EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDemoHistory makes Enroll seed two finished loans for customers with an
// empty loan history.
func WithDemoHistory(ledger loan.Ledger) Option {
	return func(s *Service) {
		s.history = ledger
	}
}

type Service struct {
	store     Store
	identity  kyc.IdentityLookup
	fallback  IdentityFallback
	publisher event.EventPublisher
	history   loan.Ledger
	clock     clock.Clock
	logger    *slog.Logger
}

var _ SubscriptionService = (*Service)(nil)

func NewService(store Store, identity kyc.IdentityLookup, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		identity:  identity,
		publisher: event.NoopPublisher{},
		clock:     clock.NewSystem(),
		logger:    logger.With("component", "SubscriptionService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fallback == nil {
		s.fallback = SyntheticIdentityFallback(s.clock)
	}
	return s
}

func (s *Service) IsSubscribed(ctx context.Context, customerNumber string) (bool, error) {
	ok, err := s.store.Contains(ctx, customerNumber)
	if err != nil {
		return false, fmt.Errorf("failed to look up subscription: %w", err)
	}
	return ok, nil
}

// Subscribe enrolls the customer and reports whether usable identity data was
// obtained.
func (s *Service) Subscribe(ctx context.Context, customerNumber string) (bool, error) {
	if _, err := s.Enroll(ctx, customerNumber); err != nil {
		return false, err
	}
	return true, nil
}

// Enroll is Subscribe returning the identity profile used.
func (s *Service) Enroll(ctx context.Context, customerNumber string) (*kyc.Profile, error) {
	if customerNumber == "" {
		return nil, fmt.Errorf("%w: customer number cannot be empty", apperrors.ErrInvalidArgument)
	}
	logger := s.logger.With(slog.String("customerNumber", customerNumber))

	profile, err := s.identity.FetchIdentity(ctx, customerNumber)
	if err != nil {
		logger.WarnContext(ctx, "Identity lookup failed", slog.Any("error", err))
		profile, err = s.fallback(customerNumber, err)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "Using substitute identity profile")
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no identity data for customer %s", apperrors.ErrIdentityUnavailable, customerNumber)
	}

	if err := s.store.Add(ctx, customerNumber); err != nil {
		logger.ErrorContext(ctx, "Failed to store subscription", slog.Any("error", err))
		return nil, fmt.Errorf("failed to store subscription: %w", err)
	}
	logger.InfoContext(ctx, "Customer subscribed")

	if s.history != nil {
		s.seedHistory(ctx, customerNumber)
	}
	s.publish(ctx, customerNumber, true)
	return profile, nil
}

func (s *Service) Unsubscribe(ctx context.Context, customerNumber string) (bool, error) {
	removed, err := s.store.Remove(ctx, customerNumber)
	if err != nil {
		return false, fmt.Errorf("failed to remove subscription: %w", err)
	}
	if removed {
		s.logger.InfoContext(ctx, "Customer unsubscribed", slog.String("customerNumber", customerNumber))
		s.publish(ctx, customerNumber, false)
	}
	return removed, nil
}

func (s *Service) seedHistory(ctx context.Context, customerNumber string) {
	existing, err := s.history.ListForCustomer(ctx, customerNumber)
	if err != nil || len(existing) > 0 {
		return
	}
	if err := s.history.Seed(ctx, DemoHistory(customerNumber, s.clock.Now())...); err != nil {
		s.logger.WarnContext(ctx, "Failed to seed demo loan history", slog.String("customerNumber", customerNumber), slog.Any("error", err))
	}
}

func (s *Service) publish(ctx context.Context, customerNumber string, subscribed bool) {
	evt := event.CustomerSubscriptionEvent{
		CustomerNumber: customerNumber,
		Subscribed:     subscribed,
		Timestamp:      s.clock.Now(),
	}
	if err := s.publisher.PublishCustomerSubscriptionChanged(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish subscription event", slog.Any("error", err))
	}
}

// DemoHistory returns a completed loan from ten days ago and a rejected one
// from three days ago. Both are terminal, so eligibility is unaffected.
func DemoHistory(customerNumber string, now time.Time) []*loan.Loan {
	const day = 24 * time.Hour
	tenDaysAgo := now.Add(-10 * day)
	threeDaysAgo := now.Add(-3 * day)

	completedScore, completedLimit := 620, loan.Money(25000)
	disbursedAt := tenDaysAgo.Add(day)
	completedAt := tenDaysAgo.Add(7 * day)

	rejectedScore, rejectedLimit := 480, loan.Money(20000)

	return []*loan.Loan{
		{
			ID:             loan.NewID(tenDaysAgo),
			CustomerNumber: customerNumber,
			Amount:         15000,
			Status:         loan.StatusCompleted,
			Score:          &completedScore,
			Limit:          &completedLimit,
			CreatedAt:      tenDaysAgo,
			UpdatedAt:      completedAt,
			DisbursedAt:    &disbursedAt,
			CompletedAt:    &completedAt,
		},
		{
			ID:              loan.NewID(threeDaysAgo),
			CustomerNumber:  customerNumber,
			Amount:          50000,
			Status:          loan.StatusRejected,
			Score:           &rejectedScore,
			Limit:           &rejectedLimit,
			Exclusion:       "Limit Exceeded",
			ExclusionReason: "Requested amount exceeds available limit",
			CreatedAt:       threeDaysAgo,
			UpdatedAt:       threeDaysAgo.Add(time.Hour),
		},
	}
}
