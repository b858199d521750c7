// Package subscription manages which chat users receive notifications for which companies.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rewired-gh/placardwatch/internal/models"
)

// ErrEmptyInterest is returned when a subscribe or unsubscribe names no company.
var ErrEmptyInterest = errors.New("interest must not be empty")

// PersistenceError reports a failed write. The transaction has already been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Repository is the storage surface for subscriptions.
type Repository interface {
	AddSubscription(ctx context.Context, userID int64, interest string) error
	RemoveSubscription(ctx context.Context, userID int64, interest string) error
	RemoveAllSubscriptions(ctx context.Context, userID int64) error
	SubscribersOf(ctx context.Context, alias string) ([]int64, error)
	SubscriptionsOf(ctx context.Context, userID int64) ([]string, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Subscribe records interest for user. Subscribing twice is a no-op.
// Pass models.InterestAll to receive every company.
func (s *Service) Subscribe(ctx context.Context, userID int64, interest string) error {
	interest = strings.TrimSpace(interest)
	if interest == "" {
		return ErrEmptyInterest
	}
	if err := s.repo.AddSubscription(ctx, userID, interest); err != nil {
		return &PersistenceError{Op: "subscribe", Err: err}
	}
	return nil
}

// Unsubscribe removes exactly one (user, interest) pair. Removing InterestAll leaves
// per-company subscriptions in place.
func (s *Service) Unsubscribe(ctx context.Context, userID int64, interest string) error {
	interest = strings.TrimSpace(interest)
	if interest == "" {
		return ErrEmptyInterest
	}
	if err := s.repo.RemoveSubscription(ctx, userID, interest); err != nil {
		return &PersistenceError{Op: "unsubscribe", Err: err}
	}
	return nil
}

// UnsubscribeAll removes every subscription held by user.
func (s *Service) UnsubscribeAll(ctx context.Context, userID int64) error {
	if err := s.repo.RemoveAllSubscriptions(ctx, userID); err != nil {
		return &PersistenceError{Op: "unsubscribe all", Err: err}
	}
	return nil
}

// SubscribersOf returns the users to notify for a trade of alias.
func (s *Service) SubscribersOf(ctx context.Context, alias string) ([]int64, error) {
	users, err := s.repo.SubscribersOf(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subscribers of %q: %w", alias, err)
	}
	return users, nil
}

// List returns the interests held by user.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Subscription, error) {
	interests, err := s.repo.SubscriptionsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	subs := make([]models.Subscription, 0, len(interests))
	for _, interest := range interests {
		subs = append(subs, models.Subscription{UserID: userID, Interest: interest})
	}
	return subs, nil
}
