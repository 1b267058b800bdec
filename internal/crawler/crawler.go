package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
	"github.com/Adda-Baaj/nostr-mirror/pkg/providers"
)

// AccountError reports a fetch failure for a single account.
type AccountError struct {
	Account string
	Err     error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("account %s: %v", e.Account, e.Err)
}

func (e *AccountError) Unwrap() error { return e.Err }

// Service coordinates fetching across multiple accounts of one provider.
type Service struct {
	registry providers.FetcherRegistry
	provider providers.Provider
	delay    time.Duration
}

// NewService wires a crawler with the provider fetcher registry. delay is the
// pause between two account requests.
func NewService(reg providers.FetcherRegistry, provider providers.Provider, delay time.Duration) *Service {
	return &Service{
		registry: reg,
		provider: provider,
		delay:    delay,
	}
}

// Fetch collects posts for every account. A failing account contributes an
// *AccountError to the joined error and the remaining accounts are still fetched.
// On context cancellation the posts gathered so far are returned with ctx.Err().
func (s *Service) Fetch(ctx context.Context, accounts []string) ([]domain.CandidatePost, error) {
	if s == nil || s.registry == nil {
		return nil, fmt.Errorf("crawler service is not initialized")
	}

	fetcher, err := s.registry.FetcherFor(s.provider)
	if err != nil {
		return nil, fmt.Errorf("resolve fetcher for provider %s: %w", s.provider.ID, err)
	}

	var (
		posts []domain.CandidatePost
		errs  []error
	)
	for i, account := range accounts {
		account = strings.TrimSpace(account)
		if account == "" {
			continue
		}
		if i > 0 && s.delay > 0 {
			if err := sleep(ctx, s.delay); err != nil {
				return posts, errors.Join(append(errs, err)...)
			}
		}
		if err := ctx.Err(); err != nil {
			return posts, errors.Join(append(errs, err)...)
		}

		got, err := fetcher.Fetch(ctx, account)
		if err != nil {
			errs = append(errs, &AccountError{Account: account, Err: err})
			continue
		}

		logger.DebugObj("account fetch completed", "account_result", map[string]any{
			"provider_id":     s.provider.ID,
			"account":         account,
			"posts_collected": len(got),
		})
		posts = append(posts, got...)
	}

	return posts, errors.Join(errs...)
}

// AccountErrors flattens a Fetch error into its per-account failures.
func AccountErrors(err error) []*AccountError {
	if err == nil {
		return nil
	}
	var out []*AccountError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, AccountErrors(e)...)
		}
		return out
	}
	var ae *AccountError
	if errors.As(err, &ae) {
		out = append(out, ae)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
