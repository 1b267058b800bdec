package crawler

import (
	"context"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
)

// PostSource yields candidate posts for a set of accounts.
type PostSource interface {
	Fetch(ctx context.Context, accounts []string) ([]domain.CandidatePost, error)
}
