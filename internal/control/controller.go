// Package control exposes the scheduler through one Controller interface, either
// in-process (Local) or over HTTP against a running daemon (Remote).
package control

import (
	"context"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
)

// Controller is the operator surface of the mirror bot.
type Controller interface {
	Configure(ctx context.Context, cfg domain.BotConfiguration) error
	Configuration(ctx context.Context) (domain.BotConfiguration, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	RunNow(ctx context.Context) (domain.BotStatus, error)
	Status(ctx context.Context) (domain.BotStatus, error)
	// Logs returns buffered entries newer than since, oldest first. A zero since returns all.
	Logs(ctx context.Context, since time.Time) ([]domain.LogEntry, error)
}

const redactedKey = "********"

// Redact hides the signing key of cfg.
func Redact(cfg domain.BotConfiguration) domain.BotConfiguration {
	cfg = cfg.Clone()
	if cfg.SigningKey != "" {
		cfg.SigningKey = redactedKey
	}
	return cfg
}
