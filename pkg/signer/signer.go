// Package signer parses Nostr secret keys and signs events with them.
package signer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// ErrInvalidKey is returned for key material that is neither 32-byte hex nor an nsec.
var ErrInvalidKey = errors.New("signing key must be 64 hex characters or an nsec")

// Keys is a parsed key pair, both hex encoded.
type Keys struct {
	Secret string
	Public string
}

// Parse accepts a hex secret key or a bech32 nsec.
func Parse(raw string) (Keys, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Keys{}, ErrInvalidKey
	}

	sk := strings.ToLower(raw)
	if strings.HasPrefix(sk, "nsec1") {
		prefix, value, err := nip19.Decode(raw)
		if err != nil {
			return Keys{}, fmt.Errorf("decode nsec: %w", err)
		}
		decoded, ok := value.(string)
		if prefix != "nsec" || !ok {
			return Keys{}, ErrInvalidKey
		}
		sk = decoded
	}

	if b, err := hex.DecodeString(sk); err != nil || len(b) != 32 {
		return Keys{}, ErrInvalidKey
	}

	pub, err := nostr.GetPublicKey(sk)
	if err != nil {
		return Keys{}, fmt.Errorf("derive public key: %w", err)
	}
	return Keys{Secret: sk, Public: pub}, nil
}

// Sign sets the event's pubkey, id and signature.
func (k Keys) Sign(evt *nostr.Event) error {
	if evt == nil {
		return errors.New("event is nil")
	}
	evt.PubKey = k.Public
	if err := evt.Sign(k.Secret); err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	return nil
}

// NPub returns the bech32 public key, or the hex key if encoding fails.
func (k Keys) NPub() string {
	npub, err := nip19.EncodePublicKey(k.Public)
	if err != nil {
		return k.Public
	}
	return npub
}
