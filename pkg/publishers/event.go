package publishers

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// Attribute names attached to queue and topic messages.
const (
	AttrEventID    = "event_id"
	AttrKind       = "kind"
	AttrPubKey     = "pubkey"
	AttrSourceLink = "source_link"
)

// encodeEvent returns the signed event's wire JSON together with routing attributes.
func encodeEvent(evt nostr.Event) ([]byte, map[string]string, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal event: %w", err)
	}

	attrs := map[string]string{
		AttrEventID: evt.ID,
		AttrKind:    strconv.Itoa(evt.Kind),
		AttrPubKey:  evt.PubKey,
	}
	for _, tag := range evt.Tags {
		if len(tag) >= 2 && tag[0] == "u" && tag[1] != "" {
			attrs[AttrSourceLink] = tag[1]
			break
		}
	}
	return payload, attrs, nil
}
