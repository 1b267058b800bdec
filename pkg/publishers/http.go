package publishers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
	"github.com/go-resty/resty/v2"
	"github.com/nbd-wtf/go-nostr"
)

const maxSnippetBytes = 512

// attrHeaders maps event attributes to the webhook headers that carry them.
var attrHeaders = map[string]string{
	AttrEventID:    "X-Nostr-Event-Id",
	AttrKind:       "X-Nostr-Kind",
	AttrPubKey:     "X-Nostr-Pubkey",
	AttrSourceLink: "X-Source-Link",
}

// webhookPublisher POSTs the signed event JSON to an HTTP endpoint.
type webhookPublisher struct {
	url     string
	headers map[string]string
	client  *resty.Client
}

func newHTTPPublisher(_ context.Context, ep Endpoint, opts Options, _ logger.Logger) (Publisher, error) {
	return &webhookPublisher{
		url:     ep.Raw,
		headers: opts.HTTPHeaders,
		client:  httpclient.NewRestyHTTPClient(opts.Timeout),
	}, nil
}

func (h *webhookPublisher) ID() string   { return h.url }
func (h *webhookPublisher) Type() string { return TypeHTTP }

// Publish delivers evt; any non-2xx answer counts as a rejection.
func (h *webhookPublisher) Publish(ctx context.Context, evt nostr.Event) error {
	payload, attrs, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	req := h.client.R().
		SetContext(ctx).
		SetHeaders(h.headers).
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	for attr, header := range attrHeaders {
		if v := attrs[attr]; v != "" {
			req.SetHeader(header, v)
		}
	}

	resp, err := req.Post(h.url)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook rejected event with status %d: %s", resp.StatusCode(), readBodySnippet(resp.Body()))
	}
	return nil
}

func readBodySnippet(body []byte) string {
	if len(body) > maxSnippetBytes {
		body = body[:maxSnippetBytes]
	}
	return strings.TrimSpace(string(body))
}
