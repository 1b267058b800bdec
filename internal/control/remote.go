package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
	"github.com/go-resty/resty/v2"
)

// RemoteError is an error reported by the control server.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("control server returned %d: %s", e.StatusCode, e.Message)
}

// Remote talks to a daemon's control server.
type Remote struct {
	client *resty.Client
	base   string
}

var _ Controller = (*Remote)(nil)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// NewRemote returns a client for the control server at baseURL.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	return &Remote{
		client: httpclient.NewRestyHTTPClient(timeout),
		base:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (r *Remote) Configure(ctx context.Context, cfg domain.BotConfiguration) error {
	return r.do(ctx, http.MethodPost, "/bot/config", cfg, nil)
}

// Configuration returns the remote configuration with the signing key redacted.
func (r *Remote) Configuration(ctx context.Context) (domain.BotConfiguration, error) {
	var cfg domain.BotConfiguration
	err := r.do(ctx, http.MethodGet, "/bot/config", nil, &cfg)
	return cfg, err
}

func (r *Remote) Start(ctx context.Context) error {
	return r.do(ctx, http.MethodPost, "/bot/start", nil, nil)
}

func (r *Remote) Stop(ctx context.Context) error {
	return r.do(ctx, http.MethodPost, "/bot/stop", nil, nil)
}

func (r *Remote) RunNow(ctx context.Context) (domain.BotStatus, error) {
	var st domain.BotStatus
	err := r.do(ctx, http.MethodPost, "/bot/run", nil, &st)
	return st, err
}

func (r *Remote) Status(ctx context.Context) (domain.BotStatus, error) {
	var st domain.BotStatus
	err := r.do(ctx, http.MethodGet, "/bot/status", nil, &st)
	return st, err
}

func (r *Remote) Logs(ctx context.Context, since time.Time) ([]domain.LogEntry, error) {
	path := "/bot/logs"
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	var entries []domain.LogEntry
	err := r.do(ctx, http.MethodGet, path, nil, &entries)
	return entries, err
}

func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	req := r.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, r.base+path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return &RemoteError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(string(resp.Body()))}
	}
	if !env.Success || resp.IsError() {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return &RemoteError{StatusCode: resp.StatusCode(), Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
