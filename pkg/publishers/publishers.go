package publishers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// Supported publisher types.
	TypeRelay     = "relay"
	TypeHTTP      = "http"
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeGCPPubSub = "gcppubsub"

	schemeSQS = "sqs+https"

	defaultTimeout = 10 * time.Second
)

// Options carries process-level settings shared by every sink builder.
type Options struct {
	Timeout            time.Duration
	HTTPHeaders        map[string]string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	GCPCredentialsFile string
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	opts.HTTPHeaders = sanitizeHeaders(opts.HTTPHeaders)
	opts.AWSRegion = strings.TrimSpace(opts.AWSRegion)
	return opts
}

// Endpoint is a parsed destination URI.
//
//	wss://relay.example                             Nostr relay
//	https://hooks.example/nostr                      HTTP webhook (POST)
//	sqs+https://sqs.eu-west-1.amazonaws.com/1/queue  AWS SQS queue
//	sns:arn:aws:sns:eu-west-1:1:topic                AWS SNS topic
//	gcppubsub://project/topic                        GCP Pub/Sub topic
type Endpoint struct {
	Raw    string
	Scheme string
	URL    *url.URL
}

// ParseEndpoint validates raw and extracts its scheme.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, errors.New("endpoint is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q has no scheme", raw)
	}
	if u.Opaque == "" && u.Host == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q has no host", raw)
	}
	return Endpoint{Raw: raw, Scheme: scheme, URL: u}, nil
}

// sqsQueue returns the queue URL and region for an sqs+https endpoint.
func (e Endpoint) sqsQueue(fallbackRegion string) (string, string, error) {
	queueURL := strings.TrimPrefix(e.Raw, "sqs+")
	region := fallbackRegion
	// sqs.<region>.amazonaws.com
	if parts := strings.Split(e.URL.Hostname(), "."); len(parts) >= 4 && parts[0] == "sqs" {
		region = parts[1]
	}
	if region == "" {
		return "", "", fmt.Errorf("cannot determine aws region for %q", e.Raw)
	}
	if strings.Trim(e.URL.Path, "/") == "" {
		return "", "", fmt.Errorf("sqs endpoint %q has no queue path", e.Raw)
	}
	return queueURL, region, nil
}

// snsTopic returns the topic ARN and region for an sns: endpoint.
func (e Endpoint) snsTopic() (string, string, error) {
	arn := e.URL.Opaque
	parts := strings.Split(arn, ":")
	if len(parts) != 6 || parts[0] != "arn" || parts[2] != "sns" || parts[3] == "" {
		return "", "", fmt.Errorf("sns endpoint %q is not a topic arn", e.Raw)
	}
	return arn, parts[3], nil
}

// gcpTopic returns the project and topic ids for a gcppubsub:// endpoint.
func (e Endpoint) gcpTopic() (string, string, error) {
	project := e.URL.Host
	topic := strings.Trim(e.URL.Path, "/")
	if project == "" || topic == "" || strings.Contains(topic, "/") {
		return "", "", fmt.Errorf("gcppubsub endpoint %q must be gcppubsub://<project>/<topic>", e.Raw)
	}
	return project, topic, nil
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
