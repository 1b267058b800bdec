package publishers

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
	"github.com/nbd-wtf/go-nostr"
	"google.golang.org/api/option"
)

// gcpPubSubPublisher publishes events to a Google Cloud Pub/Sub topic.
type gcpPubSubPublisher struct {
	id     string
	client *pubsub.Client
	topic  *pubsub.Topic
	log    logger.Logger
}

func newGCPPubSubPublisher(ctx context.Context, ep Endpoint, opts Options, log logger.Logger) (Publisher, error) {
	project, topicID, err := ep.gcpTopic()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var clientOpts []option.ClientOption
	if opts.GCPCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.GCPCredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, project, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &gcpPubSubPublisher{
		id:     ep.Raw,
		client: client,
		topic:  client.Topic(topicID),
		log:    logger.Ensure(log),
	}, nil
}

func (g *gcpPubSubPublisher) ID() string   { return g.id }
func (g *gcpPubSubPublisher) Type() string { return TypeGCPPubSub }

func (g *gcpPubSubPublisher) Publish(ctx context.Context, evt nostr.Event) error {
	payload, attrs, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	res := g.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: attrs,
	})
	serverID, err := res.Get(ctx)
	if err != nil {
		g.log.ErrorObj("gcp pubsub publish failed", "publisher_gcp_error", map[string]any{
			"publisher_id": g.id,
			"error":        err.Error(),
		})
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	g.log.DebugObj("gcp pubsub delivered event", "publisher_gcp_delivery", map[string]any{
		"publisher_id": g.id,
		"server_id":    serverID,
	})
	return nil
}

// Close flushes pending messages and closes the client.
func (g *gcpPubSubPublisher) Close() error {
	g.topic.Stop()
	return g.client.Close()
}
