// Package pubsub wraps the Cloud Pub/Sub v2 client the outbox publisher and
// the email worker share.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("pubsub: gcp project id is required")

// Options selects which resources must exist before the client is handed out.
type Options struct {
	// VerifySubscription is set by the consumer.
	VerifySubscription bool
	// VerifyTopic is set by the publisher.
	VerifyTopic bool
}

type Client struct {
	sdk     *pubsub.Client
	project string
	cfg     config.PubSubConfig
	opts    Options

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, opts Options, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	sdk, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: new client: %w", err)
	}

	c := &Client{sdk: sdk, project: project, cfg: cfg, opts: opts, publishers: map[string]*pubsub.Publisher{}}
	if err := c.verify(ctx); err != nil {
		_ = sdk.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project_id":   project,
			"topic":        cfg.OrdersTopic,
			"subscription": cfg.OrdersSubscription,
		}), "pubsub client ready")
	}
	return c, nil
}

// clientOptions prefers inline credentials over a key file; with neither
// the SDK falls back to ADC or PUBSUB_EMULATOR_HOST.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) verify(ctx context.Context) error {
	if c.opts.VerifySubscription {
		name := c.resource("subscriptions", c.cfg.OrdersSubscription)
		if name == "" {
			return errors.New("pubsub: orders subscription is not configured")
		}
		_, err := c.sdk.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
		if err := describeLookup("subscription", name, err); err != nil {
			return err
		}
	}
	if c.opts.VerifyTopic {
		name := c.resource("topics", c.cfg.OrdersTopic)
		if name == "" {
			return errors.New("pubsub: orders topic is not configured")
		}
		_, err := c.sdk.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		if err := describeLookup("topic", name, err); err != nil {
			return err
		}
	}
	return nil
}

func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub: %s %s does not exist", kind, name)
	default:
		return fmt.Errorf("pubsub: look up %s %s: %w", kind, name, err)
	}
}

// OrdersSubscription is the subscriber the email worker receives from.
func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	if c == nil || c.sdk == nil {
		return nil
	}
	name := c.resource("subscriptions", c.cfg.OrdersSubscription)
	if name == "" {
		return nil
	}
	return c.sdk.Subscriber(name)
}

// Publisher returns the shared publisher for topic, creating it on first use.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.sdk == nil {
		return nil
	}
	name := c.resource("topics", topic)
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[name]; ok {
		return pub
	}
	pub := c.sdk.Publisher(name)
	c.publishers[name] = pub
	return pub
}

// Ping re-runs the startup resource checks.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.sdk == nil {
		return errors.New("pubsub: client not initialized")
	}
	return c.verify(ctx)
}

// Close flushes every publisher before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.sdk == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.sdk.Close()
}

// resource expands a short id to projects/<project>/<kind>/<id>; names that
// are already fully qualified pass through.
func (c *Client) resource(kind, id string) string {
	if c == nil {
		return ""
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	if c.project == "" {
		return ""
	}
	return "projects/" + c.project + "/" + kind + "/" + id
}
