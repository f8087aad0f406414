package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/placemates-backend/pkg/config"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
)

// Resource names a Pub/Sub entity a process depends on.
type Resource int

const (
	// PlacesTopic is where place_created and place_deleted are published.
	PlacesTopic Resource = iota
	// PurgeSubscription delivers place_deleted to the purge worker.
	PurgeSubscription
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Client wraps the Pub/Sub v2 client. It only verifies the resources the
// owning process declared, so the outbox dispatcher does not need the purge
// subscription and the purge worker does not need publish rights.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	needs     []Resource
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, needs ...Resource) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	raw, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, projectID: projectID, cfg: cfg, needs: needs}

	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// Ping checks that every declared resource exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, need := range c.needs {
		if err := c.verify(ctx, need); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) verify(ctx context.Context, need Resource) error {
	switch need {
	case PlacesTopic:
		name := c.topicPath(c.cfg.PlacesTopic)
		if name == "" {
			return errors.New("places topic is not configured")
		}
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		return describeLookup("topic", c.cfg.PlacesTopic, err)
	case PurgeSubscription:
		name := c.subscriptionPath(c.cfg.PurgeSubscription)
		if name == "" {
			return errors.New("purge subscription is not configured")
		}
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
		return describeLookup("subscription", c.cfg.PurgeSubscription, err)
	default:
		return fmt.Errorf("unknown pubsub resource %d", need)
	}
}

func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Publisher returns a fresh publisher handle; callers own and Stop it.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.topicPath(topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

// PurgeSubscription returns the place_deleted subscriber with the configured
// flow control applied.
func (c *Client) PurgeSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.subscriptionPath(c.cfg.PurgeSubscription)
	if name == "" {
		return nil
	}
	sub := c.client.Subscriber(name)
	if n := c.cfg.PurgeMaxOutstanding; n > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = n
	}
	return sub
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicPath(name string) string {
	return c.resourcePath("topics", name)
}

func (c *Client) subscriptionPath(name string) string {
	return c.resourcePath("subscriptions", name)
}

// resourcePath expands a short id to projects/<project>/<collection>/<id>.
// Fully qualified names are returned unchanged.
func (c *Client) resourcePath(collection, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/" + collection + "/" + name
}
