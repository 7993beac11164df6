// Package pubsub wraps the Pub/Sub v2 client the outbox publisher sends
// domain events through.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	ErrTopicMissing      = errors.New("pubsub topic does not exist")
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("no pubsub topics configured")
)

// topicAdmin is the slice of the topic admin API the client checks with.
type topicAdmin interface {
	GetTopic(ctx context.Context, req *pubsubpb.GetTopicRequest, opts ...gax.CallOption) (*pubsubpb.Topic, error)
}

type Client struct {
	client    *pubsub.Client
	admin     topicAdmin
	projectID string
	topics    []string
}

// NewClient opens a Pub/Sub client and fails unless every configured topic
// already exists. Topics are provisioned out of band.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topics := topicNames(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	ps, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: ps, admin: ps.TopicAdminClient, projectID: project, topics: topics}
	if err := c.Ping(ctx); err != nil {
		return nil, multierr.Append(err, ps.Close())
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics), "pubsub client initialized")
	}
	return c, nil
}

// clientOptions prefers inline credentials over a credentials file; with
// neither the client uses application default credentials.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// topicNames returns the distinct non-blank topics, sorted.
func topicNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, name := range []string{cfg.OrdersTopic, cfg.WalletTopic, cfg.DLQTopic} {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// TopicPath expands a short topic id to its resource name. Full resource
// names pass through; an empty project or name yields "".
func TopicPath(project, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/") {
		return name
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + name
}

// Publisher returns a publisher for topic, or nil when the client is unset.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	path := TopicPath(c.projectID, topic)
	if path == "" {
		return nil
	}
	return c.client.Publisher(path)
}

// Ping checks every configured topic and reports all that are missing.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.admin == nil {
		return errors.New("pubsub client not initialized")
	}
	var errs error
	for _, topic := range c.topics {
		errs = multierr.Append(errs, c.checkTopic(ctx, topic))
	}
	return errs
}

func (c *Client) checkTopic(ctx context.Context, topic string) error {
	_, err := c.admin.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: TopicPath(c.projectID, topic)})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", ErrTopicMissing, topic)
	default:
		return fmt.Errorf("checking topic %s: %w", topic, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
