package pubsub

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type fakeAdmin struct {
	existing map[string]bool
	err      error
}

func (f *fakeAdmin) GetTopic(_ context.Context, req *pubsubpb.GetTopicRequest, _ ...gax.CallOption) (*pubsubpb.Topic, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.existing[req.GetTopic()] {
		return nil, status.Error(codes.NotFound, "no such topic")
	}
	return &pubsubpb.Topic{Name: req.GetTopic()}, nil
}

func TestTopicNamesDedupesAndSkipsBlank(t *testing.T) {
	names := topicNames(config.PubSubConfig{OrdersTopic: "events", WalletTopic: " events ", DLQTopic: " "})
	assert.Equal(t, []string{"events"}, names)

	names = topicNames(config.PubSubConfig{OrdersTopic: "orders", WalletTopic: "wallet", DLQTopic: "dlq"})
	assert.Equal(t, []string{"dlq", "orders", "wallet"}, names)
}

func TestTopicPath(t *testing.T) {
	assert.Equal(t, "projects/shop-prod/topics/orders", TopicPath("shop-prod", "orders"))
	assert.Equal(t, "projects/other/topics/wallet", TopicPath("shop-prod", "projects/other/topics/wallet"))
	assert.Empty(t, TopicPath("", "orders"))
	assert.Empty(t, TopicPath("shop-prod", " "))
}

func TestPingReportsEveryMissingTopic(t *testing.T) {
	c := &Client{
		projectID: "shop",
		topics:    []string{"dlq", "orders", "wallet"},
		admin:     &fakeAdmin{existing: map[string]bool{"projects/shop/topics/orders": true}},
	}
	err := c.Ping(context.Background())
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.ErrorIs(t, e, ErrTopicMissing)
	}
	assert.Contains(t, err.Error(), "dlq")
	assert.Contains(t, err.Error(), "wallet")
}

func TestPingWrapsTransportErrors(t *testing.T) {
	boom := errors.New("unavailable")
	c := &Client{projectID: "shop", topics: []string{"orders"}, admin: &fakeAdmin{err: boom}}
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTopicMissing)

	var nilClient *Client
	assert.Error(t, nilClient.Ping(context.Background()))
	assert.Nil(t, nilClient.Publisher("orders"))
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	assert.Empty(t, clientOptions(config.GCPConfig{}))
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/etc/gcp.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/etc/gcp.json"}), 1)
}
