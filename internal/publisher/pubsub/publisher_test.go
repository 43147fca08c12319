package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)

	_, err := client.CreateTopic(ctx, "sentiment-events")
	require.NoError(t, err)

	pub := New(client, "sentiment-events")
	defer pub.Stop()

	id, err := pub.Publish(ctx, "game.stored", map[string]any{"appId": 570, "source": "live"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "game.stored", msgs[0].Attributes["event"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, "live", body["source"])
}

func TestPublishUnconfigured(t *testing.T) {
	t.Parallel()

	var nilPub *Publisher
	_, err := nilPub.Publish(context.Background(), "e", 1)
	require.Error(t, err)

	_, err = New(nil, "t").Publish(context.Background(), "e", 1)
	require.Error(t, err)
}

func TestPublishMarshalError(t *testing.T) {
	client, _ := newTestClient(t)
	pub := New(client, "sentiment-events")
	_, err := pub.Publish(context.Background(), "e", make(chan int))
	require.Error(t, err)
}
