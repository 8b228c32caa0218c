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
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "logo-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return client, srv
}

func TestPublishSendsJSON(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "logo-results")
	require.NoError(t, err)

	pub := New(client)
	t.Cleanup(func() { _ = pub.Close() })

	id, err := pub.Publish(ctx, "logo-results", map[string]string{"status": "success"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "success", got["status"])
	assert.Equal(t, "application/json", msgs[0].Attributes["content-type"])
}

func TestPublishReusesTopicHandles(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "t1")
	require.NoError(t, err)

	pub := New(client)
	t.Cleanup(func() { _ = pub.Close() })
	for i := 0; i < 3; i++ {
		_, err := pub.Publish(ctx, "t1", i)
		require.NoError(t, err)
	}
	assert.Len(t, pub.topics, 1)
	assert.Len(t, srv.Messages(), 3)
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "t", "x")
	assert.Error(t, err)

	client, _ := newTestClient(t)
	pub := New(client)
	t.Cleanup(func() { _ = pub.Close() })

	_, err = pub.Publish(context.Background(), "", "x")
	assert.Error(t, err)

	_, err = pub.Publish(context.Background(), "t", func() {})
	assert.Error(t, err, "unmarshalable payload")

	_, err = pub.Publish(context.Background(), "missing-topic", "x")
	assert.Error(t, err)
}
