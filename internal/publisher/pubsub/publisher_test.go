package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newFakeClient(t *testing.T) *pubsub.Client {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "seo-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return client
}

func TestPublisher_PublishAndReceive(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newFakeClient(t)
	topic, err := client.CreateTopic(ctx, "seo-jobs")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "seo-jobs-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	pub := NewWithClient(client)
	require.NoError(t, pub.CheckTopic(ctx, "seo-jobs"))
	require.Error(t, pub.CheckTopic(ctx, "missing"))

	id, err := pub.Publish(ctx, "seo-jobs", map[string]string{"job_id": "job-1", "status": "complete"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	received := make(chan *pubsub.Message, 1)
	recvCtx, stop := context.WithCancel(ctx)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
			msg.Ack()
			select {
			case received <- msg:
			default:
			}
			stop()
		})
	}()

	select {
	case msg := <-received:
		var body map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &body))
		assert.Equal(t, "job-1", body["job_id"])
		assert.Equal(t, "application/json", msg.Attributes["content-type"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
	_, err = pub.Publish(ctx, "seo-jobs", "late")
	require.Error(t, err)
}

func TestPublisher_RejectsEmptyTopicAndBadPayload(t *testing.T) {
	t.Parallel()

	pub := NewWithClient(newFakeClient(t))
	t.Cleanup(func() { _ = pub.Close() })

	_, err := pub.Publish(context.Background(), "", "x")
	require.Error(t, err)
	_, err = pub.Publish(context.Background(), "seo-jobs", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

func TestNew_RequiresProject(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "")
	require.Error(t, err)
}
