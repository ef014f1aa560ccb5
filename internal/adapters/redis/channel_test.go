package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
	"github.com/gittidev/vibe-socket-test/internal/testutil"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	_, client := testutil.NewMiniRedis(t)
	ch, err := NewChannel(ChannelOptions{Client: client})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestNewChannel_RequiresClient(t *testing.T) {
	_, err := NewChannel(ChannelOptions{})
	require.Error(t, err)
}

func TestChannel_PublishSubscribe(t *testing.T) {
	ch := newTestChannel(t)
	ctx := context.Background()

	sub, err := ch.Subscribe(ctx, "patient_data_channel")
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, "patient_data_channel", sub.Topic())

	payload := `{"patientId":"p1","status":"Completed","data":"Blood Pressure: 120/80"}`
	require.NoError(t, ch.Publish(ctx, "patient_data_channel", []byte(payload)))

	msg, ok, err := sub.Next(ctx, 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, string(msg.Payload))
	assert.Equal(t, "patient_data_channel", msg.Topic)
}

func TestChannel_PublishWithoutSubscribers(t *testing.T) {
	ch := newTestChannel(t)
	require.NoError(t, ch.Publish(context.Background(), "nobody-listens", []byte("x")))
}

func TestChannel_NextTimeoutIsNotAnError(t *testing.T) {
	ch := newTestChannel(t)
	ctx := context.Background()

	sub, err := ch.Subscribe(ctx, "quiet")
	require.NoError(t, err)
	defer sub.Close()

	_, ok, err := sub.Next(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	// The subscription stays usable after a timed-out wait.
	require.NoError(t, ch.Publish(ctx, "quiet", []byte("later")))
	msg, ok, err := sub.Next(ctx, 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "later", string(msg.Payload))
}

func TestChannel_SubscriberCountDropsAfterClose(t *testing.T) {
	ch := newTestChannel(t)
	ctx := context.Background()

	sub, err := ch.Subscribe(ctx, "patient_data_channel")
	require.NoError(t, err)

	count, err := ch.SubscriberCount(ctx, "patient_data_channel")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	assert.Eventually(t, func() bool {
		n, countErr := ch.SubscriberCount(ctx, "patient_data_channel")
		return countErr == nil && n == 0
	}, 2*time.Second, 20*time.Millisecond)

	_, _, err = sub.Next(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, apperrors.ErrClosed)
}

func TestChannel_SubscribeUnavailable(t *testing.T) {
	mr, client := testutil.NewMiniRedis(t)
	ch, err := NewChannel(ChannelOptions{Client: client, SubscribeTimeout: 500 * time.Millisecond})
	require.NoError(t, err)
	mr.Close()

	start := time.Now()
	_, err = ch.Subscribe(context.Background(), "patient_data_channel")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err) || apperrors.IsTimeout(err), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestChannel_PublishUnavailable(t *testing.T) {
	ch, err := NewChannel(ChannelOptions{Client: redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})})
	require.NoError(t, err)
	defer ch.Close()

	err = ch.Publish(context.Background(), "t", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestChannel_PingAndClose(t *testing.T) {
	ch := newTestChannel(t)
	require.NoError(t, ch.Ping(context.Background()))
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
}

func TestChannel_RealRedisRoundTrip(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ch, err := NewChannel(ChannelOptions{Client: client})
	require.NoError(t, err)
	ctx := context.Background()

	topic := "patient_data_channel.it." + t.Name()
	sub, err := ch.Subscribe(ctx, topic)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, ch.Publish(ctx, topic, []byte(`{"patientId":"p9","status":"Completed","data":"x"}`)))
	msg, ok, err := sub.Next(ctx, 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(msg.Payload), `"p9"`)

	count, err := ch.SubscriberCount(ctx, topic)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
