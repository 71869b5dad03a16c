package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublishEncodesEvent(t *testing.T) {
	ch := &recordingChannel{}
	stamp := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	p := &Publisher{channel: ch, exchange: "identity", now: func() time.Time { return stamp }}

	err := p.Publish(context.Background(), &UserEvent{
		Type:     EventUserRegistered,
		UserID:   "USR1",
		Metadata: map[string]any{"email": "ada@example.com"},
	})
	require.NoError(t, err)

	require.Equal(t, "identity", ch.exchange)
	require.Equal(t, EventUserRegistered, ch.key)
	require.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	require.Equal(t, "application/json", ch.msg.ContentType)

	var decoded UserEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	require.Equal(t, "USR1", decoded.UserID)
	require.True(t, decoded.Timestamp.Equal(stamp))
	require.Equal(t, "ada@example.com", decoded.Metadata["email"])
}

func TestPublishWrapsChannelError(t *testing.T) {
	ch := &recordingChannel{err: errors.New("channel closed")}
	p := &Publisher{channel: ch, exchange: DefaultExchange, now: time.Now}

	err := p.Publish(context.Background(), &UserEvent{Type: EventUserDeleted, UserID: "USR1"})
	require.ErrorContains(t, err, "channel closed")

	require.NoError(t, p.Close())
	require.True(t, ch.closed)
}

func TestPingWithoutConnection(t *testing.T) {
	p := &Publisher{exchange: DefaultExchange, now: time.Now}
	require.ErrorIs(t, p.Ping(context.Background()), ErrConnectionClosed)
}
