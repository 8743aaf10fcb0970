package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, Message{Type: "record", Body: []byte(`{"id":"r1"}`)}))

	select {
	case msg := <-messages:
		assert.Equal(t, "record", msg.Type)
		assert.Equal(t, `{"id":"r1"}`, string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "record", Body: []byte(`{"id":"a|b"}`)}
	got := deserialize(serialize(msg))
	assert.Equal(t, msg.Type, got.Type)
	assert.Equal(t, string(msg.Body), string(got.Body))

	// legacy frame without a separator
	got = deserialize("plain")
	assert.Equal(t, "", got.Type)
	assert.Equal(t, "plain", string(got.Body))
}
