package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id, err := pub.Publish(context.Background(), "runs", map[string]int{"records": 3})
	require.NoError(t, err)
	require.Equal(t, "mem-1", id)

	id, err = pub.Publish(context.Background(), "alerts", "done")
	require.NoError(t, err)
	require.Equal(t, "mem-2", id)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "runs", msgs[0].Topic)
	require.Equal(t, "done", msgs[1].Payload)

	msgs[0].Topic = "changed"
	require.Equal(t, "runs", pub.Messages()[0].Topic)
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("broker down")
	pub.FailWith(boom)
	_, err := pub.Publish(context.Background(), "runs", nil)
	require.ErrorIs(t, err, boom)
	require.Empty(t, pub.Messages())

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "runs", nil)
	require.NoError(t, err)
}

func TestPublisherHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Publish(ctx, "runs", nil)
	require.ErrorIs(t, err, context.Canceled)
}
