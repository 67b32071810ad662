package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	attrs := map[string]string{"site": "panini"}
	id1, err := pub.Publish(context.Background(), attrs, map[string]string{"k": "v"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), nil, "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	attrs["site"] = "mutated"
	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "panini", msgs[0].Attributes["site"])
	require.Equal(t, "payload", msgs[1].Payload)

	msgs[0].Payload = "modified"
	require.NotEqual(t, "modified", pub.Messages()[0].Payload)
}
