package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	blobs := NewBlobStore()
	payload := []byte("content")
	uri, err := blobs.PutObject(context.Background(), "archive/comix/abc.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://archive/comix/abc.html", uri)

	payload[0] = 'C'
	got, ok := blobs.Object("archive/comix/abc.html")
	require.True(t, ok)
	require.Equal(t, "content", string(got))
	require.Equal(t, 1, blobs.Len())

	_, ok = blobs.Object("missing")
	require.False(t, ok)
}
