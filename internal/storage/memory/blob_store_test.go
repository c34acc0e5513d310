package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObject(t *testing.T) {
	t.Parallel()

	s := New()
	uri, err := s.PutObject(context.Background(), "screenshots/t1/1.png", "image/png", []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, "mem://screenshots/t1/1.png", uri)

	data, ok := s.Object("screenshots/t1/1.png")
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, data)
}

func TestPutObject_RequiresPath(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.PutObject(context.Background(), "", "image/png", nil)
	require.Error(t, err)
}
