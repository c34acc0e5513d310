package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublish_RecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "outreach-runs", map[string]any{"run_id": "r1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	id, err = p.Publish(context.Background(), "outreach-runs", map[string]any{"run_id": "r2"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	messages := p.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "outreach-runs", messages[0].Topic)
	require.Equal(t, map[string]any{"run_id": "r1"}, messages[0].Payload)
}
