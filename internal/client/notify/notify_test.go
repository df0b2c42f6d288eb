package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueAndDrain(t *testing.T) {
	q := NewQueue(4)
	q.Enqueue(Error("vault failed"))
	q.Enqueue(Info("funded"))

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, LevelError, got[0].Level)
	assert.Equal(t, "vault failed", got[0].Message)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, LevelInfo, got[1].Level)
	assert.Empty(t, q.Drain())
}

func TestQueue_FullDropsOldest(t *testing.T) {
	q := NewQueue(2)
	q.Enqueue(Info("1"))
	q.Enqueue(Info("2"))
	q.Enqueue(Info("3"))

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Message)
	assert.Equal(t, "3", got[1].Message)
}
