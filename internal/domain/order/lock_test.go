package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	m := newKeyedMutex()
	unlock, err := m.Lock(context.Background(), "t1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "t1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := m.Lock(context.Background(), "t2")
	require.NoError(t, err)
	other()

	unlock()
	again, err := m.Lock(context.Background(), "t1")
	require.NoError(t, err)
	again()

	assert.Empty(t, m.locks)
}
