package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lyzr/teststate/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSetGetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := Connect(ctx, mr.Addr(), "", 0, logger.Discard())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetWithExpiry(ctx, "k", "v", time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.SetWithExpiry(ctx, "short", "v", time.Second))
	mr.FastForward(2 * time.Second)
	_, err = c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnectFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), addr, "", 0, logger.Discard())
	assert.Error(t, err)
}
