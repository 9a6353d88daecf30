package pgw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDbDurationAccumulates(t *testing.T) {
	ctx := WithDBDuration(context.Background())
	require.Equal(t, time.Duration(0), DbDuration(ctx))

	t1 := time.Now().Add(-50 * time.Millisecond)
	addDuration(ctx, t1)()
	first := DbDuration(ctx)
	require.GreaterOrEqual(t, first, 50*time.Millisecond)

	addDuration(ctx, time.Now().Add(-10*time.Millisecond))()
	require.GreaterOrEqual(t, DbDuration(ctx), first+10*time.Millisecond)
}

func TestDbDurationIgnoresPlainContext(t *testing.T) {
	addDuration(context.Background(), time.Now())()
	require.Panics(t, func() {
		DbDuration(context.Background())
	})
}
