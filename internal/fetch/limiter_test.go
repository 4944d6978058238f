package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterEnforcesClassInterval(t *testing.T) {
	t.Parallel()

	l := NewLimiter(Intervals{ClassSearch: 60 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, ClassSearch))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, ClassSearch))
	require.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestLimiterClassesAreIndependent(t *testing.T) {
	t.Parallel()

	l := NewLimiter(Intervals{
		ClassSearch:  250 * time.Millisecond,
		ClassArchive: 250 * time.Millisecond,
	})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, ClassSearch))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, ClassArchive))
	require.Less(t, time.Since(start), 100*time.Millisecond,
		"a wait in one class must not delay another class")
}

func TestLimiterHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	l := NewLimiter(Intervals{ClassScrape: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, ClassScrape))
	require.Error(t, l.Wait(ctx, ClassScrape))
}

func TestLimiterUnknownClassFallsBack(t *testing.T) {
	t.Parallel()

	l := NewLimiter(nil)
	require.NoError(t, l.Wait(context.Background(), Class("adhoc")))
}
