package tempfile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// createN stores n distinct payloads of equal size, advancing the clock
// between creates so each record has a unique last-access time.
func createN(t *testing.T, env *testEnv, n int) []string {
	t.Helper()

	var ids []string
	for i := 0; i < n; i++ {
		// 10 bytes each.
		payload := []byte(fmt.Sprintf("payload-%02d", i))
		f, err := env.manager.Create(context.Background(), payload, fmt.Sprintf("f%d.bin", i), 0)
		require.NoError(t, err, "Create error")
		ids = append(ids, f.Record.ID)
		env.clock.Advance(time.Minute)
	}
	return ids
}

func TestCountPolicyHysteresis(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{MaxStorageCount: 10})
	ctx := context.Background()

	ids := createN(t, env, 11)
	env.manager.Sweep(ctx)

	all, err := env.store.Find(ctx)
	require.NoError(t, err, "Find error")
	require.Len(t, all, 8, "eviction should land at 80% of the count budget")

	// The three coldest records are gone, the rest survive.
	survivors := make(map[string]bool, len(all))
	for _, rec := range all {
		survivors[rec.ID] = true
	}
	for _, id := range ids[:3] {
		require.False(t, survivors[id], "coldest record %s should be evicted", id)
	}
	for _, id := range ids[3:] {
		require.True(t, survivors[id], "warm record %s should survive", id)
	}
}

func TestCountPolicyIdleUnderBudget(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{MaxStorageCount: 10})
	ctx := context.Background()

	createN(t, env, 10)
	env.manager.Sweep(ctx)

	all, err := env.store.Find(ctx)
	require.NoError(t, err, "Find error")
	require.Len(t, all, 10, "eviction must not fire at the budget boundary")
}

func TestSizePolicyHysteresis(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{MaxStorageBytes: 100})
	ctx := context.Background()

	// 13 records of 10 bytes each: 130 bytes total against a 100-byte budget.
	ids := createN(t, env, 13)
	env.manager.Sweep(ctx)

	all, err := env.store.Find(ctx)
	require.NoError(t, err, "Find error")

	var total int64
	survivors := make(map[string]bool, len(all))
	for _, rec := range all {
		total += rec.SizeBytes
		survivors[rec.ID] = true
	}
	require.LessOrEqual(t, total, int64(80), "eviction should land at or under 80% of the byte budget")
	require.Len(t, all, 8, "five coldest records should be evicted")
	for _, id := range ids[:5] {
		require.False(t, survivors[id], "coldest record %s should be evicted", id)
	}
}

func TestSizePolicyRecencyWins(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{MaxStorageBytes: 100})
	ctx := context.Background()

	ids := createN(t, env, 13)

	// Re-reading the oldest record makes it the warmest; the eviction order
	// follows the persisted access time, not insertion order.
	env.clock.Advance(time.Minute)
	_, err := env.manager.Get(ctx, ids[0])
	require.NoError(t, err, "Get error")

	env.manager.Sweep(ctx)

	all, err := env.store.Find(ctx)
	require.NoError(t, err, "Find error")
	survivors := make(map[string]bool, len(all))
	for _, rec := range all {
		survivors[rec.ID] = true
	}
	require.True(t, survivors[ids[0]], "recently read record must not be evicted")
	require.False(t, survivors[ids[1]], "next-coldest record should be evicted instead")
}

func TestExpiryIgnoresBudgets(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{MaxStorageCount: 100, MaxStorageBytes: 1 << 20})
	ctx := context.Background()

	f, err := env.manager.Create(ctx, []byte("tiny"), "a.bin", time.Hour)
	require.NoError(t, err, "Create error")

	env.clock.Advance(2 * time.Hour)
	env.manager.Sweep(ctx)

	all, err := env.store.Find(ctx)
	require.NoError(t, err, "Find error")
	require.Empty(t, all, "expired record %s must be removed even far under budget", f.Record.ID)
}
