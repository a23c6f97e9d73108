package quota_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/reverie/internal/domain/plan"
	"github.com/rpggio/reverie/internal/domain/quota"
	"github.com/stretchr/testify/require"
)

func TestGuard_FreePlanInterpretScenario(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	ledger := newLedger(newMemStore(), clock)

	var denials []quota.Denial
	onDenied := func(d quota.Denial) { denials = append(denials, d) }

	for i := 0; i < 2; i++ {
		ok, err := ledger.Guard(ctx, "p1", plan.CapInterpret, onDenied)
		require.NoError(t, err)
		require.True(t, ok, "call %d should be admitted", i+1)
		require.NoError(t, ledger.RecordAfter(ctx, "p1", plan.CapInterpret))
	}

	ok, err := ledger.Guard(ctx, "p1", plan.CapInterpret, onDenied)
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, denials, 1)
	require.Contains(t, denials[0].Message(), "Free")
	require.Contains(t, denials[0].Message(), "2")
	require.Contains(t, denials[0].Message(), "interpret")
	require.Equal(t, 2, denials[0].Used)
}

func TestGuard_FreePlanArtScenario(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	ledger := newLedger(newMemStore(), clock)

	ok, err := ledger.Guard(ctx, "p1", plan.CapArt, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, ledger.RecordAfter(ctx, "p1", plan.CapArt))

	var denial quota.Denial
	ok, err = ledger.Guard(ctx, "p1", plan.CapArt, func(d quota.Denial) { denial = d })
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, denial.Message(), "Free")
	require.Contains(t, denial.Message(), "(1 per day)")

	// Interpret quota is separate
	ok, err = ledger.Guard(ctx, "p1", plan.CapInterpret, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGuard_DeniesAtLimitFromStoredCounter(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	store := newMemStore()
	ledger := newLedger(store, clock)

	_, err := ledger.SetPlan(ctx, "p1", "lite")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := ledger.Consume(ctx, "p1", plan.CapArt)
		require.NoError(t, err)
	}

	ok, err := ledger.Guard(ctx, "p1", plan.CapArt, nil)
	require.NoError(t, err)
	require.False(t, ok)

	// Upgrading lifts the limit without touching the counter
	_, err = ledger.SetPlan(ctx, "p1", "standard")
	require.NoError(t, err)
	ok, err = ledger.Guard(ctx, "p1", plan.CapArt, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWithQuota_RunsAndRecords(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	ledger := newLedger(newMemStore(), clock)

	runs := 0
	action := ledger.WithQuota("p1", plan.CapInterpret, nil, func(context.Context) error {
		runs++
		return nil
	})

	require.NoError(t, action(ctx))
	require.NoError(t, action(ctx))

	err := action(ctx)
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)
	require.Equal(t, 2, runs, "denied call must not run the action")

	var denialErr *quota.DenialError
	require.True(t, errors.As(err, &denialErr))
	require.Equal(t, "Free", denialErr.Denial.PlanLabel)
	require.Equal(t, plan.Limit(2), denialErr.Denial.Limit)

	counter, err := ledger.ReadCounter(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 2, counter.Interpret)
}

func TestWithQuota_CallsOnDenied(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	ledger := newLedger(newMemStore(), clock)
	_, err := ledger.Consume(ctx, "p1", plan.CapArt)
	require.NoError(t, err)

	called := false
	action := ledger.WithQuota("p1", plan.CapArt, func(quota.Denial) { called = true }, func(context.Context) error {
		t.Fatal("action must not run")
		return nil
	})

	require.ErrorIs(t, action(ctx), quota.ErrQuotaExceeded)
	require.True(t, called)
}

func TestWithQuota_FailedActionIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	ledger := newLedger(newMemStore(), clock)

	boom := errors.New("storage failed")
	action := ledger.WithQuota("p1", plan.CapArt, nil, func(context.Context) error { return boom })

	require.ErrorIs(t, action(ctx), boom)

	counter, err := ledger.ReadCounter(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 0, counter.Art)
}

func TestWithQuota_DebitsOnDispatchEvenWhenRemoteFails(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	ledger := newLedger(newMemStore(), clock)

	// The generation client never errors for remote failures; the action
	// succeeds with fallback content and the use is still counted.
	action := ledger.WithQuota("p1", plan.CapArt, nil, func(context.Context) error {
		return nil
	})
	require.NoError(t, action(ctx))

	counter, err := ledger.ReadCounter(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, counter.Art)
}

type recorder struct {
	consumed []string
	denied   []string
	rolls    int
}

func (r *recorder) QuotaConsumed(capability, tier string) {
	r.consumed = append(r.consumed, capability+"/"+tier)
}
func (r *recorder) QuotaDenied(capability, tier string) {
	r.denied = append(r.denied, capability+"/"+tier)
}
func (r *recorder) Rollover() { r.rolls++ }

func TestLedger_Metrics(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	clock := &fakeClock{t: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	ledger := newLedger(newMemStore(), clock, quota.WithMetrics(rec))

	action := ledger.WithQuota("p1", plan.CapArt, nil, func(context.Context) error { return nil })
	require.NoError(t, action(ctx))
	require.ErrorIs(t, action(ctx), quota.ErrQuotaExceeded)

	require.Equal(t, []string{"art/free"}, rec.consumed)
	require.Equal(t, []string{"art/free"}, rec.denied)
}
