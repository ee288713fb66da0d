package stress

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerAddTarget(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	s.AddTarget(0, "a", &Target{Weight: 1})
	s.AddTarget(1, "b", &Target{Weight: 2})
	s.AddTarget(2, "c", nil)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 4, s.totalWeight)
}

func TestSchedulerSelectSingle(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	s.AddTarget(0, "only", &Target{})

	for i := 0; i < 10; i++ {
		st := s.Select()
		require.NotNil(t, st)
		assert.Equal(t, "only", st.Name)
	}
}

func TestSchedulerSelectWeighted(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	s.AddTarget(0, "heavy", &Target{Weight: 90})
	s.AddTarget(1, "light", &Target{Weight: 10})

	counts := make(map[string]int)
	const iterations = 10000
	for i := 0; i < iterations; i++ {
		st := s.Select()
		require.NotNil(t, st)
		counts[st.Name]++
	}

	assert.InDelta(t, 0.9, float64(counts["heavy"])/iterations, 0.05)
	assert.InDelta(t, 0.1, float64(counts["light"])/iterations, 0.05)
}

func TestSchedulerSelectEmpty(t *testing.T) {
	assert.Nil(t, NewScheduler(DefaultConfig()).Select())
}

func TestSchedulerWaitRateMode(t *testing.T) {
	s := NewScheduler(&Config{Mode: RateMode, Rate: 100})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, s.Wait(ctx))
	assert.Less(t, time.Since(start), 5*time.Millisecond)

	start = time.Now()
	require.NoError(t, s.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestSchedulerWaitVUMode(t *testing.T) {
	s := NewScheduler(&Config{Mode: VUMode, VUs: 1})
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Wait(context.Background()))
	}
}

func TestSchedulerWaitCancelled(t *testing.T) {
	s := NewScheduler(&Config{Mode: RateMode, Rate: 1})
	ctx, cancel := context.WithCancel(context.Background())

	_ = s.Wait(ctx)
	cancel()

	assert.Error(t, s.Wait(ctx))
}

func TestSchedulerAcquireRelease(t *testing.T) {
	s := NewScheduler(&Config{MaxVUs: 2})
	ctx := context.Background()

	require.NoError(t, s.Acquire(ctx))
	require.NoError(t, s.Acquire(ctx))

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Acquire(short), context.DeadlineExceeded)

	s.Release()

	longer, cancel2 := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel2()
	assert.NoError(t, s.Acquire(longer))
}

func TestSchedulerRampUp(t *testing.T) {
	s := NewScheduler(&Config{Rate: 100, VUs: 10, RampUp: 10 * time.Second})

	tests := []struct {
		elapsed time.Duration
		rate    float64
		vus     int
	}{
		{0, 0, 0},
		{5 * time.Second, 50, 5},
		{10 * time.Second, 100, 10},
		{15 * time.Second, 100, 10},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.rate, s.CurrentRate(tt.elapsed), 0.1, "rate at %s", tt.elapsed)
		assert.Equal(t, tt.vus, s.CurrentVUs(tt.elapsed), "vus at %s", tt.elapsed)
	}
}

func TestSchedulerUpdateRate(t *testing.T) {
	s := NewScheduler(&Config{Mode: RateMode, Rate: 10})

	s.UpdateRate(100)
	s.UpdateRate(0)
	assert.InDelta(t, 100, float64(s.limiter.Limit()), 0.001)
	assert.NoError(t, s.Wait(context.Background()))
}

func TestSchedulerTargetsCopy(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	s.AddTarget(0, "a", nil)
	s.AddTarget(1, "b", nil)

	targets := s.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "a", targets[0].Name)
	targets[0] = nil

	assert.NotNil(t, s.Targets()[0])
}

func TestVUPoolScale(t *testing.T) {
	cfg := &Config{Mode: VUMode, VUs: 2, MaxVUs: 10, ThinkTime: 5 * time.Millisecond}
	s := NewScheduler(cfg)
	s.AddTarget(0, "t", &Target{})
	m := NewMetrics()

	var calls atomic.Int64
	pool := newVUPool(s, cfg, m, func(ctx context.Context, st *ScheduledTarget) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	assert.Equal(t, 2, pool.Count())

	pool.Scale(5)
	assert.Equal(t, 5, pool.Count())

	pool.Scale(1)
	assert.Equal(t, 1, pool.Count())

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, 5*time.Millisecond)

	pool.Stop()
	pool.Wait()
	assert.Equal(t, int32(0), m.GetCurrentStats().ActiveVUs)
}

func TestVUPoolRespectsConcurrencyLimit(t *testing.T) {
	cfg := &Config{Mode: VUMode, VUs: 8, MaxVUs: 2}
	s := NewScheduler(cfg)
	s.AddTarget(0, "t", &Target{})

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	pool := newVUPool(s, cfg, NewMetrics(), func(ctx context.Context, st *ScheduledTarget) error {
		mu.Lock()
		current++
		peak = max(peak, current)
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	pool.Start(ctx)
	<-ctx.Done()
	pool.Stop()
	pool.Wait()

	assert.LessOrEqual(t, peak, 2)
	assert.Positive(t, peak)
}
