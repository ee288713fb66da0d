package stress

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Scheduler paces invocations and picks which target runs next
type Scheduler struct {
	config  *Config
	limiter *rate.Limiter
	sem     chan struct{} // bounds concurrent invocations

	mu          sync.Mutex
	targets     []*ScheduledTarget
	weights     []int
	totalWeight int
}

// ScheduledTarget is a target registered with the scheduler
type ScheduledTarget struct {
	Index  int
	Name   string
	Target *Target
}

// NewScheduler creates a new scheduler with the given config
func NewScheduler(config *Config) *Scheduler {
	s := &Scheduler{config: config}

	if config.Mode == RateMode && config.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}

	maxVUs := config.MaxVUs
	if maxVUs < 1 {
		maxVUs = 100
	}
	s.sem = make(chan struct{}, maxVUs)

	return s
}

// AddTarget registers a target under the given index
func (s *Scheduler) AddTarget(index int, name string, target *Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.targets = append(s.targets, &ScheduledTarget{Index: index, Name: name, Target: target})
	w := target.weight()
	s.weights = append(s.weights, w)
	s.totalWeight += w
}

// Select picks a target, weighted by Target.Weight. It returns nil when no
// target is registered.
func (s *Scheduler) Select() *ScheduledTarget {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch len(s.targets) {
	case 0:
		return nil
	case 1:
		return s.targets[0]
	}

	r := rand.Intn(s.totalWeight)
	cumulative := 0
	for i, w := range s.weights {
		cumulative += w
		if r < cumulative {
			return s.targets[i]
		}
	}
	return s.targets[len(s.targets)-1]
}

// Wait blocks on the rate limiter in rate mode and returns immediately otherwise
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return nil
}

// Acquire takes a slot from the concurrency semaphore
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the semaphore
func (s *Scheduler) Release() {
	<-s.sem
}

// CurrentRate returns the target rate after linear ramp-up
func (s *Scheduler) CurrentRate(elapsed time.Duration) float64 {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.Rate
	}
	return s.config.Rate * float64(elapsed) / float64(s.config.RampUp)
}

// CurrentVUs returns the target VU count after linear ramp-up
func (s *Scheduler) CurrentVUs(elapsed time.Duration) int {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.VUs
	}
	return int(float64(s.config.VUs) * float64(elapsed) / float64(s.config.RampUp))
}

// UpdateRate changes the limiter rate; non-positive rates are ignored
func (s *Scheduler) UpdateRate(newRate float64) {
	if s.limiter != nil && newRate > 0 {
		s.limiter.SetLimit(rate.Limit(newRate))
	}
}

// Len returns the number of registered targets
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// Targets returns a copy of the registered targets
func (s *Scheduler) Targets() []*ScheduledTarget {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*ScheduledTarget, len(s.targets))
	copy(result, s.targets)
	return result
}

type executorFunc func(ctx context.Context, st *ScheduledTarget) error

// virtualUser invokes targets in a loop until its context is canceled
type virtualUser struct {
	scheduler *Scheduler
	config    *Config
	metrics   *Metrics
	execute   executorFunc
	cancel    context.CancelFunc
}

func (v *virtualUser) start(ctx context.Context, wg *sync.WaitGroup) {
	ctx, v.cancel = context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		v.run(ctx)
	}()
}

func (v *virtualUser) stop() {
	if v.cancel != nil {
		v.cancel()
	}
}

func (v *virtualUser) run(ctx context.Context) {
	v.metrics.IncrementActiveVUs()
	defer v.metrics.DecrementActiveVUs()

	for ctx.Err() == nil {
		st := v.scheduler.Select()
		if st == nil {
			return
		}

		if err := v.scheduler.Acquire(ctx); err != nil {
			return
		}
		_ = v.execute(ctx, st)
		v.scheduler.Release()

		think := v.config.ThinkTime
		if st.Target != nil && st.Target.Think > 0 {
			think = st.Target.Think
		}
		if think <= 0 {
			continue
		}

		timer := time.NewTimer(think)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// VUPool manages a pool of virtual users
type VUPool struct {
	scheduler *Scheduler
	config    *Config
	metrics   *Metrics
	execute   executorFunc

	mu    sync.Mutex
	users []*virtualUser
	wg    sync.WaitGroup
	ctx   context.Context
	stop  context.CancelFunc
}

func newVUPool(scheduler *Scheduler, config *Config, metrics *Metrics, execute executorFunc) *VUPool {
	return &VUPool{
		scheduler: scheduler,
		config:    config,
		metrics:   metrics,
		execute:   execute,
	}
}

// Start launches the initial virtual users (at least one)
func (p *VUPool) Start(ctx context.Context) {
	p.ctx, p.stop = context.WithCancel(ctx)
	p.Scale(max(p.scheduler.CurrentVUs(0), 1))
}

// Scale adjusts the number of running virtual users
func (p *VUPool) Scale(target int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.users) < target {
		vu := &virtualUser{
			scheduler: p.scheduler,
			config:    p.config,
			metrics:   p.metrics,
			execute:   p.execute,
		}
		vu.start(p.ctx, &p.wg)
		p.users = append(p.users, vu)
	}
	for len(p.users) > target && len(p.users) > 0 {
		last := len(p.users) - 1
		p.users[last].stop()
		p.users = p.users[:last]
	}
}

// Stop cancels every virtual user
func (p *VUPool) Stop() {
	p.mu.Lock()
	for _, vu := range p.users {
		vu.stop()
	}
	p.mu.Unlock()

	if p.stop != nil {
		p.stop()
	}
}

// Wait waits for all virtual users to return
func (p *VUPool) Wait() {
	p.wg.Wait()
}

// Count returns the current number of running virtual users
func (p *VUPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.users)
}
