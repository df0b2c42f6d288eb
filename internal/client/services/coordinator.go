package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/ledgersync/internal/logging"
)

// Step is one polling action of a coordinator cycle.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// RescanGuard reports the rescan condition checked after every step.
type RescanGuard interface {
	IsRescanning() bool
	SetInitialLoad(v bool)
}

// CycleResult describes what one cycle did.
type CycleResult struct {
	Executed []string
	Failed   []string
	// Rescanning is set when the cycle stopped early because the node
	// entered a rescan.
	Rescanning bool
}

// Coordinator runs its steps in order on a fixed cadence while running.
// A step failure is logged and never stops the remaining steps; a rescan
// ends the cycle early. The next cycle is always scheduled.
type Coordinator struct {
	steps    []Step
	guard    RescanGuard
	interval time.Duration
	log      logging.Logger
	after    func(time.Duration) <-chan time.Time

	running atomic.Bool
	// OnCycle, when set, observes every finished cycle.
	OnCycle func(CycleResult)
}

func NewCoordinator(interval time.Duration, guard RescanGuard, log logging.Logger, steps ...Step) *Coordinator {
	c := &Coordinator{
		steps:    steps,
		guard:    guard,
		interval: interval,
		log:      log,
		after:    time.After,
	}
	c.running.Store(true)
	return c
}

// Start and Stop toggle whether future cycles execute. A cycle already in
// flight finishes either way.
func (c *Coordinator) Start()        { c.running.Store(true) }
func (c *Coordinator) Stop()         { c.running.Store(false) }
func (c *Coordinator) Running() bool { return c.running.Load() }

// Run executes a cycle, waits the interval and repeats until ctx is done.
// Cycles are skipped while stopped but the schedule keeps ticking.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		if c.Running() {
			res := c.Cycle(ctx)
			if c.OnCycle != nil {
				c.OnCycle(res)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.after(c.interval):
		}
	}
}

// Cycle runs the steps once.
func (c *Coordinator) Cycle(ctx context.Context) CycleResult {
	var res CycleResult
	for _, s := range c.steps {
		if ctx.Err() != nil {
			return res
		}
		res.Executed = append(res.Executed, s.Name)
		if err := c.runStep(ctx, s); err != nil {
			res.Failed = append(res.Failed, s.Name)
			c.log.Warn(ctx, "coordinator: step failed", "step", s.Name, "error", err)
		}
		if c.guard.IsRescanning() {
			c.guard.SetInitialLoad(false)
			res.Rescanning = true
			c.log.Info(ctx, "coordinator: node is rescanning, cycle cut short", "after", s.Name)
			return res
		}
	}
	c.guard.SetInitialLoad(true)
	return res
}

func (c *Coordinator) runStep(ctx context.Context, s Step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s: %v", s.Name, p)
		}
	}()
	return s.Run(ctx)
}
