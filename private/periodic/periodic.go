// Copyright 2026 ILPnet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package periodic runs a task at a fixed interval. Every run receives a
// context bounded by the configured timeout. A run can also be triggered
// on demand with TriggerRun.
package periodic

import (
	"context"
	"sync"
	"time"

	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/metrics"
)

// Event types recorded by Metrics.Events.
const (
	EventStop    = "stop"
	EventKill    = "kill"
	EventTrigger = "triggered"
)

// Task is a task that is executed periodically.
type Task interface {
	Run(context.Context)
	// Name returns the task name, used in logs and metrics.
	Name() string
}

// Func wraps a function as Task.
type Func struct {
	Task     func(context.Context)
	TaskName string
}

func (f Func) Run(ctx context.Context) {
	f.Task(ctx)
}

func (f Func) Name() string {
	return f.TaskName
}

// Metrics contains the metrics of a runner. All fields are optional.
type Metrics struct {
	Events    func(string) metrics.Counter
	Period    metrics.Gauge
	Runtime   metrics.Gauge
	StartTime metrics.Gauge
}

func (m *Metrics) event(name string) metrics.Counter {
	if m == nil || m.Events == nil {
		return nil
	}
	return m.Events(name)
}

// Runner runs a task periodically.
type Runner struct {
	task    Task
	ticker  *time.Ticker
	timeout time.Duration
	metrics *Metrics
	logger  log.Logger

	ctx     context.Context
	cancelF context.CancelFunc

	stop         chan struct{}
	trigger      chan struct{}
	loopFinished chan struct{}
	stopOnce     sync.Once
}

// Start creates and starts a new Runner to run the given task periodically.
// The timeout is used for the context timeout of a single run.
func Start(task Task, period, timeout time.Duration) *Runner {
	return StartWithMetrics(task, nil, period, timeout)
}

// StartWithMetrics is identical to Start but also records metrics.
func StartWithMetrics(task Task, m *Metrics, period, timeout time.Duration) *Runner {
	ctx, cancelF := context.WithCancel(context.Background())
	logger := log.New("task", task.Name())
	ctx = log.CtxWith(ctx, logger)
	r := &Runner{
		task:         task,
		ticker:       time.NewTicker(period),
		timeout:      timeout,
		metrics:      m,
		logger:       logger,
		ctx:          ctx,
		cancelF:      cancelF,
		stop:         make(chan struct{}),
		trigger:      make(chan struct{}),
		loopFinished: make(chan struct{}),
	}
	if m != nil {
		metrics.GaugeSet(m.Period, period.Seconds())
	}
	logger.Debug("Starting periodic task", "period", period, "timeout", timeout)
	go func() {
		defer log.HandlePanic()
		r.runLoop()
	}()
	return r
}

// Stop stops the periodic execution and waits for the running task to
// finish. It is safe to call Stop multiple times.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.loopFinished
		r.cancelF()
		metrics.CounterInc(r.metrics.event(EventStop))
		r.logger.Debug("Stopped periodic task")
	})
}

// Kill stops the periodic execution and cancels the context of the running
// task. It waits for the task to return.
func (r *Runner) Kill() {
	r.stopOnce.Do(func() {
		close(r.stop)
		r.cancelF()
		<-r.loopFinished
		metrics.CounterInc(r.metrics.event(EventKill))
		r.logger.Debug("Killed periodic task")
	})
}

// TriggerRun triggers a run outside of the regular schedule. It blocks until
// the run starts or the runner is stopped.
func (r *Runner) TriggerRun() {
	select {
	case <-r.stop:
	case r.trigger <- struct{}{}:
		metrics.CounterInc(r.metrics.event(EventTrigger))
	}
}

func (r *Runner) runLoop() {
	defer close(r.loopFinished)
	defer r.ticker.Stop()
	r.onTick()
	for {
		select {
		case <-r.stop:
			return
		case <-r.ticker.C:
			r.onTick()
		case <-r.trigger:
			r.onTick()
		}
	}
}

func (r *Runner) onTick() {
	select {
	case <-r.stop:
		return
	default:
	}
	ctx, cancelF := context.WithTimeout(r.ctx, r.timeout)
	start := time.Now()
	r.task.Run(ctx)
	cancelF()
	if r.metrics != nil {
		metrics.GaugeSet(r.metrics.StartTime, float64(start.Unix()))
		metrics.GaugeSet(r.metrics.Runtime, time.Since(start).Seconds())
	}
}
