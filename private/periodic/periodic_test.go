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

package periodic_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/ilpnet/connector/pkg/metrics"
	"github.com/ilpnet/connector/pkg/private/xtest"
	"github.com/ilpnet/connector/private/periodic"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type taskFunc func(context.Context)

func (tf taskFunc) Run(ctx context.Context) {
	tf(ctx)
}

func (tf taskFunc) Name() string {
	return "test_task"
}

func newMetrics() *periodic.Metrics {
	events := metrics.NewTestCounterVec()
	return &periodic.Metrics{
		Events:    func(event string) metrics.Counter { return events.With(event) },
		Period:    metrics.NewTestGauge(),
		Runtime:   metrics.NewTestGauge(),
		StartTime: metrics.NewTestGauge(),
	}
}

func TestPeriodicExecution(t *testing.T) {
	m := newMetrics()
	want := 5
	// Buffered so that a tick racing with Stop does not block the task.
	cnt := make(chan struct{}, want)
	fn := taskFunc(func(ctx context.Context) {
		select {
		case cnt <- struct{}{}:
		default:
		}
	})
	p := time.Duration(want) * 20 * time.Millisecond
	r := periodic.StartWithMetrics(fn, m, p, time.Hour)

	start := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		v := 0
		for {
			select {
			case <-cnt:
				v++
				if v == want {
					return
				}
			case <-time.After(5 * p):
				panic(fmt.Sprintf("timed out while waiting %d run", v))
			}
		}
	}()

	xtest.AssertReadReturnsBefore(t, done, time.Second*3)
	assert.WithinDurationf(t, start, time.Now(), time.Duration(want+2)*p,
		"more or less %d * periods", want+2)
	assert.NoError(t, runWithTimeout(r.Stop, 2*time.Second), "r.Stop() action timed out")
	assert.Equal(t, float64(1), metrics.CounterValue(m.Events(periodic.EventStop)))
	assert.Equal(t, float64(0), metrics.CounterValue(m.Events(periodic.EventKill)))
	assert.Equal(t, p.Seconds(), metrics.GaugeValue(m.Period))
}

func TestKillExitsLongRunningFunc(t *testing.T) {
	m := newMetrics()
	done, errChan := make(chan struct{}), make(chan error, 1)
	p := 10 * time.Millisecond
	fn := taskFunc(func(ctx context.Context) {
		close(done)
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		errChan <- ctx.Err()
	})
	r := periodic.StartWithMetrics(fn, m, p, time.Hour)
	xtest.AssertReadReturnsBefore(t, done, time.Second)
	assert.NoError(t, runWithTimeout(r.Kill, time.Second))

	select {
	case err := <-errChan:
		assert.Equal(t, context.Canceled, err, "Context should have been canceled")
	case <-time.After(time.Second):
		t.Fatalf("time out while waiting on err")
	}
	assert.Equal(t, float64(0), metrics.CounterValue(m.Events(periodic.EventStop)))
	assert.Equal(t, float64(1), metrics.CounterValue(m.Events(periodic.EventKill)))
}

func TestTriggerRun(t *testing.T) {
	m := newMetrics()
	want := 10
	cnt := make(chan struct{}, 50)
	fn := taskFunc(func(ctx context.Context) {
		cnt <- struct{}{}
	})
	r := periodic.StartWithMetrics(fn, m, time.Hour, time.Second)
	defer r.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-cnt
		for i := 0; i < want; i++ {
			assert.NoError(t, runWithTimeout(r.TriggerRun, time.Second))
		}
	}()
	xtest.AssertReadReturnsBefore(t, done, 5*time.Second)
	assert.GreaterOrEqual(t, len(cnt), want-1)
	assert.Equal(t, float64(want), metrics.CounterValue(m.Events(periodic.EventTrigger)))
}

func TestTriggerAfterStopReturns(t *testing.T) {
	r := periodic.Start(periodic.Func{
		Task:     func(context.Context) {},
		TaskName: "noop",
	}, time.Hour, time.Second)
	r.Stop()
	r.Stop()
	assert.NoError(t, runWithTimeout(r.TriggerRun, time.Second))
}

func runWithTimeout(f func(), t time.Duration) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	select {
	case <-done:
		return nil
	case <-time.After(t):
		return fmt.Errorf("timed out after %v", t)
	}
}
