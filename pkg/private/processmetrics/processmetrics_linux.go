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

//go:build linux

// Package processmetrics exports scheduler statistics of the connector
// process. The running and runnable totals let operators tell a slow
// forwarding path apart from a starved one. On platforms other than Linux
// the package does nothing.
package processmetrics

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"

	"github.com/ilpnet/connector/pkg/private/prom"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

var (
	runningDesc = prometheus.NewDesc(
		prom.Namespace+"_process_running_seconds_total",
		"CPU time the process spent running, summed over all threads.",
		nil, nil,
	)
	runnableDesc = prometheus.NewDesc(
		prom.Namespace+"_process_runnable_seconds_total",
		"CPU time the process was runnable but not scheduled, summed over all threads.",
		nil, nil,
	)
	maxProcsDesc = prometheus.NewDesc(
		prom.Namespace+"_process_maxprocs_threads",
		"The current runtime.GOMAXPROCS setting.",
		nil, nil,
	)
)

type schedCollector struct {
	mtx       sync.Mutex
	pid       int
	taskDir   *os.File
	taskCount uint64
	threads   procfs.Procs
	running   uint64
	runnable  uint64
}

// refresh re-reads /proc/<pid>/task/*/schedstat. The thread list is only
// rebuilt when the link count of the task directory changed.
func (c *schedCollector) refresh() error {
	var st syscall.Stat_t
	if err := syscall.Fstat(int(c.taskDir.Fd()), &st); err != nil {
		return err
	}
	//nolint:unconvert // Nlink is uint32 on arm64
	count := uint64(st.Nlink - 2)
	if count != c.taskCount || c.threads == nil {
		threads, err := procfs.AllThreads(c.pid)
		if err != nil {
			return err
		}
		c.threads, c.taskCount = threads, count
	}
	var running, runnable uint64
	var errs serrors.List
	for _, t := range c.threads {
		s, err := t.Schedstat()
		if err != nil {
			// The thread may be gone, the others are still valid.
			errs = append(errs, err)
			continue
		}
		running += s.RunningNanoseconds
		runnable += s.WaitingNanoseconds
	}
	c.running, c.runnable = running, runnable
	return errs.ToError()
}

func (c *schedCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *schedCollector) Collect(ch chan<- prometheus.Metric) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	_ = c.refresh()
	ch <- prometheus.MustNewConstMetric(runningDesc, prometheus.CounterValue,
		float64(c.running)/1e9)
	ch <- prometheus.MustNewConstMetric(runnableDesc, prometheus.CounterValue,
		float64(c.runnable)/1e9)
	ch <- prometheus.MustNewConstMetric(maxProcsDesc, prometheus.GaugeValue,
		float64(runtime.GOMAXPROCS(-1)))
}

// Init registers the scheduler collector with the default prometheus
// registry. Errors can be ignored, the only consequence is missing metrics.
func Init() error {
	pid := os.Getpid()
	path := filepath.Join(procfs.DefaultMountPoint, strconv.Itoa(pid), "task")
	dir, err := os.Open(path)
	if err != nil {
		return serrors.Wrap("opening task directory", err, "path", path)
	}
	c := &schedCollector{pid: pid, taskDir: dir}
	if err := c.refresh(); err != nil {
		dir.Close()
		return serrors.Wrap("initial schedstat read", err)
	}
	if err := prometheus.Register(c); err != nil {
		dir.Close()
		return serrors.Wrap("registering collector", err)
	}
	return nil
}
