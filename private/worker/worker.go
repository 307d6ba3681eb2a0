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

// Package worker contains helpers for long running components that follow
// the Run/Close pattern.
package worker

import (
	"context"
	"sync"

	"github.com/ilpnet/connector/pkg/private/serrors"
)

// Base is embedded in workers to make Run and Close safe to call in any order
// and any number of times. The zero value is ready to use.
type Base struct {
	mtx      sync.Mutex
	running  bool
	closed   bool
	doneChan chan struct{}
}

// RunWrapper calls setupF and runF in order. It returns an error if the worker
// is already running, and nil without calling anything if the worker has
// already been closed. Nil functions are skipped.
func (w *Base) RunWrapper(ctx context.Context, setupF, runF func(context.Context) error) error {
	w.mtx.Lock()
	if w.running {
		w.mtx.Unlock()
		return serrors.New("function is already running")
	}
	if w.closed {
		w.mtx.Unlock()
		return nil
	}
	w.running = true
	w.initDone()
	w.mtx.Unlock()

	if setupF != nil {
		if err := setupF(ctx); err != nil {
			return err
		}
	}
	if runF != nil {
		return runF(ctx)
	}
	return nil
}

// CloseWrapper closes the done channel and calls closeF. Only the first call
// has an effect.
func (w *Base) CloseWrapper(ctx context.Context, closeF func(context.Context) error) error {
	w.mtx.Lock()
	if w.closed {
		w.mtx.Unlock()
		return nil
	}
	w.closed = true
	w.initDone()
	close(w.doneChan)
	w.mtx.Unlock()

	if closeF != nil {
		return closeF(ctx)
	}
	return nil
}

// GetDoneChan returns a channel that is closed once Close has been called.
func (w *Base) GetDoneChan() <-chan struct{} {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	w.initDone()
	return w.doneChan
}

func (w *Base) initDone() {
	if w.doneChan == nil {
		w.doneChan = make(chan struct{})
	}
}
