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

package ilp

import (
	"context"

	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// SendBounded calls send and waits for its reply until ctx is done. Transports
// are not required to observe ctx, so send runs in its own goroutine; a reply
// that arrives after ctx is done is dropped. The returned error satisfies
// serrors.IsTimeout if the deadline of ctx passed first.
func SendBounded(ctx context.Context,
	send func(context.Context, *Prepare) (Reply, error), prepare *Prepare) (Reply, error) {

	type result struct {
		reply Reply
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer log.HandlePanic()
		reply, err := send(ctx, prepare)
		done <- result{reply: reply, err: err}
	}()
	select {
	case r := <-done:
		return r.reply, r.err
	case <-ctx.Done():
		return nil, serrors.Wrap("send abandoned", ctx.Err())
	}
}
