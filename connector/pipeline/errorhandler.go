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

package pipeline

import (
	"context"
	"errors"

	"github.com/ilpnet/connector/pkg/ilp"
	"github.com/ilpnet/connector/pkg/log"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// DefaultTriggeredBy is used as the address of rejects produced while the
// connector has no own address.
const DefaultTriggeredBy = "peer"

// OwnAddressesFunc returns the own addresses of the connector, preferred
// first.
type OwnAddressesFunc func() []string

// ErrorHandler returns the outermost rule. It converts every error of the
// inner stages into a reject triggered by the connector, so a peer always
// receives a fulfill or a reject.
func ErrorHandler(ownAddresses OwnAddressesFunc) Rule {
	return Rule{
		Name:     RuleErrorHandler,
		Required: true,
		Incoming: MiddlewareFunc(func(ctx context.Context, req *Request,
			next Handler) (ilp.Reply, error) {

			reply, err := next(ctx, req)
			if err == nil {
				err = checkReply(reply)
			}
			if err == nil {
				return reply, nil
			}
			triggeredBy := DefaultTriggeredBy
			if addrs := ownAddresses(); len(addrs) > 0 {
				triggeredBy = addrs[0]
			}
			return toReject(ctx, err, triggeredBy), nil
		}),
	}
}

func checkReply(reply ilp.Reply) error {
	switch r := reply.(type) {
	case *ilp.Fulfill:
		if r != nil {
			return nil
		}
	case *ilp.Reject:
		if r != nil {
			return nil
		}
	}
	return serrors.New("handler returned neither fulfill nor reject")
}

func toReject(ctx context.Context, err error, triggeredBy string) *ilp.Reject {
	logger := log.FromCtx(ctx)
	var ilpErr *ilp.Error
	switch {
	case errors.As(err, &ilpErr):
		logger.Info("Rejecting packet", "code", ilpErr.Code, "err", err)
		return ilpErr.Reject(triggeredBy)
	case serrors.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded):
		logger.Info("Packet timed out", "err", err)
		return ilp.TransferTimedOutError("transfer timed out.").Reject(triggeredBy)
	default:
		logger.Error("Unexpected error while processing packet", "err", err)
		return ilp.InternalError("unexpected internal error.").Reject(triggeredBy)
	}
}
