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

package connector

import (
	"net/url"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/pkg/private/serrors"
)

// ClientFactory builds the transport client of a peer endpoint.
type ClientFactory interface {
	NewClient(endpoint *url.URL) (peer.Client, error)
}

// ClientFactoryFunc adapts a function to the ClientFactory interface.
type ClientFactoryFunc func(endpoint *url.URL) (peer.Client, error)

func (f ClientFactoryFunc) NewClient(endpoint *url.URL) (peer.Client, error) {
	return f(endpoint)
}

// Transports maps endpoint schemes to the factories of their clients.
type Transports map[string]ClientFactory

// NewClient returns the client for endpoint, built by the factory registered
// for its scheme.
func (t Transports) NewClient(endpoint string) (peer.Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, serrors.Wrap("parsing endpoint", err, "endpoint", endpoint)
	}
	f, ok := t[u.Scheme]
	if !ok {
		return nil, serrors.New("no transport for endpoint scheme",
			"scheme", u.Scheme, "endpoint", endpoint)
	}
	return f.NewClient(u)
}
