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

package config

const idSample = "connector-1"

const connectorSample = `
# The path of the sqlite database holding peers and static routes.
# (default "/var/lib/connector/connector.db")
store = "/var/lib/connector/connector.db"

# The static addresses of the connector. If empty, the address is learned from
# a parent peer via ILDCP. (default [])
own_addresses = ["test.connector"]

# The interval between route broadcasts to a peer. (default 30s)
route_broadcast_interval = "30s"

# The hold down time of advertised routes. (default 45s)
route_expiry = "45s"

# The interval between route control attempts. (default 30s)
route_control_retry = "30s"

# The interval between settlement checks of all accounts. (default 1m)
settlement_sweep_interval = "1m"

# The backoff of settlement engine account registration. (default 5s)
settlement_retry_interval = "5s"

# The timeout of the address discovery with a parent. (default 10s)
ildcp_timeout = "10s"
`

const peersSample = `
# The time reserved for passing a fulfillment back to the previous hop.
# (default 1s)
min_message_window = "1s"

# The longest time a forwarded packet is held. (default 30s)
max_hold_window = "30s"

# The refill period of the packet rate limit of peers without one. (default 1m)
rate_limit_period = "1m"

# The number of packets per refill period. (default 10000)
rate_limit_count = 10000
`
