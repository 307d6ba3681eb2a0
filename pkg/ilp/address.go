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
	"regexp"
	"strings"
)

// MaxAddressLength is the maximum length of an ILP address.
const MaxAddressLength = 1023

var addressPattern = regexp.MustCompile(
	`^(g|private|example|peer|self|test[1-3]?|local)([.][a-zA-Z0-9_~-]+)+$`)

// ValidAddress reports whether addr is a well formed ILP address.
func ValidAddress(addr string) bool {
	return len(addr) <= MaxAddressLength && addressPattern.MatchString(addr)
}

// AddressHasPrefix reports whether prefix is a dot-segment aligned prefix of
// addr. The empty prefix matches every address.
func AddressHasPrefix(addr, prefix string) bool {
	if prefix == "" || addr == prefix {
		return true
	}
	return strings.HasPrefix(addr, prefix+".")
}
