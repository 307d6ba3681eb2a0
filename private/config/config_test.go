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

package config_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpnet/connector/pkg/private/xtest"
	"github.com/ilpnet/connector/private/config"
)

type failingValidator struct{}

func (failingValidator) Validate() error { return errors.New("boom") }

type nested struct {
	config.NoDefaulter
	config.NoValidator
	Value string `toml:"value"`
}

func (n *nested) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, "value = \"x\"\n")
}

func (n *nested) ConfigName() string { return "nested" }

func TestValidateAll(t *testing.T) {
	assert.NoError(t, config.ValidateAll(config.NoValidator{}))
	err := config.ValidateAll(config.NoValidator{}, failingValidator{})
	assert.ErrorContains(t, err, "boom")
}

func TestWriteSample(t *testing.T) {
	var buf bytes.Buffer
	config.WriteSample(&buf, nil, nil, &nested{})
	assert.Equal(t, "\n[nested]\n    value = \"x\"\n", buf.String())

	var parsed struct {
		Nested nested `toml:"nested"`
	}
	require.NoError(t, config.Decode(buf.Bytes(), &parsed))
	assert.Equal(t, "x", parsed.Nested.Value)
}

func TestDecodeRejectsUnknown(t *testing.T) {
	var parsed struct {
		Value string `toml:"value"`
	}
	assert.Error(t, config.Decode([]byte("other = 1\n"), &parsed))
}

func TestLoadFile(t *testing.T) {
	file := xtest.MustWriteFile(t, "cfg.toml", []byte("value = \"y\"\n"))
	var parsed struct {
		Value string `toml:"value"`
	}
	require.NoError(t, config.LoadFile(file, &parsed))
	assert.Equal(t, "y", parsed.Value)
	assert.Error(t, config.LoadFile(file+".missing", &parsed))
}

func TestPathExtend(t *testing.T) {
	p := config.Path{"a"}
	q := p.Extend("b")
	assert.Equal(t, config.Path{"a"}, p)
	assert.Equal(t, config.Path{"a", "b"}, q)
}
