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

package db_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpnet/connector/pkg/private/xtest"
	"github.com/ilpnet/connector/private/storage/db"
)

const schema = `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL);`

func TestSetup(t *testing.T) {
	path := xtest.TempFileName(t, ".db")
	d, err := db.NewSqlite(path, nil)
	require.NoError(t, err)
	require.NoError(t, d.Setup(schema, 1))
	_, err = d.Full.Exec(`INSERT INTO kv (k, v) VALUES ('a', 'b')`)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = db.NewSqlite(path, nil)
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Setup(schema, 1), "same version is accepted")
	assert.Error(t, d.Setup(schema, 2), "version mismatch")
}

func TestRejectsAmbiguousMemory(t *testing.T) {
	_, err := db.NewSqlite(":memory:", nil)
	assert.Error(t, err)
}

func TestErrorHelpers(t *testing.T) {
	cause := errors.New("cause")
	err := db.NewWriteError("insert", cause, "k", "a")
	assert.ErrorIs(t, err, db.ErrWriteFailed)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, db.NewReadError("select", cause), db.ErrReadFailed)
	assert.ErrorIs(t, db.NewDataError("decode", cause), db.ErrDataInvalid)
	assert.ErrorIs(t, db.NewTxError("begin", cause), db.ErrTx)
	assert.ErrorIs(t, db.NewInputDataError("bad", nil), db.ErrInvalidInputData)
}
