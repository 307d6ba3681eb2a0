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

// Package db contains the sqlite plumbing shared by the storage backends.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"runtime"
	"strings"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/ilpnet/connector/pkg/private/serrors"
)

// Reader is the read-only subset of *sql.DB.
type Reader interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Stats() sql.DBStats
}

// SqliteConfig allows configuring the sqlite database instance.
type SqliteConfig struct {
	MaxOpenReadConns int
	InMemory         bool
}

// Sqlite holds a write pool limited to a single connection and a read pool.
type Sqlite struct {
	Full     *sql.DB
	ReadOnly Reader
}

// NewSqlite opens the database at path. The write pool is limited to one
// connection to avoid SQLITE_BUSY contention. Transactions are started in
// IMMEDIATE mode so that the busy timeout is respected.
func NewSqlite(path string, cfg *SqliteConfig) (*Sqlite, error) {
	var c SqliteConfig
	if cfg != nil {
		c = *cfg
	}
	if strings.Contains(path, ":memory:") {
		return nil, serrors.New("use explicitly named memory database", "path", path)
	}
	noFile, hasPrefix := strings.CutPrefix(path, "file:")

	params := make(url.Values)
	params.Add("_txlock", "immediate")
	params.Add("_pragma", "busy_timeout(1000)")
	params.Add("_pragma", "foreign_keys(1)")
	if c.InMemory {
		params.Add("mode", "memory")
		params.Add("cache", "shared")
	} else {
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_pragma", "synchronous(NORMAL)")
	}
	connURL := "file:" + noFile + "?" + params.Encode()
	if hasPrefix && strings.Contains(noFile, "?") {
		connURL = path + "&" + params.Encode()
	}

	write, err := sql.Open("sqlite", connURL)
	if err != nil {
		return nil, serrors.Wrap("opening write database", err)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", connURL)
	if err != nil {
		write.Close()
		return nil, serrors.Wrap("opening read database", err)
	}
	if c.MaxOpenReadConns == 0 {
		c.MaxOpenReadConns = max(4, runtime.NumCPU())
	}
	read.SetMaxOpenConns(c.MaxOpenReadConns)
	return &Sqlite{Full: write, ReadOnly: read}, nil
}

// Setup applies schema to an empty database and records schemaVersion in
// PRAGMA user_version. It fails if an existing database has another version.
func (db *Sqlite) Setup(schema string, schemaVersion int) error {
	var existingVersion int
	if err := db.Full.QueryRow("PRAGMA user_version;").Scan(&existingVersion); err != nil {
		return serrors.Wrap("checking database schema version", err)
	}
	switch {
	case existingVersion == 0:
		if _, err := db.Full.Exec(schema); err != nil {
			return serrors.Wrap("applying schema", err)
		}
		_, err := db.Full.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
		if err != nil {
			return serrors.Wrap("writing schema version", err)
		}
		return nil
	case existingVersion != schemaVersion:
		return serrors.New("database schema version mismatch",
			"expected", schemaVersion, "actual", existingVersion)
	default:
		return nil
	}
}

// Close closes both connection pools.
func (db *Sqlite) Close() error {
	var errs serrors.List
	if err := db.Full.Close(); err != nil {
		errs = append(errs, err)
	}
	if c, ok := db.ReadOnly.(*sql.DB); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ToError()
}
