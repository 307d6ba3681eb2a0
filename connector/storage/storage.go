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

// Package storage persists the peers and static routes of the connector in a
// sqlite database. The connector reads a snapshot at startup; packet
// processing never touches the database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/ilpnet/connector/connector/peer"
	"github.com/ilpnet/connector/private/storage/db"
)

const (
	// SchemaVersion is the version of the SQLite schema understood by this
	// backend. Whenever changes to the schema are made, this version number
	// should be increased to prevent data corruption between incompatible
	// database schemas.
	SchemaVersion = 1
	// Schema is the SQLite database layout.
	Schema = `CREATE TABLE Peers (
		ID TEXT NOT NULL,
		Info TEXT NOT NULL,
		PRIMARY KEY (ID)
	);

	CREATE TABLE Routes (
		Prefix TEXT NOT NULL,
		PeerID TEXT NOT NULL,
		Path TEXT NOT NULL,
		Weight INTEGER NOT NULL,
		PRIMARY KEY (Prefix, PeerID),
		FOREIGN KEY (PeerID) REFERENCES Peers(ID) ON DELETE CASCADE
	);`
)

// Route is a static route.
type Route struct {
	Prefix string
	PeerID string
	Path   []string
	// Weight zero selects the weight of the peer.
	Weight int
}

// DB is the peer and route store.
type DB struct {
	db *db.Sqlite
}

// New opens the store at path, creating the schema if needed.
func New(path string, cfg *db.SqliteConfig) (*DB, error) {
	s, err := db.NewSqlite(path, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Setup(Schema, SchemaVersion); err != nil {
		s.Close()
		return nil, err
	}
	return &DB{db: s}, nil
}

// InsertPeer stores info, replacing a stored peer with the same id.
func (d *DB) InsertPeer(ctx context.Context, info peer.Info) error {
	if err := info.Validate(); err != nil {
		return db.NewInputDataError("invalid peer", err, "id", info.ID)
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return db.NewInputDataError("encoding peer", err, "id", info.ID)
	}
	query := `INSERT INTO Peers (ID, Info) VALUES (?, ?)
		ON CONFLICT(ID) DO UPDATE SET Info = excluded.Info`
	if _, err := d.db.Full.ExecContext(ctx, query, info.ID, string(raw)); err != nil {
		return db.NewWriteError("inserting peer", err, "id", info.ID)
	}
	return nil
}

// DeletePeer removes the peer and its routes. It reports whether the peer
// existed.
func (d *DB) DeletePeer(ctx context.Context, id string) (bool, error) {
	res, err := d.db.Full.ExecContext(ctx, `DELETE FROM Peers WHERE ID = ?`, id)
	if err != nil {
		return false, db.NewWriteError("deleting peer", err, "id", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, db.NewWriteError("deleting peer", err, "id", id)
	}
	return n > 0, nil
}

// Peers returns all stored peers ordered by id.
func (d *DB) Peers(ctx context.Context) ([]peer.Info, error) {
	rows, err := d.db.ReadOnly.QueryContext(ctx, `SELECT ID, Info FROM Peers ORDER BY ID`)
	if err != nil {
		return nil, db.NewReadError("listing peers", err)
	}
	defer rows.Close()
	var infos []peer.Info
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, db.NewReadError("scanning peer", err)
		}
		var info peer.Info
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, db.NewDataError("decoding peer", err, "id", id)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, db.NewReadError("listing peers", err)
	}
	return infos, nil
}

// InsertRoute stores a static route of a stored peer.
func (d *DB) InsertRoute(ctx context.Context, r Route) error {
	if r.Path == nil {
		r.Path = []string{}
	}
	path, err := json.Marshal(r.Path)
	if err != nil {
		return db.NewInputDataError("encoding path", err, "prefix", r.Prefix)
	}
	query := `INSERT INTO Routes (Prefix, PeerID, Path, Weight) VALUES (?, ?, ?, ?)
		ON CONFLICT(Prefix, PeerID) DO UPDATE SET Path = excluded.Path, Weight = excluded.Weight`
	_, err = d.db.Full.ExecContext(ctx, query, r.Prefix, r.PeerID, string(path), r.Weight)
	if err != nil {
		return db.NewWriteError("inserting route", err, "prefix", r.Prefix, "peer", r.PeerID)
	}
	return nil
}

// DeleteRoute removes a static route.
func (d *DB) DeleteRoute(ctx context.Context, prefix, peerID string) error {
	_, err := d.db.Full.ExecContext(ctx,
		`DELETE FROM Routes WHERE Prefix = ? AND PeerID = ?`, prefix, peerID)
	if err != nil {
		return db.NewWriteError("deleting route", err, "prefix", prefix, "peer", peerID)
	}
	return nil
}

// Routes returns all stored routes ordered by prefix and peer.
func (d *DB) Routes(ctx context.Context) ([]Route, error) {
	rows, err := d.db.ReadOnly.QueryContext(ctx,
		`SELECT Prefix, PeerID, Path, Weight FROM Routes ORDER BY Prefix, PeerID`)
	if err != nil {
		return nil, db.NewReadError("listing routes", err)
	}
	defer rows.Close()
	var routes []Route
	for rows.Next() {
		var r Route
		var path string
		var weight sql.NullInt64
		if err := rows.Scan(&r.Prefix, &r.PeerID, &path, &weight); err != nil {
			return nil, db.NewReadError("scanning route", err)
		}
		if err := json.Unmarshal([]byte(path), &r.Path); err != nil {
			return nil, db.NewDataError("decoding path", err, "prefix", r.Prefix)
		}
		r.Weight = int(weight.Int64)
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, db.NewReadError("listing routes", err)
	}
	return routes, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}
