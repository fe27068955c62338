package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// topologyCache stores a local, offline-readable cache of last-seen
// components and connections in SQLite, so `gridctl inspect` has something
// to show without a live RPC round-trip, grounded on the teacher's
// cmd/autonomyctl use of a local SQLite database path for test/cache data.
type topologyCache struct {
	db *sql.DB
}

func openCache(path string) (*topologyCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS components (
		id INTEGER PRIMARY KEY,
		category TEXT NOT NULL,
		seen_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS connections (
		start_id INTEGER NOT NULL,
		end_id INTEGER NOT NULL,
		seen_at DATETIME NOT NULL,
		PRIMARY KEY (start_id, end_id)
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &topologyCache{db: db}, nil
}

func (c *topologyCache) Close() error {
	return c.db.Close()
}

type cachedComponent struct {
	ID       uint64
	Category string
	SeenAt   time.Time
}

type cachedConnection struct {
	Start  uint64
	End    uint64
	SeenAt time.Time
}

// StoreComponents replaces the cached component snapshot.
func (c *topologyCache) StoreComponents(components []cachedComponent) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM components"); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO components (id, category, seen_at) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, comp := range components {
		if _, err := stmt.Exec(comp.ID, comp.Category, comp.SeenAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// StoreConnections replaces the cached connection snapshot.
func (c *topologyCache) StoreConnections(connections []cachedConnection) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM connections"); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO connections (start_id, end_id, seen_at) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, conn := range connections {
		if _, err := stmt.Exec(conn.Start, conn.End, conn.SeenAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Components returns the most recently cached component snapshot.
func (c *topologyCache) Components() ([]cachedComponent, error) {
	rows, err := c.db.Query("SELECT id, category, seen_at FROM components ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cachedComponent
	for rows.Next() {
		var comp cachedComponent
		if err := rows.Scan(&comp.ID, &comp.Category, &comp.SeenAt); err != nil {
			return nil, err
		}
		out = append(out, comp)
	}
	return out, rows.Err()
}

// Connections returns the most recently cached connection snapshot.
func (c *topologyCache) Connections() ([]cachedConnection, error) {
	rows, err := c.db.Query("SELECT start_id, end_id, seen_at FROM connections ORDER BY start_id, end_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cachedConnection
	for rows.Next() {
		var conn cachedConnection
		if err := rows.Scan(&conn.Start, &conn.End, &conn.SeenAt); err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, rows.Err()
}
