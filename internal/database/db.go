// Package database provides SQLite connection setup for the screener's
// data stores.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Profile selects the PRAGMA set for a database
type Profile string

const (
	// ProfileStandard is the balanced configuration for durable data
	// (universe, history, screen runs).
	ProfileStandard Profile = "standard"
	// ProfileCache favors speed for ephemeral data (result cache).
	ProfileCache Profile = "cache"
)

// Config holds database configuration
type Config struct {
	Path    string
	Profile Profile
	Name    string // Friendly name for logging
}

// DB wraps a configured SQLite connection
type DB struct {
	conn    *sql.DB
	path    string
	profile Profile
	name    string
}

// New opens a SQLite database with the profile's PRAGMAs applied
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", connectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	// modernc's driver serializes writes; one writer connection keeps
	// SQLITE_BUSY out of the hot path.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{
		conn:    conn,
		path:    cfg.Path,
		profile: cfg.Profile,
		name:    cfg.Name,
	}, nil
}

// connectionString builds the DSN with the profile's PRAGMAs
func connectionString(path string, profile Profile) string {
	pragmas := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
	}
	switch profile {
	case ProfileCache:
		pragmas = append(pragmas,
			"_pragma=journal_mode(MEMORY)",
			"_pragma=synchronous(OFF)",
		)
	default:
		pragmas = append(pragmas,
			"_pragma=journal_mode(WAL)",
			"_pragma=synchronous(NORMAL)",
		)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(pragmas, "&")
}

// Conn returns the underlying sql.DB
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Path returns the on-disk path of the database
func (d *DB) Path() string {
	return d.path
}

// Name returns the friendly name of the database
func (d *DB) Name() string {
	return d.name
}

// Close closes the connection
func (d *DB) Close() error {
	return d.conn.Close()
}
