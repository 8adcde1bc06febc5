package permissions

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteBackend persists store state in a SQLite database. Saves replace
// the full state in one transaction, which keeps the on-disk shape simple
// for a table this small.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at dbPath.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open permissions database: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.init(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS admins (identity TEXT PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS grants (
			identity TEXT NOT NULL,
			machine TEXT NOT NULL,
			level INTEGER NOT NULL,
			PRIMARY KEY (identity, machine)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize permissions schema: %w", err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Load() (Snapshot, error) {
	var snap Snapshot

	rows, err := b.db.Query("SELECT identity FROM admins ORDER BY identity")
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return snap, err
		}
		snap.Admins = append(snap.Admins, id)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	grantRows, err := b.db.Query("SELECT identity, machine, level FROM grants ORDER BY identity, machine")
	if err != nil {
		return snap, err
	}
	defer grantRows.Close()
	for grantRows.Next() {
		var g Grant
		var level int
		if err := grantRows.Scan(&g.Identity, &g.Machine, &level); err != nil {
			return snap, err
		}
		g.Level = Level(level)
		snap.Grants = append(snap.Grants, g)
	}
	return snap, grantRows.Err()
}

func (b *SQLiteBackend) Save(snap Snapshot) error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM admins"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM grants"); err != nil {
		return err
	}
	for _, id := range snap.Admins {
		if _, err := tx.Exec("INSERT INTO admins (identity) VALUES (?)", id); err != nil {
			return err
		}
	}
	for _, g := range snap.Grants {
		if _, err := tx.Exec(
			"INSERT INTO grants (identity, machine, level) VALUES (?, ?, ?)",
			g.Identity, g.Machine, int(g.Level),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
