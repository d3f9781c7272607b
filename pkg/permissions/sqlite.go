package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS permissions (
	user_id INTEGER PRIMARY KEY,
	flags   INTEGER NOT NULL
)`

// SQLiteBackend persists permissions in a SQLite database file.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open permissions db %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases consistent and matches
	// the Store's own serialization.
	db.SetMaxOpenConns(1)
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Init(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create permissions table: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Get(ctx context.Context, id UserID) (Permission, bool, error) {
	var flags uint32
	err := b.db.QueryRowContext(ctx,
		"SELECT flags FROM permissions WHERE user_id = ?", int64(id),
	).Scan(&flags)
	if errors.Is(err, sql.ErrNoRows) {
		return None, false, nil
	}
	if err != nil {
		return None, false, err
	}
	return Permission(flags).Truncate(), true, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, id UserID, perm Permission) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO permissions (user_id, flags) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET flags = excluded.flags`,
		int64(id), uint32(perm),
	)
	return err
}

func (b *SQLiteBackend) Delete(ctx context.Context, id UserID) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM permissions WHERE user_id = ?", int64(id))
	return err
}

func (b *SQLiteBackend) All(ctx context.Context) (Map, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT user_id, flags FROM permissions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(Map)
	for rows.Next() {
		var (
			id    int64
			flags uint32
		)
		if err := rows.Scan(&id, &flags); err != nil {
			return nil, err
		}
		m[UserID(id)] = Permission(flags).Truncate()
	}
	return m, rows.Err()
}

func (b *SQLiteBackend) Clear(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM permissions")
	return err
}

func (b *SQLiteBackend) Replace(ctx context.Context, m Map) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM permissions"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO permissions (user_id, flags) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, perm := range m {
		if _, err := stmt.ExecContext(ctx, int64(id), uint32(perm)); err != nil {
			return fmt.Errorf("insert user %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
