package db

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS asset_pairs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    base_asset_id TEXT NOT NULL DEFAULT '',
    quoting_asset_id TEXT NOT NULL DEFAULT '',
    accuracy INTEGER NOT NULL DEFAULT 0,
    inverted_accuracy INTEGER NOT NULL DEFAULT 0,
    is_disabled INTEGER NOT NULL DEFAULT 0,
    segment TEXT NOT NULL DEFAULT 'Spot'
)`,
	// ts is unix milliseconds, price is a decimal string.
	`CREATE TABLE IF NOT EXISTS feed_history (
    asset_pair_id TEXT NOT NULL,
    price_type TEXT NOT NULL,
    ts BIGINT NOT NULL,
    price TEXT NOT NULL,
    PRIMARY KEY (asset_pair_id, price_type, ts)
)`,
}

// ApplyMigrations bootstraps the schema; keep lightweight for fast startup.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return errors.New("database is not initialized")
	}
	if d.Driver == DriverSQLite {
		if _, err := d.DB.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			return errors.Wrap(err, "set journal mode")
		}
	}
	for _, stmt := range schema {
		if _, err := d.DB.Exec(stmt); err != nil {
			return errors.Wrap(err, "apply schema")
		}
	}

	// Older files predate market segments.
	if err := ensureColumn(d, "asset_pairs", "segment", "TEXT NOT NULL DEFAULT 'Spot'"); err != nil {
		return err
	}
	return nil
}

// ensureColumn adds a column if it does not already exist.
func ensureColumn(d *Database, table, column, definition string) error {
	exists, err := columnExists(d, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := d.DB.Exec(alter); err != nil {
		return errors.Wrapf(err, "alter table %s add column %s", table, column)
	}
	return nil
}

func columnExists(d *Database, table, column string) (bool, error) {
	if d.Driver == DriverPostgres {
		var n int
		err := d.DB.QueryRow(
			`SELECT COUNT(*) FROM information_schema.columns WHERE table_name = $1 AND column_name = $2`,
			table, column,
		).Scan(&n)
		if err != nil {
			return false, errors.Wrapf(err, "inspect columns of %s", table)
		}
		return n > 0, nil
	}

	rows, err := d.DB.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, errors.Wrapf(err, "pragma table_info(%s)", table)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
