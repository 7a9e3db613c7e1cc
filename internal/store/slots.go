package store

import (
	"database/sql"
	"errors"
	"time"
)

// GetSlot returns the stored value for name. ok is false when the slot is empty.
func (db *DB) GetSlot(name string) (value string, ok bool, err error) {
	err = db.QueryRow(`SELECT value FROM slots WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// PutSlot overwrites the slot.
func (db *DB) PutSlot(name, value string) error {
	_, err := db.Exec(`
		INSERT INTO slots (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UnixMilli())
	return err
}

// DeleteSlots removes the named slots. Missing slots are ignored.
func (db *DB) DeleteSlots(names ...string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := tx.Exec(`DELETE FROM slots WHERE name = ?`, name); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
