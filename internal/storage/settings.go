package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetSetting returns the stored value for key; ok is false when it was never set.
func (db *DB) GetSetting(key string) (value string, ok bool, err error) {
	err = db.conn.QueryRow(db.rebind(`SELECT setting_value FROM app_settings WHERE setting_key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting inserts or overwrites key.
func (db *DB) SetSetting(key, value string) error {
	query := `INSERT INTO app_settings (setting_key, setting_value) VALUES (?, ?)
		 ON CONFLICT(setting_key) DO UPDATE SET setting_value = excluded.setting_value`
	if db.driver == DriverMySQL {
		query = `INSERT INTO app_settings (setting_key, setting_value) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value)`
	}
	if _, err := db.conn.Exec(db.rebind(query), key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
