package database

import (
	"database/sql"
	"errors"
	"strconv"
)

const ConfigRegistrationEnabled = "registration_enabled"

// GetConfigValue retrieves a configuration value from the config table
func (db *Database) GetConfigValue(key string) (string, error) {
	var value string
	err := db.queryRowScan(`SELECT value FROM config WHERE key = ?`, []interface{}{key}, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil // Return empty string for missing keys
		}
		return "", err
	}
	return value, nil
}

// SetConfigValue sets or updates a configuration value in the config table
func (db *Database) SetConfigValue(key, value string) error {
	_, err := db.exec(`INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetConfigBool retrieves a boolean configuration value; missing keys yield def
func (db *Database) GetConfigBool(key string, def bool) (bool, error) {
	value, err := db.GetConfigValue(key)
	if err != nil || value == "" {
		return def, err
	}
	b, perr := strconv.ParseBool(value)
	if perr != nil {
		return def, nil
	}
	return b, nil
}

// SetConfigBool sets a boolean configuration value
func (db *Database) SetConfigBool(key string, value bool) error {
	return db.SetConfigValue(key, strconv.FormatBool(value))
}

// IsRegistrationEnabled checks if user registration is enabled
func (db *Database) IsRegistrationEnabled() (bool, error) {
	return db.GetConfigBool(ConfigRegistrationEnabled, true)
}

// SetRegistrationEnabled switches the signup page on or off
func (db *Database) SetRegistrationEnabled(enabled bool) error {
	return db.SetConfigBool(ConfigRegistrationEnabled, enabled)
}
