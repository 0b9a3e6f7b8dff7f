// Package storage holds the console's durable client-side key/value storage.
package storage

import (
	"fmt"
)

// Keys used by the session store.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// KV is a small durable key/value store. Get reports ok=false for missing keys.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	// Set writes all entries together.
	Set(entries map[string]string) error
	// Delete removes all keys together. Missing keys are ignored.
	Delete(keys ...string) error
}

// Open returns the KV implementation selected by driver.
func Open(driver, path string) (KV, error) {
	switch driver {
	case "file", "":
		return NewFile(path), nil
	case "sqlite":
		return NewSQLite(path)
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
