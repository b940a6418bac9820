// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"fmt"

	"github.com/danielhkuo/affect-exp/db"
)

// TypeMemory selects the in-process store.
const TypeMemory = "memory"

// Open returns a ready Store for the configured database type, creating
// the schema for SQL backends.
func Open(dbType, url string) (Store, error) {
	if dbType == TypeMemory {
		return NewMemStore(), nil
	}

	conn, err := db.Open(dbType, url)
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return NewSQLStore(conn), nil
}
