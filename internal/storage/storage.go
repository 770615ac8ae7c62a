// Package storage provides the key-value slots a conversation snapshot is
// persisted into.
package storage

import (
	"fmt"
	"strings"
)

// Slot backend names
const (
	KindSQLite = "sqlite"
	KindBolt   = "bolt"
	KindFile   = "file"
	KindMemory = "memory"
)

// Slot is one key-value location. It satisfies conversation.Slot.
type Slot interface {
	Read() ([]byte, bool, error)
	Write(value []byte) error
	Remove() error
	Close() error
}

// Open selects a slot backend by kind. path is the database file for sqlite
// and bolt, the directory for file, and ignored for memory.
func Open(kind, path, key string) (Slot, error) {
	if key == "" {
		return nil, fmt.Errorf("slot key cannot be empty")
	}

	switch strings.ToLower(kind) {
	case KindSQLite, "":
		return OpenSQLite(path, key)
	case KindBolt:
		return OpenBolt(path, key)
	case KindFile:
		return NewFileSlot(path, key)
	case KindMemory:
		return NewMemorySlot(), nil
	default:
		return nil, fmt.Errorf("unknown slot backend: %s", kind)
	}
}
