package braille

import (
	"bytes"
	_ "embed"
	"sync"
)

//go:embed data/tamil.json
var defaultTableJSON []byte

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// DefaultTable returns the embedded Bharati Braille Tamil table.
func DefaultTable() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = LoadTable(bytes.NewReader(defaultTableJSON))
	})
	return defaultTable, defaultErr
}

// DefaultTableJSON returns a copy of the embedded asset.
func DefaultTableJSON() []byte {
	return append([]byte(nil), defaultTableJSON...)
}

// LoadTableOrDefault loads path, or the embedded table when path is empty.
func LoadTableOrDefault(path string) (*Table, error) {
	if path == "" {
		return DefaultTable()
	}
	return LoadTableFile(path)
}
