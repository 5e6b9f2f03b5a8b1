package braille

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"unicode/utf8"
)

// MaxKeyLength is the longest grapheme sequence, in code points, a table key may hold.
const MaxKeyLength = 4

var (
	// ErrMalformedTable indicates the asset is not a JSON object of dot arrays.
	ErrMalformedTable = errors.New("braille: malformed mapping table")
	// ErrDuplicateKey indicates the asset defines the same key twice.
	ErrDuplicateKey = errors.New("braille: duplicate mapping key")
	// ErrInvalidKey indicates an empty key, a key above MaxKeyLength, or invalid UTF-8.
	ErrInvalidKey = errors.New("braille: invalid mapping key")
	// ErrEmptyEntry indicates a key mapped to zero cells.
	ErrEmptyEntry = errors.New("braille: mapping entry has no cells")
	// ErrInvalidDot indicates a dot index outside 1..8 or repeated within a cell.
	ErrInvalidDot = errors.New("braille: invalid dot index")
)

// TableError reports the key that failed validation.
type TableError struct {
	Key string
	Err error
}

func (e *TableError) Error() string {
	if e == nil {
		return ""
	}
	if e.Key == "" {
		return fmt.Sprintf("mapping table: %v", e.Err)
	}
	return fmt.Sprintf("mapping table: key %q: %v", e.Key, e.Err)
}

func (e *TableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Table is the immutable grapheme mapping table. It is safe for concurrent use.
type Table struct {
	entries   map[string]Sequence
	maxKeyLen int
}

// NewTable validates entries and builds a table. It suits fixtures and callers
// that already hold decoded data; LoadTable additionally catches duplicate keys.
func NewTable(entries map[string][][]int) (*Table, error) {
	t := &Table{entries: make(map[string]Sequence, len(entries))}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := t.add(key, entries[key]); err != nil {
			return nil, err
		}
	}
	if len(t.entries) == 0 {
		return nil, &TableError{Err: fmt.Errorf("%w: no entries", ErrMalformedTable)}
	}
	return t, nil
}

// LoadTable decodes a JSON object mapping keys to arrays of dot-index arrays.
func LoadTable(r io.Reader) (*Table, error) {
	if r == nil {
		return nil, &TableError{Err: fmt.Errorf("%w: nil reader", ErrMalformedTable)}
	}
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, &TableError{Err: fmt.Errorf("%w: %v", ErrMalformedTable, err)}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &TableError{Err: fmt.Errorf("%w: expected object", ErrMalformedTable)}
	}

	t := &Table{entries: make(map[string]Sequence)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &TableError{Err: fmt.Errorf("%w: %v", ErrMalformedTable, err)}
		}
		key, ok := tok.(string)
		if !ok {
			return nil, &TableError{Err: fmt.Errorf("%w: expected key", ErrMalformedTable)}
		}
		var cells [][]int
		if err := dec.Decode(&cells); err != nil {
			return nil, &TableError{Key: key, Err: fmt.Errorf("%w: %v", ErrMalformedTable, err)}
		}
		if _, exists := t.entries[key]; exists {
			return nil, &TableError{Key: key, Err: ErrDuplicateKey}
		}
		if err := t.add(key, cells); err != nil {
			return nil, err
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, &TableError{Err: fmt.Errorf("%w: %v", ErrMalformedTable, err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &TableError{Err: fmt.Errorf("%w: trailing data", ErrMalformedTable)}
	}
	if len(t.entries) == 0 {
		return nil, &TableError{Err: fmt.Errorf("%w: no entries", ErrMalformedTable)}
	}
	return t, nil
}

// LoadTableFile loads a mapping table from disk.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

func (t *Table) add(key string, cells [][]int) error {
	n := utf8.RuneCountInString(key)
	if n == 0 || n > MaxKeyLength || !utf8.ValidString(key) {
		return &TableError{Key: key, Err: ErrInvalidKey}
	}
	if len(cells) == 0 {
		return &TableError{Key: key, Err: ErrEmptyEntry}
	}
	seq, err := SequenceFromDots(cells)
	if err != nil {
		return &TableError{Key: key, Err: err}
	}
	t.entries[key] = seq
	if n > t.maxKeyLen {
		t.maxKeyLen = n
	}
	return nil
}

// Lookup returns a copy of the cells mapped to key.
func (t *Table) Lookup(key string) (Sequence, bool) {
	if t == nil {
		return nil, false
	}
	seq, ok := t.entries[key]
	if !ok {
		return nil, false
	}
	return append(Sequence(nil), seq...), true
}

// Len reports the number of keys.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// MaxKeyLength reports the longest key, in code points.
func (t *Table) MaxKeyLength() int {
	if t == nil {
		return 0
	}
	return t.maxKeyLen
}

// Keys returns every key in sorted order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
