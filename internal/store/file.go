package store

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pursuit-rl-go/internal/engine"
)

const (
	MagicHeader string = "PQTB"
	Version1    uint32 = 1

	// maxValues bounds the allocation a damaged header can request.
	maxValues = 1 << 28
)

// FileHeader is the fixed-size prefix of a table file, followed by
// police*thief*actions little-endian float64 values.
type FileHeader struct {
	Magic   [4]byte
	Version uint32
	Police  uint32
	Thief   uint32
	Actions uint32
}

// FileStore keeps the table in a single binary file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(ctx context.Context) (*engine.QTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &engine.PersistenceError{Op: "open " + s.Path, Err: err}
	}
	defer f.Close()

	table, err := ReadTable(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return table, nil
}

// Save writes to a temporary file in the same directory and renames it over
// Path, so readers see either the old or the new table.
func (s *FileStore) Save(ctx context.Context, table *engine.QTable) error {
	if err := ctx.Err(); err != nil {
		return &engine.PersistenceError{Op: "save", Err: err}
	}
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return &engine.PersistenceError{Op: "create temp file", Err: err}
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := WriteTable(w, table); err != nil {
		tmp.Close()
		return &engine.PersistenceError{Op: "write table", Err: err}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return &engine.PersistenceError{Op: "flush table", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &engine.PersistenceError{Op: "close temp file", Err: err}
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return &engine.PersistenceError{Op: "rename " + s.Path, Err: err}
	}
	return nil
}

// WriteTable encodes table in the PQTB format.
func WriteTable(w io.Writer, table *engine.QTable) error {
	snapshot := table.Clone()
	police, thief, actions := snapshot.Dims()
	header := FileHeader{
		Version: Version1,
		Police:  uint32(police),
		Thief:   uint32(thief),
		Actions: uint32(actions),
	}
	copy(header.Magic[:], MagicHeader)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, snapshot.Data()); err != nil {
		return fmt.Errorf("failed to write values: %w", err)
	}
	return nil
}

// ReadTable decodes a PQTB stream. Any structural problem wraps ErrCorrupt.
func ReadTable(r io.Reader) (*engine.QTable, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if string(header.Magic[:]) != MagicHeader {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, header.Magic[:])
	}
	if header.Version != Version1 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}
	n := uint64(header.Police) * uint64(header.Thief) * uint64(header.Actions)
	if n == 0 || n > maxValues {
		return nil, fmt.Errorf("%w: implausible dimensions %dx%dx%d", ErrCorrupt, header.Police, header.Thief, header.Actions)
	}
	data := make([]float64, n)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("%w: values: %v", ErrCorrupt, err)
	}
	table, err := engine.QTableFromData(int(header.Police), int(header.Thief), int(header.Actions), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return table, nil
}
