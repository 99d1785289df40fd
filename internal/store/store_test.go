package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pursuit-rl-go/internal/engine"
)

func sampleTable() *engine.QTable {
	table := engine.NewQTable(3, 3, engine.NumActions)
	for i := range table.Data() {
		table.Data()[i] = float64(i) * 0.5
	}
	table.Data()[7] = -12.25
	return table
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "q.bin"))
	original := sampleTable()

	require.NoError(t, s.Save(ctx, original))
	loaded, err := s.Load(ctx)
	require.NoError(t, err)

	p, th, a := loaded.Dims()
	assert.Equal(t, []int{3, 3, 4}, []int{p, th, a})
	assert.Equal(t, original.Data(), loaded.Data())
}

func TestFileStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "q.bin"))
	require.NoError(t, s.Save(ctx, engine.NewQTable(2, 2, 4)))
	require.NoError(t, s.Save(ctx, sampleTable()))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	p, _, _ := loaded.Dims()
	assert.Equal(t, 3, p)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStoreMissing(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "absent.bin")).Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreSaveFailure(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "no", "such", "dir", "q.bin"))
	table := sampleTable()
	err := s.Save(context.Background(), table)

	var perr *engine.PersistenceError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, -12.25, table.Data()[7], "in-memory table must survive a failed save")
}

func TestReadTableRejectsCorruption(t *testing.T) {
	var good bytes.Buffer
	require.NoError(t, WriteTable(&good, sampleTable()))
	raw := good.Bytes()

	badMagic := append([]byte("XXXX"), raw[4:]...)

	badVersion := append([]byte(nil), raw...)
	binary.LittleEndian.PutUint32(badVersion[4:8], 9)

	zeroDims := append([]byte(nil), raw...)
	binary.LittleEndian.PutUint32(zeroDims[8:12], 0)

	cases := map[string][]byte{
		"empty":     nil,
		"short":     raw[:10],
		"magic":     badMagic,
		"version":   badVersion,
		"zero dims": zeroDims,
		"truncated": raw[:len(raw)-3],
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadTable(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestWriteTableLayout(t *testing.T) {
	table := engine.NewQTable(1, 1, 4)
	copy(table.Data(), []float64{1, 2, 3, 4})

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, table))
	raw := buf.Bytes()

	require.Len(t, raw, 20+4*8)
	assert.Equal(t, "PQTB", string(raw[:4]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(raw[4:8]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(raw[16:20]))
}

func TestLoadOrNew(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	dims := Dims{Police: 3, Thief: 3, Actions: engine.NumActions}
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		table, err := LoadOrNew(ctx, NewFileStore(filepath.Join(dir, "missing.bin")), dims, logger)
		require.NoError(t, err)
		assert.Equal(t, 0.0, table.Data()[7])
	})

	t.Run("stored", func(t *testing.T) {
		s := NewFileStore(filepath.Join(dir, "stored.bin"))
		require.NoError(t, s.Save(ctx, sampleTable()))
		table, err := LoadOrNew(ctx, s, dims, logger)
		require.NoError(t, err)
		assert.Equal(t, -12.25, table.Data()[7])
	})

	t.Run("corrupt", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.bin")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
		table, err := LoadOrNew(ctx, NewFileStore(path), dims, logger)
		require.NoError(t, err)
		p, _, _ := table.Dims()
		assert.Equal(t, 3, p)
	})

	t.Run("mismatch", func(t *testing.T) {
		s := NewFileStore(filepath.Join(dir, "small.bin"))
		require.NoError(t, s.Save(ctx, engine.NewQTable(2, 2, 4)))
		table, err := LoadOrNew(ctx, s, dims, logger)
		require.NoError(t, err)
		p, th, _ := table.Dims()
		assert.Equal(t, 3, p)
		assert.Equal(t, 3, th)
	})

	t.Run("nil store", func(t *testing.T) {
		table, err := LoadOrNew(ctx, nil, dims, logger)
		require.NoError(t, err)
		assert.Len(t, table.Data(), 36)
	})
}

func TestDimsFor(t *testing.T) {
	layout, err := engine.ParseLayout(engine.DefaultLayout)
	require.NoError(t, err)
	d := DimsFor(engine.NewStateEncoder(layout.Maze))
	open := layout.Maze.OpenCount()
	assert.Equal(t, Dims{Police: open, Thief: open, Actions: 4}, d)
}

// TestPostgresStore runs against a live database when PURSUIT_TEST_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PURSUIT_TEST_DSN")
	if dsn == "" {
		t.Skip("PURSUIT_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn, "store-test")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, sampleTable()))
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleTable().Data(), loaded.Data())

	_, err = NewPostgresStore(s.db, "never-saved").Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}
