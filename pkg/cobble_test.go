package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cobble/pkg/config"
	"cobble/pkg/db"
)

func TestOpen(t *testing.T) {
	d, err := Open(t.TempDir(), db.WithCapacity(3))
	require.NoError(t, err)

	var rw ReadWriterCloser = d
	require.NoError(t, rw.Set("a", "x"))

	var v string
	require.NoError(t, rw.Get("a", &v))
	assert.Equal(t, "x", v)
	assert.ErrorIs(t, rw.Get("z", &v), db.ErrKeyNotFound)

	require.NoError(t, rw.Clear())
	assert.ErrorIs(t, rw.Get("a", &v), db.ErrKeyNotFound)
	assert.NoError(t, rw.Close())
}

func TestOpenConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Capacity = 3
	cfg.LogLevel = "error"

	d, err := OpenConfig(cfg)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, cfg.Dir, d.Dir())
	assert.Equal(t, 3, d.Stats().Capacity)
}

func TestOpenConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = ""
	_, err := OpenConfig(cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
