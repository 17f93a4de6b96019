package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jsphweid/chordmidi/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutThenGet(t *testing.T) {
	c, err := OpenInMemory()
	require.NoError(t, err)
	defer c.Close()

	key := Key([]byte("audio"), 42)
	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	entry := Entry{Labels: model.ChordSequence{"C:maj", "C:maj", "N"}, Hop: 0.1}
	require.NoError(t, c.Put(key, entry))

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestKeyDependsOnAudioAndSettings(t *testing.T) {
	a := Key([]byte("audio"), 1)
	assert.Len(t, a, 16)
	assert.Equal(t, a, Key([]byte("audio"), 1))
	assert.NotEqual(t, a, Key([]byte("audio"), 2))
	assert.NotEqual(t, a, Key([]byte("other"), 1))
}

func TestKeyForFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0644))
	key, err := KeyForFile(path, 7)
	require.NoError(t, err)
	assert.Equal(t, Key([]byte("audio"), 7), key)

	_, err = KeyForFile(filepath.Join(t.TempDir(), "missing.wav"), 7)
	assert.Error(t, err)
}

func TestPersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)
	key := Key([]byte("song"), 3)
	require.NoError(t, c.Put(key, Entry{Labels: model.ChordSequence{"A:min"}, Hop: 0.05}))
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()
	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.ChordSequence{"A:min"}, got.Labels)
}
