// Package cache stores decoded chord sequences keyed by audio content and
// analysis settings, so a file is only decoded once per model.
package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"os"

	"github.com/OneOfOne/xxhash"
	"github.com/dgraph-io/badger/v3"
	"github.com/jsphweid/chordmidi/model"
	pkgerrors "github.com/pkg/errors"
)

type Entry struct {
	Labels model.ChordSequence
	Hop    float64
}

type Cache struct {
	db *badger.DB
}

func Open(dir string) (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "badger open")
	}
	return &Cache{db: db}, nil
}

func OpenInMemory() (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "badger open")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Key combines a hash of the audio bytes with a fingerprint of everything
// else that affects decoding.
func Key(audio []byte, settings uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key, xxhash.Checksum64(audio))
	binary.BigEndian.PutUint64(key[8:], settings)
	return key
}

func KeyForFile(path string, settings uint64) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read audio for cache key")
	}
	return Key(data, settings), nil
}

// Get reports false when nothing is stored under key.
func (c *Cache) Get(key []byte) (Entry, bool, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, pkgerrors.Wrap(err, "cache get")
	}
	return e, true, nil
}

func (c *Cache) Put(key []byte, e Entry) error {
	buf := new(bytes.Buffer)
	if err := gob.NewEncoder(buf).Encode(e); err != nil {
		return pkgerrors.Wrap(err, "encode cache entry")
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
	return pkgerrors.Wrap(err, "cache put")
}
