package spell

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "spell:"

// BadgerCache persists spell results across restarts.
type BadgerCache struct {
	db *badger.DB
}

// BadgerCacheOptions configures a BadgerCache.
type BadgerCacheOptions struct {
	// Dir holds the badger data files. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in memory, for tests.
	InMemory bool
}

// OpenBadgerCache opens or creates a persistent cache.
func OpenBadgerCache(opts BadgerCacheOptions) (*BadgerCache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("spell: cache directory is required")
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open spell cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// Get reads word from the database. Read failures count as a miss.
func (c *BadgerCache) Get(word string) (Result, bool) {
	var r Result
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + word))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("spell cache read failed", "word", word, "error", err)
		}
		return Result{}, false
	}
	return r, true
}

// Put writes r under word. Write failures are logged and dropped.
func (c *BadgerCache) Put(word string, r Result) {
	val, err := json.Marshal(r)
	if err != nil {
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+word), val)
	})
	if err != nil {
		slog.Warn("spell cache write failed", "word", word, "error", err)
	}
}

// Close flushes and closes the underlying database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// badgerLogger routes badger output to slog, dropping info and debug chatter.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{}) {
	slog.Error(fmt.Sprintf("badger: "+f, v...))
}

func (badgerLogger) Warningf(f string, v ...interface{}) {
	slog.Warn(fmt.Sprintf("badger: "+f, v...))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
