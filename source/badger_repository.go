package source

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/sardine-ai/go-widget-config/model"
)

// BadgerRepository stores channel blobs in an embedded Badger database,
// keyed by the channel's storage key.
type BadgerRepository struct {
	Name string // Name of the configuration source
	db   *badger.DB
}

// OpenBadgerRepository opens the database in dir. An empty dir opens an
// in-memory database.
func OpenBadgerRepository(name, dir string) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerRepository{Name: name, db: db}, nil
}

// GetName returns the name of the configuration source.
func (b *BadgerRepository) GetName() string {
	return b.Name
}

func (b *BadgerRepository) Read(_ context.Context, channel model.Channel) (string, error) {
	var blob string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(channel.Key()))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			blob = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	return blob, err
}

func (b *BadgerRepository) Write(_ context.Context, channel model.Channel, blob string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(channel.Key()), []byte(blob))
	})
}

func (b *BadgerRepository) Delete(_ context.Context, channel model.Channel) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(channel.Key()))
	})
}

func (b *BadgerRepository) Close() error { return b.db.Close() }
