package attestation

import (
	"errors"
	"fmt"
	"os"

	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var storedVaaTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "connect_store_total_vaas",
		Help: "Total number of signed VAAs added to the local cache",
	})

var ErrVAANotFound = errors.New("requested VAA not found in store")

// Store is a local cache of signed VAAs. A signed VAA never changes once quorum is reached, so entries never expire.
type Store struct {
	db *badger.DB
}

// OpenStore opens (creating if needed) a store in dir.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create vaa cache directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open vaa cache: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemoryStore opens a store that is discarded on Close.
func OpenInMemoryStore() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the raw bytes of a signed VAA.
func (s *Store) Put(v *vaa.VAA, raw []byte) error {
	if len(v.Signatures) == 0 {
		return errors.New("refusing to cache an unsigned VAA")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MessageIDFromVAA(v).Bytes(), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	storedVaaTotal.Inc()
	return nil
}

// Get returns the raw bytes of a cached VAA, or ErrVAANotFound.
func (s *Store) Get(id MessageID) (b []byte, err error) {
	if err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(id.Bytes())
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrVAANotFound
		}
		return nil, err
	}
	return b, nil
}
