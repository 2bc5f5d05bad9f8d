// Package checkpoint persists simulator snapshots in a Badger key-value
// store so that long runs can be resumed.
//
// Key format:   checkpoint:<len(run)>:<run>:<step, 16 digits>
// Value format: [4-byte CRC32][gob-encoded sim.State]
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/lattice-sim/lattice-sim/sim"
)

var (
	// ErrNotFound is returned when a run has no matching checkpoint.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrCorrupted is returned when a stored checkpoint fails its checksum.
	ErrCorrupted = errors.New("checkpoint corrupted")
)

// Config configures the store.
type Config struct {
	Path       string // directory, required unless InMemory
	InMemory   bool
	SyncWrites bool
	Keep       int // checkpoints retained per run, 0 keeps all
}

// Store saves and loads simulator states.
type Store struct {
	db   *badger.DB
	keep int
}

// Open opens or creates a store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent checkpoint store")
	}
	if cfg.Keep < 0 {
		return nil, fmt.Errorf("keep must be non-negative, got %d", cfg.Keep)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(logrus.WithField("component", "badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return &Store{db: db, keep: cfg.Keep}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// keyPrefix carries the length of run so that no run's prefix matches the
// keys of another run whose name extends it ("cavity" vs "cavity:fine").
func keyPrefix(run string) []byte {
	return []byte(fmt.Sprintf("checkpoint:%d:%s:", len(run), run))
}

func key(run string, step int) []byte {
	return append(keyPrefix(run), fmt.Sprintf("%016d", step)...)
}

func encode(st *sim.State) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	out := make([]byte, 4+buf.Len())
	binary.BigEndian.PutUint32(out[:4], crc32.ChecksumIEEE(buf.Bytes()))
	copy(out[4:], buf.Bytes())
	return out, nil
}

func decode(data []byte) (*sim.State, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: entry too short", ErrCorrupted)
	}
	stored := binary.BigEndian.Uint32(data[:4])
	computed := crc32.ChecksumIEEE(data[4:])
	if stored != computed {
		return nil, fmt.Errorf("%w: stored=%08x computed=%08x", ErrCorrupted, stored, computed)
	}
	var st sim.State
	if err := gob.NewDecoder(bytes.NewReader(data[4:])).Decode(&st); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return &st, nil
}

// Save stores st under its step and prunes old checkpoints of the run.
func (s *Store) Save(run string, st *sim.State) error {
	data, err := encode(st)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(run, st.Step), data)
	}); err != nil {
		return fmt.Errorf("save checkpoint %s@%d: %w", run, st.Step, err)
	}
	if s.keep > 0 {
		return s.prune(run)
	}
	return nil
}

func (s *Store) prune(run string) error {
	steps, err := s.Steps(run)
	if err != nil {
		return err
	}
	if len(steps) <= s.keep {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, step := range steps[:len(steps)-s.keep] {
			if err := txn.Delete(key(run, step)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns the checkpoint of run at step.
func (s *Store) Load(run string, step int) (*sim.State, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(run, step))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s@%d", ErrNotFound, run, step)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s@%d: %w", run, step, err)
	}
	return decode(data)
}

// Latest returns the checkpoint of run with the highest step.
func (s *Store) Latest(run string) (*sim.State, error) {
	prefix := keyPrefix(run)
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(append([]byte(nil), prefix...), 0xFF))
		if !it.ValidForPrefix(prefix) {
			return badger.ErrKeyNotFound
		}
		var err error
		data, err = it.Item().ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, run)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint of %s: %w", run, err)
	}
	return decode(data)
}

// Steps lists the checkpointed steps of run in ascending order.
func (s *Store) Steps(run string) ([]int, error) {
	prefix := keyPrefix(run)
	var steps []int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var step int
			if _, err := fmt.Sscanf(string(it.Item().Key()[len(prefix):]), "%016d", &step); err != nil {
				return fmt.Errorf("%w: bad key %q", ErrCorrupted, it.Item().Key())
			}
			steps = append(steps, step)
		}
		return nil
	})
	return steps, err
}
