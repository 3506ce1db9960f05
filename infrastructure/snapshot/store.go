package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/events"

	log "github.com/sirupsen/logrus"
)

// document is the on-disk layout of the ledger
type document struct {
	Accounts          map[string]*entities.Account `json:"accounts"`
	Transactions      []*entities.Transaction      `json:"transactions"`
	NextTransactionID int64                        `json:"nextTransactionId"`
}

// Store keeps the whole ledger in memory and writes it through to a single JSON document.
// One unit of work runs at a time; its changes become visible only after the file commit succeeds.
type Store struct {
	mu   sync.Mutex
	path string
	bus  *events.Bus

	accounts     map[string]*entities.Account
	transactions []*entities.Transaction
	byUser       map[string][]int
	nextID       int64
}

// NewMemory creates a store that never touches disk
func NewMemory(bus *events.Bus) *Store {
	return &Store{
		bus:      bus,
		accounts: make(map[string]*entities.Account),
		byUser:   make(map[string][]int),
		nextID:   1,
	}
}

// Open loads the document at path, starting empty when it does not exist yet
func Open(path string, bus *events.Bus) (*Store, error) {
	s := NewMemory(bus)
	s.path = path
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", path).Info("No ledger snapshot found, starting empty")
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger snapshot: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse ledger snapshot %s: %w", path, err)
	}

	for key, account := range doc.Accounts {
		s.accounts[entities.NormalizeUsername(key)] = account
	}
	var maxID int64
	for _, txn := range doc.Transactions {
		s.index(txn)
		maxID = max(maxID, txn.ID)
	}
	s.nextID = max(doc.NextTransactionID, maxID+1, 1)

	log.WithFields(log.Fields{
		"path":         path,
		"accounts":     len(s.accounts),
		"transactions": len(s.transactions),
	}).Info("Loaded ledger snapshot")
	return s, nil
}

// Create returns a new unit of work against the store
func (s *Store) Create() interfaces.UnitOfWork {
	return &unitOfWork{store: s}
}

func (s *Store) clockNow() time.Time {
	return time.Now().UTC()
}

// Path returns the snapshot file, empty for an in-memory store
func (s *Store) Path() string {
	return s.path
}

func (s *Store) index(txn *entities.Transaction) {
	s.transactions = append(s.transactions, txn)
	s.byUser[txn.Username] = append(s.byUser[txn.Username], len(s.transactions)-1)
}

// commit persists the merged state and then applies it. The caller holds s.mu.
func (s *Store) commit(dirty map[string]*entities.Account, appended []*entities.Transaction, nextID int64) error {
	if len(dirty) == 0 && len(appended) == 0 {
		return nil
	}

	if s.path != "" {
		accounts := make(map[string]*entities.Account, len(s.accounts)+len(dirty))
		for k, v := range s.accounts {
			accounts[k] = v
		}
		for k, v := range dirty {
			accounts[k] = v
		}
		transactions := make([]*entities.Transaction, 0, len(s.transactions)+len(appended))
		transactions = append(transactions, s.transactions...)
		transactions = append(transactions, appended...)

		data, err := json.Marshal(document{
			Accounts:          accounts,
			Transactions:      transactions,
			NextTransactionID: nextID,
		})
		if err != nil {
			return fmt.Errorf("failed to encode ledger snapshot: %w", err)
		}
		if err := writeFileAtomic(s.path, data); err != nil {
			return err
		}
	}

	for k, v := range dirty {
		s.accounts[k] = v
	}
	for _, txn := range appended {
		s.index(txn)
	}
	s.nextID = nextID
	return nil
}

// writeFileAtomic replaces path with data so that a crash leaves either the old or the new file
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	if d, dirErr := os.Open(dir); dirErr == nil {
		if syncErr := d.Sync(); syncErr != nil {
			log.WithError(syncErr).Warn("Failed to sync snapshot directory")
		}
		d.Close()
	}
	return nil
}
