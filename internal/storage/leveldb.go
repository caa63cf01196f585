package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bcnmy/relayer-node/internal/relay"
)

const (
	TransactionPrefix     = "transactions"
	TransactionHashPrefix = "transaction_hashes"
	pingKey               = "ping"
)

// LevelDBStorage keeps transaction records in two keyspaces:
// transactions/<chainID>/<transactionID>/<seq> -> record, in insertion order
// transaction_hashes/<chainID>/<transactionID>/<hash> -> key of the record carrying that hash
// Transaction ids are path escaped, so an id never contains the separator.
type LevelDBStorage struct {
	sync.Mutex
	db      *leveldb.DB
	lastSeq int64
}

func NewLevelDBStorage(path string) (*LevelDBStorage, error) {
	database, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDBStorage{db: database}, nil
}

// SaveTransaction appends a new record for the transaction
func (s *LevelDBStorage) SaveTransaction(record relay.TransactionRecord) error {
	s.Lock()
	defer s.Unlock()

	now := time.Now()
	if record.CreationTime.IsZero() {
		record.CreationTime = now
	}
	if record.UpdationTime.IsZero() {
		record.UpdationTime = now
	}

	t, err := s.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("failed to open leveldb transaction: %w", err)
	}
	defer t.Discard()

	key := recordKey(record.ChainID, record.TransactionID, s.nextSeq())
	if err := putRecord(t, key, record); err != nil {
		return err
	}

	return t.Commit()
}

// UpdateByTransactionID updates the most recent record of the transaction
func (s *LevelDBStorage) UpdateByTransactionID(chainID uint64, transactionID string, update relay.RecordUpdate) (bool, error) {
	s.Lock()
	defer s.Unlock()

	iterator := s.db.NewIterator(util.BytesPrefix(recordPrefix(chainID, transactionID)), nil)
	defer iterator.Release()

	if !iterator.Last() {
		if err := iterator.Error(); err != nil {
			return false, fmt.Errorf("failed to iterate transaction records: %w", err)
		}
		return false, nil
	}

	key := append([]byte(nil), iterator.Key()...)
	return true, s.updateRecord(key, update)
}

// UpdateByTransactionIDAndHash updates the record that carries transactionHash
func (s *LevelDBStorage) UpdateByTransactionIDAndHash(
	chainID uint64,
	transactionID,
	transactionHash string,
	update relay.RecordUpdate,
) (bool, error) {
	s.Lock()
	defer s.Unlock()

	key, err := s.db.Get(hashKey(chainID, transactionID, transactionHash), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get transaction hash index: %w", err)
	}

	return true, s.updateRecord(key, update)
}

// GetByTransactionID returns every record of the transaction, most recent first
func (s *LevelDBStorage) GetByTransactionID(chainID uint64, transactionID string) ([]relay.TransactionRecord, error) {
	s.Lock()
	defer s.Unlock()

	iterator := s.db.NewIterator(util.BytesPrefix(recordPrefix(chainID, transactionID)), nil)
	defer iterator.Release()

	var records []relay.TransactionRecord
	for ok := iterator.Last(); ok; ok = iterator.Prev() {
		var record relay.TransactionRecord
		if err := json.Unmarshal(iterator.Value(), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data into TransactionRecord: %w", err)
		}
		records = append(records, record)
	}
	if err := iterator.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction records: %w", err)
	}

	return records, nil
}

// Ping checks that the database is writable
func (s *LevelDBStorage) Ping() error {
	s.Lock()
	defer s.Unlock()

	if err := s.db.Put([]byte(pingKey), []byte(time.Now().Format(time.RFC3339Nano)), nil); err != nil {
		return fmt.Errorf("failed to write ping key: %w", err)
	}
	return nil
}

func (s *LevelDBStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *LevelDBStorage) updateRecord(key []byte, update relay.RecordUpdate) error {
	data, err := s.db.Get(key, nil)
	if err != nil {
		return fmt.Errorf("failed to get transaction record: %w", err)
	}

	var record relay.TransactionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("failed to unmarshal data into TransactionRecord: %w", err)
	}
	applyUpdate(&record, update)

	t, err := s.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("failed to open leveldb transaction: %w", err)
	}
	defer t.Discard()

	if err := putRecord(t, key, record); err != nil {
		return err
	}

	return t.Commit()
}

// nextSeq must be called with the lock held.
func (s *LevelDBStorage) nextSeq() int64 {
	seq := time.Now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

func putRecord(t *leveldb.Transaction, key []byte, record relay.TransactionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal TransactionRecord: %w", err)
	}

	if err := t.Put(key, data, nil); err != nil {
		return fmt.Errorf("failed to put transaction record: %w", err)
	}

	if record.TransactionHash != "" {
		err = t.Put(hashKey(record.ChainID, record.TransactionID, record.TransactionHash), key, nil)
		if err != nil {
			return fmt.Errorf("failed to put transaction hash index: %w", err)
		}
	}

	return nil
}

func applyUpdate(record *relay.TransactionRecord, update relay.RecordUpdate) {
	if update.TransactionHash != nil {
		record.TransactionHash = *update.TransactionHash
	}
	if update.Status != nil {
		record.Status = *update.Status
	}
	if update.RawTransaction != nil {
		raw := *update.RawTransaction
		record.RawTransaction = &raw
	}
	if update.GasPrice != nil {
		record.GasPrice = *update.GasPrice
	}
	if update.RelayerAddress != nil {
		record.RelayerAddress = *update.RelayerAddress
	}
	if update.RelayerManagerName != nil {
		record.RelayerManagerName = *update.RelayerManagerName
	}
	if update.Resubmitted != nil {
		record.Resubmitted = *update.Resubmitted
	}
	if update.Receipt != nil {
		receipt := *update.Receipt
		record.Receipt = &receipt
	}
	if update.Error != nil {
		record.Error = *update.Error
	}
	record.UpdationTime = time.Now()
}

func recordPrefix(chainID uint64, transactionID string) []byte {
	return []byte(fmt.Sprintf("%s/%d/%s/", TransactionPrefix, chainID, url.PathEscape(transactionID)))
}

func recordKey(chainID uint64, transactionID string, seq int64) []byte {
	return append(recordPrefix(chainID, transactionID), fmt.Sprintf("%020d", seq)...)
}

func hashKey(chainID uint64, transactionID, transactionHash string) []byte {
	return []byte(fmt.Sprintf("%s/%d/%s/%s", TransactionHashPrefix, chainID, url.PathEscape(transactionID), transactionHash))
}
