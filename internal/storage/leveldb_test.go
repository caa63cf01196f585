package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnmy/relayer-node/internal/relay"
	"github.com/bcnmy/relayer-node/internal/storage"
)

func newStorage(t *testing.T) *storage.LevelDBStorage {
	s, err := storage.NewLevelDBStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetByTransactionIDReturnsMostRecentFirst(t *testing.T) {
	s := newStorage(t)

	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx1", ChainID: 137, TransactionHash: "0xaa", Status: relay.Pending,
	}))
	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx1", ChainID: 137, TransactionHash: "0xbb", Status: relay.Pending, PreviousTransactionHash: "0xaa",
	}))
	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx1", ChainID: 80001, TransactionHash: "0xcc", Status: relay.Pending,
	}))
	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx10", ChainID: 137, TransactionHash: "0xdd", Status: relay.Pending,
	}))

	records, err := s.GetByTransactionID(137, "tx1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0xbb", records[0].TransactionHash)
	assert.Equal(t, "0xaa", records[0].PreviousTransactionHash)
	assert.Equal(t, "0xaa", records[1].TransactionHash)
	assert.False(t, records[0].CreationTime.IsZero())
}

func TestUpdateByTransactionIDAndHash(t *testing.T) {
	s := newStorage(t)

	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx1", ChainID: 137, TransactionHash: "0xaa", Status: relay.Pending,
	}))
	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx1", ChainID: 137, TransactionHash: "0xbb", Status: relay.Pending,
	}))

	dropped := relay.Dropped
	resubmitted := true
	found, err := s.UpdateByTransactionIDAndHash(137, "tx1", "0xaa", relay.RecordUpdate{
		Status:      &dropped,
		Resubmitted: &resubmitted,
	})
	require.NoError(t, err)
	require.True(t, found)

	records, err := s.GetByTransactionID(137, "tx1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, relay.Pending, records[0].Status)
	assert.False(t, records[0].Resubmitted)
	assert.Equal(t, relay.Dropped, records[1].Status)
	assert.True(t, records[1].Resubmitted)

	found, err = s.UpdateByTransactionIDAndHash(137, "tx1", "0xff", relay.RecordUpdate{Status: &dropped})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateByTransactionIDIndexesNewHash(t *testing.T) {
	s := newStorage(t)

	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx1", ChainID: 137, Status: relay.InProcess,
	}))

	hash := "0xaa"
	pending := relay.Pending
	found, err := s.UpdateByTransactionID(137, "tx1", relay.RecordUpdate{TransactionHash: &hash, Status: &pending})
	require.NoError(t, err)
	require.True(t, found)

	success := relay.Success
	found, err = s.UpdateByTransactionIDAndHash(137, "tx1", hash, relay.RecordUpdate{
		Status:  &success,
		Receipt: &relay.Receipt{TransactionHash: hash, Status: 1, BlockNumber: 10},
	})
	require.NoError(t, err)
	require.True(t, found)

	records, err := s.GetByTransactionID(137, "tx1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, relay.Success, records[0].Status)
	require.NotNil(t, records[0].Receipt)
	assert.Equal(t, uint64(10), records[0].Receipt.BlockNumber)

	found, err = s.UpdateByTransactionID(137, "missing", relay.RecordUpdate{Status: &success})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTransactionIDsWithSeparatorsStayApart(t *testing.T) {
	s := newStorage(t)

	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx1", ChainID: 137, Status: relay.InProcess,
	}))
	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx1/evil", ChainID: 137, TransactionHash: "0xbb", Status: relay.Pending,
	}))
	require.NoError(t, s.SaveTransaction(relay.TransactionRecord{
		TransactionID: "tx1%2Fevil", ChainID: 137, TransactionHash: "0xcc", Status: relay.Pending,
	}))

	records, err := s.GetByTransactionID(137, "tx1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tx1", records[0].TransactionID)

	hash := "0xaa"
	found, err := s.UpdateByTransactionID(137, "tx1", relay.RecordUpdate{TransactionHash: &hash})
	require.NoError(t, err)
	require.True(t, found)

	records, err = s.GetByTransactionID(137, "tx1/evil")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0xbb", records[0].TransactionHash)

	records, err = s.GetByTransactionID(137, "tx1%2Fevil")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0xcc", records[0].TransactionHash)

	records, err = s.GetByTransactionID(137, "tx1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0xaa", records[0].TransactionHash)
}

func TestPing(t *testing.T) {
	s := newStorage(t)
	assert.NoError(t, s.Ping())
}
