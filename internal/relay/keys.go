package relay

import "fmt"

// RetryCountKey is the cache key counting the retries of a transaction.
func RetryCountKey(transactionID string, chainID uint64) string {
	return fmt.Sprintf("RetryTransactionCount_%s_%d", transactionID, chainID)
}
