package queue

import (
	"fmt"
	"strings"

	"github.com/bcnmy/relayer-node/internal/relay"
)

// TransactionTopic carries inbound transaction requests of one type on one chain.
func TransactionTopic(chainID uint64, transactionType relay.TransactionType) string {
	return fmt.Sprintf("relayer_queue_transaction_%d_%s", chainID, strings.ToLower(string(transactionType)))
}

// RetryTopic carries delayed retry checks of one chain.
func RetryTopic(chainID uint64) string {
	return fmt.Sprintf("retry_transaction_queue_%d", chainID)
}

// EventTopic carries lifecycle events of one chain.
func EventTopic(chainID uint64) string {
	return fmt.Sprintf("transaction_queue_%d", chainID)
}
