package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/relay"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// LogNotifier writes alerts to the log at error level.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, message string) error {
	n.logger.Error("operator alert", zap.String("message", message))
	return nil
}

func MaxRetryCountMessage(transactionID, relayerAddress string, transactionType relay.TransactionType, chainID uint64) string {
	return fmt.Sprintf(
		"Max retry count exceeded for transaction id %s of type %s sent by relayer %s on chain id %d",
		transactionID, transactionType, relayerAddress, chainID,
	)
}
