package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bcnmy/relayer-node/internal/notification"
	"github.com/bcnmy/relayer-node/internal/relay"
)

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	notifier := notification.NewLogNotifier(zap.New(core))

	message := notification.MaxRetryCountMessage("tx1", "0xabc", relay.TransactionTypeAA, 137)
	require.NoError(t, notifier.Notify(context.Background(), message))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "operator alert", entry.Message)
	assert.Equal(t, "Max retry count exceeded for transaction id tx1 of type AA sent by relayer 0xabc on chain id 137",
		entry.ContextMap()["message"])
}
