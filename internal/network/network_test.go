package network_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/network"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []any           `json:"params"`
}

type rpcNode struct {
	calls   atomic.Int32
	results map[string]any
	errors  map[string]string
}

func (n *rpcNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.calls.Add(1)

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if message, ok := n.errors[req.Method]; ok {
		resp["error"] = map[string]any{"code": -32000, "message": message}
	} else {
		resp["result"] = n.results[req.Method]
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newClient(t *testing.T, urls ...string) *network.EVMClient {
	client, err := network.NewEVMClient(context.Background(), network.Config{
		ChainID:             137,
		URLs:                urls,
		ReceiptPollInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestFallbackOnUnavailableEndpoint(t *testing.T) {
	var brokenCalls atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		brokenCalls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	healthy := &rpcNode{results: map[string]any{
		"eth_getTransactionCount": "0x2a",
		"eth_gasPrice":            "0x3b9aca00",
		"eth_chainId":             "0x89",
	}}
	healthyServer := httptest.NewServer(healthy)
	defer healthyServer.Close()

	client := newClient(t, broken.URL, healthyServer.URL)
	ctx := context.Background()

	nonce, err := client.GetNonce(ctx, "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), nonce)
	assert.Equal(t, int32(1), brokenCalls.Load())

	// the client stays on the healthy endpoint
	price, err := client.GetGasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), price.Int64())
	assert.Equal(t, int32(1), brokenCalls.Load())

	chainID, err := client.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(137), chainID)
}

func TestAllEndpointsUnavailable(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	client := newClient(t, broken.URL, broken.URL)
	_, err := client.GetGasPrice(context.Background())
	assert.Error(t, err)
}

func TestRPCErrorIsNotRetriedOnFallback(t *testing.T) {
	first := &rpcNode{errors: map[string]string{"eth_gasPrice": "internal error"}}
	second := &rpcNode{results: map[string]any{"eth_gasPrice": "0x1"}}
	firstServer := httptest.NewServer(first)
	defer firstServer.Close()
	secondServer := httptest.NewServer(second)
	defer secondServer.Close()

	client := newClient(t, firstServer.URL, secondServer.URL)
	_, err := client.GetGasPrice(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal error")
	assert.Equal(t, int32(1), first.calls.Load())
	assert.Zero(t, second.calls.Load())
}

func TestGetTransactionReceipt(t *testing.T) {
	hash := "0x8f4a1a3a0b5c4e6f7d8c9b0a1f2e3d4c5b6a79887766554433221100ffeeddcc"
	node := &rpcNode{results: map[string]any{
		"eth_getTransactionReceipt": map[string]any{
			"transactionHash":   hash,
			"transactionIndex":  "0x0",
			"blockHash":         "0x1d59ff54b1eb26b013ce3cb5fc9dab3705b415a67127a003c3e61eb445bb8df2",
			"blockNumber":       "0x10",
			"cumulativeGasUsed": "0x5208",
			"gasUsed":           "0x5208",
			"effectiveGasPrice": "0x1",
			"contractAddress":   nil,
			"logs":              []any{},
			"logsBloom":         "0x" + zeros(512),
			"status":            "0x1",
			"type":              "0x2",
		},
	}}
	server := httptest.NewServer(node)
	defer server.Close()

	client := newClient(t, server.URL)
	receipt, err := client.WaitForTransaction(context.Background(), hash)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, uint64(16), receipt.BlockNumber)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
}

func TestPendingReceiptIsNil(t *testing.T) {
	node := &rpcNode{results: map[string]any{}}
	server := httptest.NewServer(node)
	defer server.Close()

	client := newClient(t, server.URL)
	receipt, err := client.GetTransactionReceipt(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Nil(t, receipt)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.WaitForTransaction(ctx, "0x01")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
