package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	labelMethod  = "method"
	labelType    = "type"
	labelChainID = "chain_id"
	labelTxType  = "transaction_type"
	labelManager = "manager"
	labelState   = "state"
	labelTier    = "tier"
	labelEvent   = "event"
	labelTopic   = "topic"
	typeSuccess  = "success"
	typeFailed   = "failed"
)

var (
	rpcRequestTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rpc_request_time",
		Help:    "A histogram of blockchain rpc requests duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30},
	}, []string{labelMethod, labelType})

	submittedTxCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "submitted_txs",
		Help: "The total number of submitted txs (counter)",
	}, []string{labelChainID, labelTxType, labelType})

	retriedTxCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retried_txs",
		Help: "The total number of retried txs (counter)",
	}, []string{labelChainID, labelTxType, labelType})

	fundingCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_fundings",
		Help: "The total number of relayer funding transfers (counter)",
	}, []string{labelChainID, labelType})

	relayersCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayers",
		Help: "The number of relayers per state in each relayer manager",
	}, []string{labelChainID, labelManager, labelState})

	gasPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gas_price_wei",
		Help: "The last cached gas price per tier",
	}, []string{labelChainID, labelTier})

	lifecycleEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_events",
		Help: "The total number of published transaction lifecycle events (counter)",
	}, []string{labelChainID, labelEvent})

	consumedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumed_messages",
		Help: "The total number of consumed queue messages (counter)",
	}, []string{labelTopic, labelType})
)

func chain(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}

func result(success bool) string {
	if success {
		return typeSuccess
	}
	return typeFailed
}

func AddSuccessRequest(method string, dur float64) {
	rpcRequestTime.With(prometheus.Labels{
		labelMethod: method,
		labelType:   typeSuccess,
	}).Observe(dur)
}

func AddFailedRequest(method string, dur float64) {
	rpcRequestTime.With(prometheus.Labels{
		labelMethod: method,
		labelType:   typeFailed,
	}).Observe(dur)
}

func IncSuccessTxSubmit(chainID uint64, txType string) {
	submittedTxCounter.With(prometheus.Labels{
		labelChainID: chain(chainID),
		labelTxType:  txType,
		labelType:    typeSuccess,
	}).Inc()
}

func IncFailedTxSubmit(chainID uint64, txType string) {
	submittedTxCounter.With(prometheus.Labels{
		labelChainID: chain(chainID),
		labelTxType:  txType,
		labelType:    typeFailed,
	}).Inc()
}

func IncTxRetry(chainID uint64, txType string, success bool) {
	retriedTxCounter.With(prometheus.Labels{
		labelChainID: chain(chainID),
		labelTxType:  txType,
		labelType:    result(success),
	}).Inc()
}

func IncFunding(chainID uint64, success bool) {
	fundingCounter.With(prometheus.Labels{
		labelChainID: chain(chainID),
		labelType:    result(success),
	}).Inc()
}

func SetRelayersCount(chainID uint64, manager string, idle, processing int) {
	relayersCount.With(prometheus.Labels{
		labelChainID: chain(chainID),
		labelManager: manager,
		labelState:   "idle",
	}).Set(float64(idle))
	relayersCount.With(prometheus.Labels{
		labelChainID: chain(chainID),
		labelManager: manager,
		labelState:   "processing",
	}).Set(float64(processing))
}

func SetGasPrice(chainID uint64, tier string, wei float64) {
	gasPrice.With(prometheus.Labels{
		labelChainID: chain(chainID),
		labelTier:    tier,
	}).Set(wei)
}

func IncLifecycleEvent(chainID uint64, event string) {
	lifecycleEvents.With(prometheus.Labels{
		labelChainID: chain(chainID),
		labelEvent:   event,
	}).Inc()
}

func IncConsumedMessage(topic string, success bool) {
	consumedMessages.With(prometheus.Labels{
		labelTopic: topic,
		labelType:  result(success),
	}).Inc()
}
