package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	nlogger "github.com/neutron-org/neutron-logger"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/monitoring"
	"github.com/bcnmy/relayer-node/internal/queue"
	"github.com/bcnmy/relayer-node/internal/relay"
	"github.com/bcnmy/relayer-node/internal/status"
	"github.com/bcnmy/relayer-node/internal/transaction"
)

const (
	ServerContext       = "http"
	RelayResource       = "/api/v1/relay"
	TransactionResource = "/api/v1/transactions/{transactionId}"
	ResubmitResource    = "/api/v1/transactions/resubmit"
	StatusResource      = "/admin/status"
	PrometheusMetrics   = "/metrics"

	chainIDParam  = "chainId"
	shutdownDelay = 5 * time.Second
)

type Resubmitter interface {
	Resubmit(ctx context.Context, req transaction.ResubmitRequest) (relay.Result, error)
}

type StatusChecker interface {
	Check(ctx context.Context) status.Report
}

type Dependencies struct {
	Storage     relay.Storage
	Queue       queue.Queue
	Resubmitter Resubmitter
	Status      StatusChecker
	Metrics     monitoring.Reporter
	// Routes lists the transaction types accepted on each chain.
	Routes map[uint64][]relay.TransactionType
}

type RelayResponse struct {
	TransactionID string `json:"transactionId"`
	ChainID       uint64 `json:"chainId"`
}

// TransactionResponse is the latest record of a transaction with the hashes it replaced,
// most recent first.
type TransactionResponse struct {
	relay.TransactionRecord
	PreviousTransactionHashes []string `json:"previousTransactionHashes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func Run(ctx context.Context, logRegistry *nlogger.Registry, deps Dependencies, listenAddr string) error {
	server := &http.Server{
		Addr:    listenAddr,
		Handler: Router(logRegistry, deps),
	}
	logger := logRegistry.Get(ServerContext)
	errch := make(chan error, 1)

	go func() {
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error("failed to serve http", zap.Error(err))
				errch <- err
			}
		}
	}()
	logger.Info("api http server started", zap.String("listen_addr", listenAddr))

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down the api http")
	webserverCtx, cancelWebserverCtx := context.WithTimeout(context.Background(), shutdownDelay)
	defer cancelWebserverCtx()
	if err := server.Shutdown(webserverCtx); err != nil {
		logger.Error("failed to shutdown api http gracefully", zap.Error(err))
		return nil
	}

	logger.Info("api http shut down successfully")
	return nil
}

func Router(logRegistry *nlogger.Registry, deps Dependencies) *mux.Router {
	logger := logRegistry.Get(ServerContext)
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc(RelayResource, relayTransaction(logger, deps)).Methods(http.MethodPost)
	router.HandleFunc(ResubmitResource, resubmitTransaction(logger, deps.Resubmitter)).Methods(http.MethodPost)
	router.HandleFunc(TransactionResource, getTransaction(logger, deps.Storage)).Methods(http.MethodGet)
	router.HandleFunc(StatusResource, getStatus(logger, deps.Status)).Methods(http.MethodGet)
	router.Handle(PrometheusMetrics, monitoring.NewPromWrapper(logRegistry, deps.Metrics))
	return router
}

// relayTransaction stores the request as IN_PROCESS and queues it for the consumers of its
// chain and type.
func relayTransaction(logger *zap.Logger, deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg relay.TransactionMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeError(w, http.StatusBadRequest, "failed to decode request body")
			return
		}
		if !accepts(deps.Routes, msg.ChainID, msg.Type) {
			writeError(w, http.StatusBadRequest, "unsupported chain id or transaction type")
			return
		}
		if msg.To == "" || msg.GasLimit == "" {
			writeError(w, http.StatusBadRequest, "to and gasLimit are required")
			return
		}
		if msg.TransactionID == "" {
			msg.TransactionID = uuid.NewString()
		}

		err := deps.Storage.SaveTransaction(relay.TransactionRecord{
			TransactionID:   msg.TransactionID,
			TransactionType: msg.Type,
			Status:          relay.InProcess,
			ChainID:         msg.ChainID,
			WalletAddress:   msg.WalletAddress,
		})
		if err != nil {
			logger.Error("failed to save transaction request", zap.String("transaction_id", msg.TransactionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "error processing request")
			return
		}
		if err := deps.Queue.Publish(r.Context(), queue.TransactionTopic(msg.ChainID, msg.Type), msg); err != nil {
			logger.Error("failed to publish transaction request", zap.String("transaction_id", msg.TransactionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "error processing request")
			return
		}

		logger.Info("transaction request accepted",
			zap.String("transaction_id", msg.TransactionID),
			zap.Uint64("chain_id", msg.ChainID),
			zap.String("transaction_type", string(msg.Type)))
		writeJSON(w, http.StatusOK, RelayResponse{TransactionID: msg.TransactionID, ChainID: msg.ChainID})
	}
}

func getTransaction(logger *zap.Logger, storage relay.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID := mux.Vars(r)["transactionId"]
		chainID, err := strconv.ParseUint(r.URL.Query().Get(chainIDParam), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chainId query parameter")
			return
		}

		records, err := storage.GetByTransactionID(chainID, transactionID)
		if err != nil {
			logger.Error("failed to execute GetByTransactionID", zap.String("transaction_id", transactionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "error processing request")
			return
		}
		if len(records) == 0 {
			writeError(w, http.StatusNotFound, transaction.ErrTransactionNotFound.Error())
			return
		}

		res := TransactionResponse{TransactionRecord: records[0], PreviousTransactionHashes: []string{}}
		for _, record := range records[1:] {
			if record.TransactionHash != "" {
				res.PreviousTransactionHashes = append(res.PreviousTransactionHashes, record.TransactionHash)
			}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func resubmitTransaction(logger *zap.Logger, resubmitter Resubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transaction.ResubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "failed to decode request body")
			return
		}
		if req.TransactionID == "" {
			writeError(w, http.StatusBadRequest, "transactionId is required")
			return
		}

		result, err := resubmitter.Resubmit(r.Context(), req)
		if err != nil {
			code := resubmitErrorCode(err)
			if code == http.StatusInternalServerError {
				logger.Error("failed to resubmit transaction", zap.String("transaction_id", req.TransactionID), zap.Error(err))
			}
			writeError(w, code, err.Error())
			return
		}
		writeJSON(w, result.Code, result)
	}
}

func getStatus(logger *zap.Logger, checker StatusChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := checker.Check(r.Context())
		code := http.StatusOK
		if !report.Healthy {
			logger.Warn("status check failed", zap.Strings("errors", report.Errors))
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func resubmitErrorCode(err error) int {
	switch {
	case errors.Is(err, transaction.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, transaction.ErrTransactionMined), errors.Is(err, transaction.ErrTransactionNotSent):
		return http.StatusConflict
	case errors.Is(err, transaction.ErrUnsupportedChain), errors.Is(err, transaction.ErrNotRetriable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func accepts(routes map[uint64][]relay.TransactionType, chainID uint64, transactionType relay.TransactionType) bool {
	for _, t := range routes[chainID] {
		if t == transactionType {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Error: message})
}
