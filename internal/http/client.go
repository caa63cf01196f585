package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bcnmy/relayer-node/internal/relay"
	"github.com/bcnmy/relayer-node/internal/status"
	"github.com/bcnmy/relayer-node/internal/transaction"
)

const getTimeout = time.Second * 5

// RelayerClient provides high level methods to work with the relayer node api
type RelayerClient struct {
	host   *url.URL
	client http.Client
}

// NewRelayerClient takes a host as a single argument and returns a RelayerClient in case of well formatted host arg
// host format is <scheme>://<host>[:<port>], e.g. http://relayer.host, http://relayer.host:8080
func NewRelayerClient(host string) (*RelayerClient, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("host parsing error: %w", err)
	}

	u.Path = ""
	u.RawQuery = ""
	return &RelayerClient{
		host: u,
		client: http.Client{
			Timeout: getTimeout,
		},
	}, nil
}

func (c RelayerClient) Relay(msg relay.TransactionMessage) (RelayResponse, error) {
	var res RelayResponse
	err := c.post(RelayResource, msg, &res)
	return res, err
}

func (c RelayerClient) GetTransaction(chainID uint64, transactionID string) (TransactionResponse, error) {
	u := *c.host
	u.Path = strings.Replace(TransactionResource, "{transactionId}", url.PathEscape(transactionID), 1)
	u.RawQuery = url.Values{chainIDParam: []string{strconv.FormatUint(chainID, 10)}}.Encode()

	var res TransactionResponse
	err := c.do(http.MethodGet, u, nil, &res)
	return res, err
}

func (c RelayerClient) ResubmitTransaction(req transaction.ResubmitRequest) (relay.Result, error) {
	var res relay.Result
	err := c.post(ResubmitResource, req, &res)
	return res, err
}

// Status returns the node status report. An unhealthy node is not an error.
func (c RelayerClient) Status() (status.Report, error) {
	u := *c.host
	u.Path = StatusResource

	var res status.Report
	err := c.do(http.MethodGet, u, nil, &res, http.StatusServiceUnavailable)
	return res, err
}

func (c RelayerClient) post(resource string, body any, out any) error {
	u := *c.host
	u.Path = resource

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(http.MethodPost, u, data, out)
}

func (c RelayerClient) do(method string, u url.URL, body []byte, out any, acceptedCodes ...int) error {
	req, err := http.NewRequest(method, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make http request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && !contains(acceptedCodes, res.StatusCode) {
		var e errorResponse
		if json.NewDecoder(res.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("got unexpected http response status code %d: %s", res.StatusCode, e.Error)
		}
		return fmt.Errorf("got unexpected http response status code: %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func contains(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
