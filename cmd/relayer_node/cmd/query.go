package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	relayhttp "github.com/bcnmy/relayer-node/internal/http"
)

var nodeURL string

const (
	UrlFlagName = "url"
	defaultURL  = "http://localhost:10001"
)

// QueryCmd represents the query command
var QueryCmd = &cobra.Command{
	Use: "query",
}

func init() {
	QueryCmd.PersistentFlags().StringVarP(&nodeURL, UrlFlagName, "u", defaultURL, "server url")
	QueryCmd.AddCommand(transactionCmd, statusCmd)
	rootCmd.AddCommand(QueryCmd)
}

// transactionCmd represents the transaction command
var transactionCmd = &cobra.Command{
	Use:   "transaction <chainId> <transactionId>",
	Args:  cobra.ExactArgs(2),
	Short: "Query a relayed transaction and the hashes it went through",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		chainID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse chainId: %w", err)
		}

		tx, err := client.GetTransaction(chainID, args[1])
		if err != nil {
			return fmt.Errorf("failed to get transaction: %w", err)
		}

		return printJSON("Transaction", tx)
	},
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the health of the node and its relayer pools",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		report, err := client.Status()
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		return printJSON("Status", report)
	},
}

func newClient(cmd *cobra.Command) (*relayhttp.RelayerClient, error) {
	url, err := cmd.Flags().GetString(UrlFlagName)
	if err != nil {
		return nil, err
	}

	client, err := relayhttp.NewRelayerClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get new relayer client: %w", err)
	}
	return client, nil
}

func printJSON(title string, v any) error {
	var response bytes.Buffer
	encoder := json.NewEncoder(&response)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	fmt.Printf("%s:\n%s\n", title, response.String())
	return nil
}
