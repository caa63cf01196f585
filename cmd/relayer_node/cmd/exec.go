package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bcnmy/relayer-node/internal/transaction"
)

var (
	maxFeePerGas         string
	maxPriorityFeePerGas string
)

const (
	MaxFeeFlagName      = "max-fee-per-gas"
	MaxPriorityFlagName = "max-priority-fee-per-gas"
)

// ExecCmd represents the exec command
var ExecCmd = &cobra.Command{
	Use: "exec",
}

func init() {
	ExecCmd.PersistentFlags().StringVarP(&nodeURL, UrlFlagName, "u", defaultURL, "server url")
	resubmitTransaction.Flags().StringVar(&maxFeePerGas, MaxFeeFlagName, "", "max fee per gas in wei")
	resubmitTransaction.Flags().StringVar(&maxPriorityFeePerGas, MaxPriorityFlagName, "", "max priority fee per gas in wei")
	ExecCmd.AddCommand(resubmitTransaction)
	rootCmd.AddCommand(ExecCmd)
}

// resubmitTransaction represents the resubmit command
var resubmitTransaction = &cobra.Command{
	Use:   "resubmit <transactionId> <chainId> [gasPrice]",
	Args:  cobra.RangeArgs(2, 3),
	Short: "Replace the pending hash of a transaction with one priced at the given gas price",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		chainID, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse chainId: %w", err)
		}

		req := transaction.ResubmitRequest{
			TransactionID:        args[0],
			ChainID:              chainID,
			MaxFeePerGas:         maxFeePerGas,
			MaxPriorityFeePerGas: maxPriorityFeePerGas,
		}
		if len(args) == 3 {
			req.GasPrice = args[2]
		}
		if req.GasPrice == "" && (req.MaxFeePerGas == "" || req.MaxPriorityFeePerGas == "") {
			return fmt.Errorf("either gasPrice or both --%s and --%s are required", MaxFeeFlagName, MaxPriorityFlagName)
		}

		res, err := client.ResubmitTransaction(req)
		if err != nil {
			return fmt.Errorf("failed to resubmit transaction: %w", err)
		}

		fmt.Printf("Transaction id=%s chainId=%d resubmitted with hash %s\n", res.TransactionID, chainID, res.TransactionHash)
		return nil
	},
}
