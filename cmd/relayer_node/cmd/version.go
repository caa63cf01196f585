package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcnmy/relayer-node/internal/app"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Version of the relayer node",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Version:", app.Version)
		fmt.Println("Commit:", app.Commit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
