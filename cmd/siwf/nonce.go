package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/layer-3/siwf/core"
)

var (
	nonceLength int
	nonceCount  int
)

var nonceCmd = &cobra.Command{
	Use:   "nonce",
	Short: "Print random sign-in nonces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for i := 0; i < nonceCount; i++ {
			nonce, err := core.GenerateNonce(nonceLength)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), nonce)
		}
		return nil
	},
}

func init() {
	nonceCmd.Flags().IntVarP(&nonceLength, "length", "l", core.DefaultNonceLength, "nonce length")
	nonceCmd.Flags().IntVarP(&nonceCount, "count", "n", 1, "number of nonces")
	rootCmd.AddCommand(nonceCmd)
}
