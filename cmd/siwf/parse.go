package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/layer-3/siwf/core"
)

type parseOutput struct {
	FID     *uint64 `json:"fid"`
	Address *string `json:"address"`
}

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Extract the fid and address from a sign-in message",
	Long:  "Reads a sign-in message from file, or from stdin when no file is given, and prints the identity found in it as JSON.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 1 && args[0] != "-" {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}

		id := core.ParseSignInMessage(string(data))
		out := parseOutput{FID: id.FID}
		if id.Address != "" {
			out.Address = &id.Address
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
