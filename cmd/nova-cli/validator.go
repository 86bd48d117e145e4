package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func validatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validator",
		Short: "Validator set operations",
	}
	cmd.AddCommand(validatorListCmd())
	return cmd
}

func validatorListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the active validator set",
		RunE: func(c *cobra.Command, _ []string) error {
			rpcURL, _ := c.Flags().GetString("rpc-url")

			var validators []struct {
				Address string `json:"address"`
				Stake   uint64 `json:"stake"`
				Online  bool   `json:"online"`
			}
			if err := callRPC(rpcURL, "nova_getValidators", nil, &validators); err != nil {
				return err
			}
			if len(validators) == 0 {
				fmt.Println("(no validators)")
				return nil
			}
			for _, v := range validators {
				fmt.Printf("%s  stake=%d  online=%t\n", v.Address, v.Stake, v.Online)
			}
			return nil
		},
	}
	return cmd
}
