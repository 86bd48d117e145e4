package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// genesisSpec is the file format nova-cli genesis generate writes: the
// validator set and (optional) pre-funded balances of a deployment.
// generate fills only the validator set. novad does not read this file:
// `novad run` boots a single-validator genesis built in memory from the
// node's own identity.
type genesisSpec struct {
	Network    string                `json:"network"`
	Validators []genesisValidator    `json:"validators"`
	Balances   map[string]uint64     `json:"balances,omitempty"`
}

type genesisValidator struct {
	Address string `json:"address"`
	Stake   uint64 `json:"stake"`
}

func genesisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Genesis file operations",
	}
	cmd.AddCommand(genesisGenerateCmd())
	return cmd
}

func genesisGenerateCmd() *cobra.Command {
	var (
		out            string
		validatorAddrs []string
		stakes         []uint64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a genesis spec file listing the initial validator set",
		RunE: func(c *cobra.Command, _ []string) error {
			network, _ := c.Flags().GetString("network")
			if len(validatorAddrs) == 0 {
				return fmt.Errorf("at least one --validator address is required")
			}
			if len(stakes) != 0 && len(stakes) != len(validatorAddrs) {
				return fmt.Errorf("--stake must be given once per --validator, or not at all")
			}

			spec := genesisSpec{Network: network}
			for i, addr := range validatorAddrs {
				stake := uint64(1)
				if len(stakes) == len(validatorAddrs) {
					stake = stakes[i]
				}
				spec.Validators = append(spec.Validators, genesisValidator{Address: addr, Stake: stake})
			}

			raw, err := json.MarshalIndent(spec, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return fmt.Errorf("write genesis file: %w", err)
			}
			fmt.Printf("genesis spec written to %s (%d validators)\n", out, len(spec.Validators))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "genesis.json", "output path for the genesis spec")
	cmd.Flags().StringArrayVar(&validatorAddrs, "validator", nil, "validator address, repeatable")
	cmd.Flags().Uint64SliceVar(&stakes, "stake", nil, "stake for the corresponding --validator, repeatable")
	return cmd
}
